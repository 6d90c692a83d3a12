package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/manthysbr/curunir/internal/core/domain"
)

// MiniApp is a packaged workflow: a goal-oriented pipeline combining
// tools, LLM prompts and business logic. Run has the workflow body
// contract, so a mini app plugs straight into the runner.
type MiniApp interface {
	Metadata() domain.MiniAppMetadata
	Run(ctx context.Context, job *domain.Job, logf LogFunc) (map[string]any, error)
}

// MiniAppRegistry holds the installed mini apps by ID.
type MiniAppRegistry struct {
	mu   sync.RWMutex
	apps map[string]MiniApp
}

func NewMiniAppRegistry() *MiniAppRegistry {
	return &MiniAppRegistry{apps: make(map[string]MiniApp)}
}

func (r *MiniAppRegistry) Register(app MiniApp) error {
	id := app.Metadata().ID
	if id == "" {
		return fmt.Errorf("mini app has empty ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.apps[id]; exists {
		return fmt.Errorf("mini app '%s' already registered", id)
	}
	r.apps[id] = app
	return nil
}

func (r *MiniAppRegistry) Get(id string) (MiniApp, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.apps[id]
	return app, ok
}

// List returns metadata for all installed apps, sorted by ID.
func (r *MiniAppRegistry) List() []domain.MiniAppMetadata {
	r.mu.RLock()
	metas := make([]domain.MiniAppMetadata, 0, len(r.apps))
	for _, app := range r.apps {
		metas = append(metas, app.Metadata())
	}
	r.mu.RUnlock()

	sort.Slice(metas, func(i, j int) bool { return metas[i].ID < metas[j].ID })
	return metas
}

// validateVariant checks the requested variant against the app's
// published variants.
func validateVariant(meta domain.MiniAppMetadata, variant int) error {
	if _, ok := meta.Variants[variant]; !ok {
		keys := make([]int, 0, len(meta.Variants))
		for k := range meta.Variants {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		return fmt.Errorf("variant %d not supported, available variants: %v", variant, keys)
	}
	return nil
}
