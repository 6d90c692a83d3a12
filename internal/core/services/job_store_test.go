package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/curunir/internal/core/domain"
)

func TestJobStore_CreateAndGet(t *testing.T) {
	store := NewJobStore()

	job := store.Create("realestate_ads", map[string]any{"listing_url": "https://x"}, 2, nil)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, 2, job.Variant)

	got, ok := store.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, job.ID, got.ID)

	_, ok = store.Get("job_missing00000")
	assert.False(t, ok)
}

func TestJobStore_GetReturnsSnapshot(t *testing.T) {
	store := NewJobStore()
	job := store.Create("app", nil, 1, nil)

	snap, _ := store.Get(job.ID)
	snap.Status = domain.JobStatusFailed
	snap.Logs = append(snap.Logs, "tampered")

	fresh, _ := store.Get(job.ID)
	assert.Equal(t, domain.JobStatusPending, fresh.Status)
	assert.Empty(t, fresh.Logs)
}

func TestJobStore_Update_TerminalGuard(t *testing.T) {
	store := NewJobStore()
	job := store.Create("app", nil, 1, nil)

	job.Complete(map[string]any{"ok": true})
	store.Update(job)

	// An update that would resurrect a terminal record is dropped.
	job.Status = domain.JobStatusRunning
	store.Update(job)

	got, _ := store.Get(job.ID)
	assert.Equal(t, domain.JobStatusComplete, got.Status)

	// Updates that keep the terminal status are still applied.
	job.Status = domain.JobStatusComplete
	job.AddLog("late log")
	store.Update(job)
	got, _ = store.Get(job.ID)
	assert.NotEmpty(t, got.Logs)
}

func TestJobStore_Update_UnknownIDNoOp(t *testing.T) {
	store := NewJobStore()
	ghost := &domain.Job{ID: "job_aaaaaaaaaaaa", Status: domain.JobStatusRunning}
	store.Update(ghost)
	_, ok := store.Get(ghost.ID)
	assert.False(t, ok)
}

func TestJobStore_List_OrderAndFilter(t *testing.T) {
	store := NewJobStore()
	a := store.Create("app_a", nil, 1, nil)
	time.Sleep(2 * time.Millisecond)
	b := store.Create("app_b", nil, 1, nil)
	time.Sleep(2 * time.Millisecond)
	c := store.Create("app_a", nil, 1, nil)

	all := store.List("")
	require.Len(t, all, 3)
	// newest first
	assert.Equal(t, c.ID, all[0].ID)
	assert.Equal(t, b.ID, all[1].ID)
	assert.Equal(t, a.ID, all[2].ID)

	filtered := store.List("app_a")
	require.Len(t, filtered, 2)
	for _, job := range filtered {
		assert.Equal(t, "app_a", job.MiniAppID)
	}
}

func TestJobStore_Delete(t *testing.T) {
	store := NewJobStore()
	job := store.Create("app", nil, 1, nil)

	assert.True(t, store.Delete(job.ID))
	assert.False(t, store.Delete(job.ID))
}

func TestJobStore_CleanupOlderThan(t *testing.T) {
	store := NewJobStore()

	old := store.Create("app", nil, 1, nil)
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	old.Complete(nil)
	store.Update(old)

	runningOld := store.Create("app", nil, 1, nil)
	runningOld.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	runningOld.Status = domain.JobStatusRunning
	store.Update(runningOld)

	fresh := store.Create("app", nil, 1, nil)

	removed := store.CleanupOlderThan(24 * time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := store.Get(old.ID)
	assert.False(t, ok)

	// running jobs are never evicted regardless of age
	_, ok = store.Get(runningOld.ID)
	assert.True(t, ok)

	_, ok = store.Get(fresh.ID)
	assert.True(t, ok)
}
