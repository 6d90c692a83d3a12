package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/manthysbr/curunir/internal/core/domain"
)

// ArtifactManager writes workflow outputs to disk under
// <basePath>/<job_id>/<filename> and returns the storage-relative path
// that gets recorded on the job and served by the HTTP layer.
type ArtifactManager struct {
	basePath string
}

func NewArtifactManager(basePath string) (*ArtifactManager, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &ArtifactManager{basePath: basePath}, nil
}

func (m *ArtifactManager) BasePath() string { return m.basePath }

func (m *ArtifactManager) SaveText(jobID domain.JobID, filename, content string) (string, error) {
	return m.write(jobID, filename, []byte(content))
}

func (m *ArtifactManager) SaveJSON(jobID domain.JobID, filename string, data any) (string, error) {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode artifact %s: %w", filename, err)
	}
	return m.write(jobID, filename, encoded)
}

func (m *ArtifactManager) SaveCSV(jobID domain.JobID, filename string, header []string, rows [][]string) (string, error) {
	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if len(header) > 0 {
		if err := w.Write(header); err != nil {
			return "", fmt.Errorf("write csv header: %w", err)
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return m.write(jobID, filename, []byte(buf.String()))
}

// Resolve maps a storage-relative path back to an absolute file path,
// rejecting anything that escapes the artifact root.
func (m *ArtifactManager) Resolve(relPath string) (string, error) {
	cleaned := filepath.Clean(relPath)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("artifact path %q escapes storage root", relPath)
	}
	return filepath.Join(m.basePath, cleaned), nil
}

func (m *ArtifactManager) write(jobID domain.JobID, filename string, data []byte) (string, error) {
	safeName := filepath.Base(filename)
	if safeName == "." || safeName == string(filepath.Separator) || safeName == "" {
		return "", fmt.Errorf("invalid artifact filename %q", filename)
	}

	dir := filepath.Join(m.basePath, string(jobID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	full := filepath.Join(dir, safeName)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", safeName, err)
	}

	return filepath.Join(string(jobID), safeName), nil
}
