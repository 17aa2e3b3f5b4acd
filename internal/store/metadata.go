package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// FileMeta is the per-file record inside project metadata.
type FileMeta struct {
	Hash       string `json:"hash"`
	ChunkCount int    `json:"chunkCount"`
	Language   string `json:"language"`
}

// ProjectMetadata is the durable per-project state that survives
// process restarts. The orchestrator is its sole writer.
type ProjectMetadata struct {
	ProjectPath        string              `json:"projectPath"`
	EmbeddingModel     string              `json:"embeddingModel"`
	EmbeddingDimension int                 `json:"embeddingDimension"`
	TotalFiles         int                 `json:"totalFiles"`
	TotalChunks        int                 `json:"totalChunks"`
	UpdatedAt          time.Time           `json:"updatedAt"`
	Files              map[string]FileMeta `json:"files"`
}

// NewProjectMetadata creates empty metadata for a project.
func NewProjectMetadata(projectPath, model string) *ProjectMetadata {
	return &ProjectMetadata{
		ProjectPath:    projectPath,
		EmbeddingModel: model,
		Files:          make(map[string]FileMeta),
	}
}

// MetadataStore reads and writes a project's metadata file.
type MetadataStore struct {
	path string
}

// NewMetadataStore creates a store for the metadata file inside the
// given project index directory.
func NewMetadataStore(indexDir string) *MetadataStore {
	return &MetadataStore{path: filepath.Join(indexDir, MetadataFileName)}
}

// Path returns the metadata file path.
func (m *MetadataStore) Path() string {
	return m.path
}

// Load reads the metadata file. A missing, unreadable, or unparseable
// file is treated as absent (nil, nil): the caller falls back to a
// full rebuild rather than failing the run.
func (m *MetadataStore) Load() (*ProjectMetadata, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("metadata unreadable, treating as absent",
				slog.String("path", m.path),
				slog.String("error", err.Error()))
		}
		return nil, nil
	}

	var meta ProjectMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		slog.Warn("metadata corrupt, treating as absent",
			slog.String("path", m.path),
			slog.String("error", err.Error()))
		return nil, nil
	}
	if meta.Files == nil {
		meta.Files = make(map[string]FileMeta)
	}
	return &meta, nil
}

// Save writes metadata atomically (temp file + rename) so a crash
// mid-write never leaves a truncated file behind.
func (m *MetadataStore) Save(meta *ProjectMetadata) error {
	meta.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tmpPath := m.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

// Delete removes the metadata file if present.
func (m *MetadataStore) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove metadata: %w", err)
	}
	return nil
}
