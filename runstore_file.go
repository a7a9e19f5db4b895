package pulsar

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileRunStore persists run records as JSON files, one per run.
type FileRunStore struct {
	dataDir string
}

// NewFileRunStore creates a file-based run store rooted at dataDir,
// defaulting to ~/.pulsar/runs.
func NewFileRunStore(dataDir string) (*FileRunStore, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".pulsar", "runs")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &FileRunStore{dataDir: dataDir}, nil
}

func (s *FileRunStore) Save(ctx context.Context, record *RunRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	path := filepath.Join(s.dataDir, record.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}
	return nil
}

func (s *FileRunStore) Get(ctx context.Context, id string) (*RunRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read run record: %w", err)
	}
	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run record: %w", err)
	}
	return &record, nil
}

func (s *FileRunStore) Delete(ctx context.Context, id string) error {
	err := os.Remove(filepath.Join(s.dataDir, id+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete run record: %w", err)
	}
	return nil
}

func (s *FileRunStore) List(ctx context.Context, limit int) ([]*RunRecord, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var records []*RunRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		record, err := s.Get(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil || record == nil {
			// Skip records we can't read
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
