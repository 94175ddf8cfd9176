package cron

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// fileStore persists the job list as one JSON document. All calls happen
// under the scheduler's mutex, so the store itself is not locked.
type fileStore struct {
	path string
}

func newFileStore(dir string) *fileStore {
	return &fileStore{path: filepath.Join(dir, "jobs.json")}
}

func (s *fileStore) load() (map[string]*Job, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]*Job{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read job store: %w", err)
	}

	var jobs map[string]*Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("parse job store: %w", err)
	}
	if jobs == nil {
		jobs = map[string]*Job{}
	}
	return jobs, nil
}

func (s *fileStore) save(jobs map[string]*Job) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cron dir: %w", err)
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode job store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write job store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace job store: %w", err)
	}
	return nil
}
