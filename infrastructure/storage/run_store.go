package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"biztrack_e2e/domain/entities"
	"biztrack_e2e/domain/interfaces"
)

const latestFile = "latest.json"

var ErrRunNotFound = errors.New("run not found")

type runStore struct {
	dir     string
	runsDir string
	mu      sync.Mutex
}

// NewRunStore - creates file backed run storage under dir
func NewRunStore(dir string) (interfaces.RunStore, error) {
	runsDir := filepath.Join(dir, "runs")
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	return &runStore{
		dir:     dir,
		runsDir: runsDir,
	}, nil
}

// SaveRun - writes the run record and points the scenario's latest entry at it
func (s *runStore) SaveRun(result *entities.RunResult) error {
	if result.RunID == "" {
		return fmt.Errorf("run record has no run id")
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFile(filepath.Join(s.runsDir, result.RunID+".json"), data); err != nil {
		return err
	}

	index, err := s.loadIndex()
	if err != nil {
		return err
	}
	index[result.ScenarioID] = result.RunID

	data, err = json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(s.dir, latestFile), data)
}

// LoadRun - loads a run record by id
func (s *runStore) LoadRun(runID string) (*entities.RunResult, error) {
	data, err := os.ReadFile(filepath.Join(s.runsDir, filepath.Base(runID)+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var result entities.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return &result, nil
}

// Latest - loads the newest record of every scenario, ordered by scenario id
func (s *runStore) Latest() ([]*entities.RunResult, error) {
	s.mu.Lock()
	index, err := s.loadIndex()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]*entities.RunResult, 0, len(ids))
	for _, id := range ids {
		result, err := s.LoadRun(index[id])
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// WriteReport - writes a JUnit XML report named name.xml into the results directory
func (s *runStore) WriteReport(name string, results []*entities.RunResult) (string, error) {
	data, err := MarshalJUnit(name, results)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name+".xml")
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func (s *runStore) loadIndex() (map[string]string, error) {
	index := make(map[string]string)

	data, err := os.ReadFile(filepath.Join(s.dir, latestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return index, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", latestFile, err)
	}
	return index, nil
}

// writeFile replaces path atomically
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
