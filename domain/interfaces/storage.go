package interfaces

import "biztrack_e2e/domain/entities"

// RunStore persists scenario run records
type RunStore interface {
	// SaveRun stores one run record
	SaveRun(result *entities.RunResult) error

	// LoadRun loads a run record by run id
	LoadRun(runID string) (*entities.RunResult, error)

	// Latest returns the most recent record of every scenario
	Latest() ([]*entities.RunResult, error)

	// WriteReport writes a CI report for a batch of results
	WriteReport(name string, results []*entities.RunResult) (string, error)
}
