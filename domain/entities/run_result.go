package entities

import "time"

// RunStatus represents the outcome of a scenario run
type RunStatus string

const (
	RunPassed  RunStatus = "passed"
	RunFailed  RunStatus = "failed"  // terminal assertion not satisfied
	RunError   RunStatus = "error"   // a step, the launch or the context aborted the run
	RunSkipped RunStatus = "skipped" // refused before launch
)

// RunResult records one execution of one scenario
type RunResult struct {
	RunID         string        `json:"run_id"`
	ScenarioID    string        `json:"scenario_id"`
	Title         string        `json:"title"`
	Status        RunStatus     `json:"status"`
	ErrorKind     ErrorKind     `json:"error_kind,omitempty"`
	Error         string        `json:"error,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Steps         []StepResult  `json:"steps"`
	Asserted      bool          `json:"asserted"`
	Page          *PageInfo     `json:"page,omitempty"`
	Screenshot    string        `json:"screenshot,omitempty"`
	TeardownError string        `json:"teardown_error,omitempty"`
}

// StepResult records one replayed step
type StepResult struct {
	Index       int           `json:"index"`
	Kind        StepKind      `json:"kind"`
	Description string        `json:"description"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// Passed reports whether the scenario passed
func (r *RunResult) Passed() bool {
	return r.Status == RunPassed
}

// Succeeded reports whether the run should count as a success for the
// process exit status. Skipped scenarios do not fail a run.
func (r *RunResult) Succeeded() bool {
	return r.Status == RunPassed || r.Status == RunSkipped
}
