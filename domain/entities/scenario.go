package entities

import (
	"fmt"
	"time"
)

// Scenario is one end-to-end user flow: an ordered list of steps and a
// single terminal assertion.
type Scenario struct {
	ID          string         `json:"id" yaml:"id"`
	Title       string         `json:"title" yaml:"title"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Start       string         `json:"start" yaml:"start"`
	Pause       *time.Duration `json:"pause,omitempty" yaml:"pause,omitempty"` // nil uses the runner default
	Destructive bool           `json:"destructive,omitempty" yaml:"destructive,omitempty"`
	Steps       []Step         `json:"steps" yaml:"steps"`
	Assert      Assertion      `json:"assert" yaml:"assert"`
}

// Assertion is the terminal visibility check of a scenario
type Assertion struct {
	Text    string        `json:"text" yaml:"text"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Message string        `json:"message,omitempty" yaml:"message,omitempty"`
}

// Validate - checks the scenario is runnable
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("scenario has no id")
	}
	if s.Start == "" {
		return fmt.Errorf("scenario %s: no start url", s.ID)
	}
	if s.Pause != nil && *s.Pause < 0 {
		return fmt.Errorf("scenario %s: negative pause", s.ID)
	}
	for i, step := range s.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("scenario %s: step %d: %w", s.ID, i+1, err)
		}
	}
	if s.Assert.Text == "" {
		return fmt.Errorf("scenario %s: assertion text is required", s.ID)
	}
	if s.Assert.Timeout < 0 {
		return fmt.Errorf("scenario %s: negative assertion timeout", s.ID)
	}
	return nil
}

// HasTag reports whether the scenario carries the tag
func (s *Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// FailureMessage returns the message raised when the assertion fails. It
// always names the literal expected text.
func (a Assertion) FailureMessage() string {
	if a.Message == "" {
		return fmt.Sprintf("expected %q to be visible", a.Text)
	}
	return fmt.Sprintf("%s (expected text %q)", a.Message, a.Text)
}
