package entities

import (
	"fmt"
	"strings"
	"time"
)

// StepKind represents the type of interaction a scenario step performs
type StepKind string

const (
	StepGoto   StepKind = "goto"
	StepFill   StepKind = "fill"
	StepClick  StepKind = "click"
	StepUpload StepKind = "upload"
	StepPause  StepKind = "pause"
)

// Step represents a single scripted interaction
type Step struct {
	Kind     StepKind      `json:"kind" yaml:"kind"`
	Locator  Locator       `json:"locator,omitempty" yaml:"locator,omitempty"`
	Text     string        `json:"text,omitempty" yaml:"text,omitempty"`
	Secret   bool          `json:"secret,omitempty" yaml:"secret,omitempty"`
	URL      string        `json:"url,omitempty" yaml:"url,omitempty"`
	Files    []string      `json:"files,omitempty" yaml:"files,omitempty"`
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	Note     string        `json:"note,omitempty" yaml:"note,omitempty"`
}

// Validate - checks that the step carries what its kind needs
func (s Step) Validate() error {
	switch s.Kind {
	case StepGoto:
		if s.URL == "" {
			return fmt.Errorf("goto step requires a url")
		}
	case StepFill:
		if s.Locator.IsZero() {
			return fmt.Errorf("fill step requires a locator")
		}
	case StepClick:
		if s.Locator.IsZero() {
			return fmt.Errorf("click step requires a locator")
		}
	case StepUpload:
		if s.Locator.IsZero() {
			return fmt.Errorf("upload step requires a locator")
		}
		if len(s.Files) == 0 {
			return fmt.Errorf("upload step requires at least one file")
		}
	case StepPause:
		if s.Duration <= 0 {
			return fmt.Errorf("pause step requires a positive duration")
		}
		return nil
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}

	if !s.Locator.IsZero() {
		return s.Locator.Validate()
	}
	return nil
}

// Interactive reports whether the step touches the page and is therefore
// preceded by the scenario's fixed pause.
func (s Step) Interactive() bool {
	return s.Kind == StepFill || s.Kind == StepClick || s.Kind == StepUpload
}

// Describe - one-line human readable summary used in logs and reports
func (s Step) Describe() string {
	if s.Note != "" {
		return s.Note
	}
	switch s.Kind {
	case StepGoto:
		return fmt.Sprintf("navigate to %s", s.URL)
	case StepFill:
		if s.Secret {
			return fmt.Sprintf("fill %s with ****", s.Locator)
		}
		return fmt.Sprintf("fill %s with %q", s.Locator, s.Text)
	case StepClick:
		return fmt.Sprintf("click %s", s.Locator)
	case StepUpload:
		return fmt.Sprintf("upload %s into %s", strings.Join(s.Files, ", "), s.Locator)
	case StepPause:
		return fmt.Sprintf("pause %s", s.Duration)
	}
	return string(s.Kind)
}
