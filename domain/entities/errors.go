package entities

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrElementNotFound is returned when a locator resolves to nothing
	ErrElementNotFound = errors.New("element not found")
	// ErrActionTimeout is returned when an action does not complete in time
	ErrActionTimeout = errors.New("action timed out")
	// ErrDestructive is returned when a scenario is refused by the guard
	ErrDestructive = errors.New("destructive scenario not allowed")
)

// ErrorKind classifies why a run did not pass
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindElementNotFound ErrorKind = "element_not_found"
	KindTimeout         ErrorKind = "timeout"
	KindAssertion       ErrorKind = "assertion"
	KindCanceled        ErrorKind = "canceled"
	KindGuard           ErrorKind = "guard"
	KindOther           ErrorKind = "other"
)

// AssertionError is raised when the terminal visibility check fails
type AssertionError struct {
	ScenarioID string
	Text       string
	Message    string
	Timeout    time.Duration
	Err        error
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: test case failed: %s; not visible within %s", e.ScenarioID, e.Message, e.Timeout)
}

func (e *AssertionError) Unwrap() error {
	return e.Err
}

// ErrorKindOf - maps an error returned by a run onto the failure taxonomy
func ErrorKindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var assertErr *AssertionError
	switch {
	case errors.As(err, &assertErr):
		return KindAssertion
	case errors.Is(err, ErrDestructive):
		return KindGuard
	case errors.Is(err, ErrElementNotFound):
		return KindElementNotFound
	case errors.Is(err, ErrActionTimeout):
		return KindTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindOther
}
