package interfaces

import (
	"context"

	"biztrack_e2e/domain/entities"
)

// Guard decides whether a scenario may run against the target application
type Guard interface {
	// Allow returns entities.ErrDestructive (wrapped) when the scenario must not run
	Allow(ctx context.Context, scenario *entities.Scenario) error

	// IsDestructive reports whether the scenario mutates data irreversibly
	IsDestructive(ctx context.Context, scenario *entities.Scenario) bool

	// RiskLevel returns low, medium or high for a single step
	RiskLevel(ctx context.Context, step entities.Step) string
}
