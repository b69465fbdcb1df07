package security

import (
	"context"
	"fmt"
	"strings"

	"biztrack_e2e/domain/entities"
	"biztrack_e2e/domain/interfaces"

	"github.com/sirupsen/logrus"
)

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// destructiveKeywords mark clicks that remove or reset application data
var destructiveKeywords = []string{
	"delete",
	"remove",
	"bulk delete",
	"clear",
	"reset",
	"trash",
}

type SecurityLayer struct {
	logger           *logrus.Logger
	allowDestructive bool
}

func NewSecurityLayer(logger *logrus.Logger, allowDestructive bool) *SecurityLayer {
	return &SecurityLayer{
		logger:           logger,
		allowDestructive: allowDestructive,
	}
}

// Allow - refuses destructive scenarios unless destructive runs are enabled
func (s *SecurityLayer) Allow(ctx context.Context, scenario *entities.Scenario) error {
	if !s.IsDestructive(ctx, scenario) {
		return nil
	}

	if s.allowDestructive {
		s.logger.WithField("scenario", scenario.ID).Warn("Running destructive scenario")
		return nil
	}

	return fmt.Errorf("%w: %s (set ALLOW_DESTRUCTIVE=true to run it)", entities.ErrDestructive, scenario.ID)
}

// IsDestructive - a scenario is destructive when flagged or when any click mentions a destructive keyword
func (s *SecurityLayer) IsDestructive(ctx context.Context, scenario *entities.Scenario) bool {
	if scenario.Destructive {
		return true
	}

	for _, step := range scenario.Steps {
		if s.isDestructiveStep(step) {
			return true
		}
	}

	return false
}

func (s *SecurityLayer) RiskLevel(ctx context.Context, step entities.Step) string {
	if s.isDestructiveStep(step) {
		return RiskHigh
	}

	switch step.Kind {
	case entities.StepFill, entities.StepUpload:
		// Typing and uploads change form state
		return RiskMedium
	case entities.StepClick:
		return RiskMedium
	}

	return RiskLow
}

func (s *SecurityLayer) isDestructiveStep(step entities.Step) bool {
	if step.Kind != entities.StepClick {
		return false
	}

	lowerSelector := strings.ToLower(step.Locator.Expr)
	lowerNote := strings.ToLower(step.Note)

	for _, keyword := range destructiveKeywords {
		if strings.Contains(lowerSelector, keyword) || strings.Contains(lowerNote, keyword) {
			return true
		}
	}

	return false
}

// Ensure SecurityLayer implements Guard interface
var _ interfaces.Guard = (*SecurityLayer)(nil)
