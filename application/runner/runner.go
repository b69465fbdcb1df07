package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"biztrack_e2e/domain/entities"
	"biztrack_e2e/domain/interfaces"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Options controls how scenarios are replayed
type Options struct {
	BaseURL       string
	Launch        interfaces.LaunchOptions
	StepPause     time.Duration // fixed pause before every interactive step
	AssertTimeout time.Duration // used when a scenario sets none
	ArtifactsDir  string        // failure screenshots go to <ArtifactsDir>/screenshots
	Parallel      int
}

type Runner struct {
	driver   interfaces.Driver
	security interfaces.Guard
	store    interfaces.RunStore
	opts     Options
	logger   *logrus.Logger
}

// NewRunner - creates new scenario runner. store may be nil.
func NewRunner(driver interfaces.Driver, security interfaces.Guard, store interfaces.RunStore, opts Options, logger *logrus.Logger) *Runner {
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	return &Runner{
		driver:   driver,
		security: security,
		store:    store,
		opts:     opts,
		logger:   logger,
	}
}

// RunAll - runs every scenario in its own session, at most Parallel at a time.
// Results keep the order of scenarios.
func (r *Runner) RunAll(ctx context.Context, scenarios []*entities.Scenario) []*entities.RunResult {
	results := make([]*entities.RunResult, len(scenarios))

	var g errgroup.Group
	g.SetLimit(r.opts.Parallel)

	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			results[i] = r.Run(ctx, sc)
			return nil
		})
	}
	g.Wait()

	return results
}

// Run - replays one scenario: launch, open, steps, one assertion, teardown.
// The session is closed on every path once it was launched.
func (r *Runner) Run(ctx context.Context, sc *entities.Scenario) (result *entities.RunResult) {
	result = &entities.RunResult{
		RunID:      uuid.NewString(),
		ScenarioID: sc.ID,
		Title:      sc.Title,
		StartedAt:  time.Now(),
		Steps:      make([]entities.StepResult, 0, len(sc.Steps)),
	}
	log := r.logger.WithFields(logrus.Fields{
		"scenario": sc.ID,
		"run":      result.RunID,
		"driver":   r.driver.Name(),
	})

	defer func() {
		result.Duration = time.Since(result.StartedAt)
		r.save(result, log)
	}()

	if err := r.security.Allow(ctx, sc); err != nil {
		result.Status = entities.RunSkipped
		result.ErrorKind = entities.ErrorKindOf(err)
		result.Error = err.Error()
		log.Warnf("Skipped: %v", err)
		return result
	}

	if err := ctx.Err(); err != nil {
		r.fail(result, fmt.Errorf("scenario canceled: %w", err), log)
		return result
	}

	log.Infof("Starting scenario: %s", sc.Title)

	session, err := r.driver.Launch(ctx, r.opts.Launch)
	if err != nil {
		r.fail(result, fmt.Errorf("failed to launch browser: %w", err), log)
		return result
	}
	defer func() {
		if err := session.Close(); err != nil {
			result.TeardownError = err.Error()
			log.Warnf("Teardown failed: %v", err)
		}
	}()

	if err := r.execute(ctx, session, sc, result, log); err != nil {
		r.fail(result, err, log)
		r.capture(ctx, session, sc, result, log)
		return result
	}

	result.Status = entities.RunPassed
	log.Infof("Passed: %q is visible", sc.Assert.Text)
	return result
}

// execute opens the start page, replays the steps in order and issues the
// single terminal assertion once all of them succeeded
func (r *Runner) execute(ctx context.Context, session interfaces.Session, sc *entities.Scenario, result *entities.RunResult, log *logrus.Entry) error {
	start := r.resolve(sc.Start)
	log.Debugf("Opening %s", start)
	if err := session.Open(ctx, start); err != nil {
		return fmt.Errorf("failed to open start page: %w", err)
	}

	pause := r.opts.StepPause
	if sc.Pause != nil {
		pause = *sc.Pause
	}

	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scenario canceled: %w", err)
		}

		if step.Interactive() {
			if err := sleep(ctx, pause); err != nil {
				return fmt.Errorf("scenario canceled: %w", err)
			}
		}

		log.WithFields(logrus.Fields{
			"step": i + 1,
			"risk": r.security.RiskLevel(ctx, step),
		}).Infof("Step %d/%d: %s", i+1, len(sc.Steps), step.Describe())

		started := time.Now()
		err := r.perform(ctx, session, step)
		stepResult := entities.StepResult{
			Index:       i,
			Kind:        step.Kind,
			Description: step.Describe(),
			Duration:    time.Since(started),
		}
		if err != nil {
			stepResult.Error = err.Error()
			result.Steps = append(result.Steps, stepResult)
			return fmt.Errorf("step %d (%s): %w", i+1, step.Describe(), err)
		}
		result.Steps = append(result.Steps, stepResult)
	}

	timeout := sc.Assert.Timeout
	if timeout == 0 {
		timeout = r.opts.AssertTimeout
	}

	result.Asserted = true
	if err := session.ExpectVisible(ctx, sc.Assert.Text, timeout); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("scenario canceled: %w", ctx.Err())
		}
		return &entities.AssertionError{
			ScenarioID: sc.ID,
			Text:       sc.Assert.Text,
			Message:    sc.Assert.FailureMessage(),
			Timeout:    timeout,
			Err:        err,
		}
	}
	return nil
}

// perform - executes single step
func (r *Runner) perform(ctx context.Context, session interfaces.Session, step entities.Step) error {
	switch step.Kind {
	case entities.StepGoto:
		return session.Open(ctx, r.resolve(step.URL))
	case entities.StepFill:
		return session.Fill(ctx, step.Locator, step.Text)
	case entities.StepClick:
		return session.Click(ctx, step.Locator)
	case entities.StepUpload:
		return session.Upload(ctx, step.Locator, step.Files)
	case entities.StepPause:
		return sleep(ctx, step.Duration)
	default:
		return fmt.Errorf("unknown step kind: %s", step.Kind)
	}
}

func (r *Runner) fail(result *entities.RunResult, err error, log *logrus.Entry) {
	var assertErr *entities.AssertionError
	if errors.As(err, &assertErr) {
		result.Status = entities.RunFailed
	} else {
		result.Status = entities.RunError
	}
	result.ErrorKind = entities.ErrorKindOf(err)
	result.Error = err.Error()

	log.WithField("kind", result.ErrorKind).Errorf("Scenario %s: %v", result.Status, err)
}

// capture records page diagnostics and a screenshot before teardown
func (r *Runner) capture(ctx context.Context, session interfaces.Session, sc *entities.Scenario, result *entities.RunResult, log *logrus.Entry) {
	ctx = context.WithoutCancel(ctx)

	info, err := session.PageInfo(ctx)
	if err != nil {
		log.Debugf("Failed to capture page info: %v", err)
	}
	result.Page = info

	if r.opts.ArtifactsDir == "" {
		return
	}
	path := filepath.Join(r.opts.ArtifactsDir, "screenshots", fmt.Sprintf("%s_%s.png", sc.ID, result.RunID))
	if err := session.Screenshot(ctx, path); err != nil {
		log.Warnf("Failed to take screenshot: %v", err)
		return
	}
	result.Screenshot = path
	log.Infof("Screenshot saved: %s", path)
}

func (r *Runner) save(result *entities.RunResult, log *logrus.Entry) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveRun(result); err != nil {
		log.Warnf("Failed to save run: %v", err)
	}
}

// resolve joins relative paths onto the base url
func (r *Runner) resolve(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return strings.TrimRight(r.opts.BaseURL, "/") + "/" + strings.TrimLeft(target, "/")
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
