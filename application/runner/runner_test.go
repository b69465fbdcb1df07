package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"biztrack_e2e/domain/entities"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testOptions(t *testing.T) Options {
	return Options{
		BaseURL:       "http://app.test",
		AssertTimeout: 10 * time.Millisecond,
		ArtifactsDir:  t.TempDir(),
	}
}

func loginScenario() *entities.Scenario {
	return &entities.Scenario{
		ID:    "TC003",
		Title: "Logout successfully ends session",
		Start: "/",
		Steps: []entities.Step{
			{Kind: entities.StepFill, Locator: entities.MustLocator("css=#email"), Text: "qa@example.com"},
			{Kind: entities.StepFill, Locator: entities.MustLocator("css=#password"), Text: "secret", Secret: true},
			{Kind: entities.StepClick, Locator: entities.MustLocator("text=Sign In")},
			{Kind: entities.StepGoto, URL: "/clients"},
		},
		Assert: entities.Assertion{Text: "All Clients Database", Message: "clients page should load"},
	}
}

func TestRun_Passes(t *testing.T) {
	driver := &fakeDriver{configure: func(s *fakeSession) {
		s.visible["All Clients Database"] = true
	}}
	store := &memStore{}
	r := NewRunner(driver, allowAll{}, store, testOptions(t), quietLogger())

	result := r.Run(context.Background(), loginScenario())

	assert.Equal(t, entities.RunPassed, result.Status, result.Error)
	assert.True(t, result.Passed())
	assert.True(t, result.Asserted)
	assert.Len(t, result.Steps, 4)
	assert.NotEmpty(t, result.RunID)
	assert.Nil(t, result.Page)

	sessions := driver.launched()
	require.Len(t, sessions, 1)
	assert.Equal(t, []string{
		"open http://app.test/",
		"fill css=#email",
		"fill css=#password",
		"click text=Sign In",
		"open http://app.test/clients",
		"expect All Clients Database",
		"close",
	}, sessions[0].snapshot())

	require.Len(t, store.runs, 1)
	assert.Same(t, result, store.runs[0])
}

func TestRun_AssertionFailure(t *testing.T) {
	driver := &fakeDriver{}
	r := NewRunner(driver, allowAll{}, &memStore{}, testOptions(t), quietLogger())

	result := r.Run(context.Background(), loginScenario())

	assert.Equal(t, entities.RunFailed, result.Status)
	assert.Equal(t, entities.KindAssertion, result.ErrorKind)
	assert.Contains(t, result.Error, "All Clients Database")
	assert.Contains(t, result.Error, "clients page should load")
	require.NotNil(t, result.Page)
	assert.Equal(t, "http://app.test/clients", result.Page.URL)
	assert.NotEmpty(t, result.Screenshot)
	assert.True(t, strings.HasSuffix(result.Screenshot, ".png"))

	calls := driver.launched()[0].snapshot()
	assert.Equal(t, []string{"expect All Clients Database", "pageinfo", "screenshot", "close"}, calls[len(calls)-4:])
}

func TestRun_StepFailureStopsBeforeAssertion(t *testing.T) {
	driver := &fakeDriver{configure: func(s *fakeSession) { s.failAt = 2 }}
	r := NewRunner(driver, allowAll{}, &memStore{}, testOptions(t), quietLogger())

	result := r.Run(context.Background(), loginScenario())

	assert.Equal(t, entities.RunError, result.Status)
	assert.Equal(t, entities.KindElementNotFound, result.ErrorKind)
	assert.False(t, result.Asserted)
	require.Len(t, result.Steps, 2)
	assert.NotEmpty(t, result.Steps[1].Error)
	assert.Contains(t, result.Error, "step 2")
	assert.NotContains(t, result.Error, "secret")

	s := driver.launched()[0]
	assert.Zero(t, s.expects)
	assert.Equal(t, 1, s.closes)
}

func TestRun_StepTimeout(t *testing.T) {
	driver := &fakeDriver{configure: func(s *fakeSession) {
		s.failAt = 3
		s.failErr = fmt.Errorf("click: %w", entities.ErrActionTimeout)
	}}
	r := NewRunner(driver, allowAll{}, &memStore{}, testOptions(t), quietLogger())

	result := r.Run(context.Background(), loginScenario())
	assert.Equal(t, entities.RunError, result.Status)
	assert.Equal(t, entities.KindTimeout, result.ErrorKind)
}

func TestRun_OpenFailure(t *testing.T) {
	driver := &fakeDriver{configure: func(s *fakeSession) {
		s.openErr = fmt.Errorf("net::ERR_CONNECTION_REFUSED: %w", entities.ErrActionTimeout)
	}}
	r := NewRunner(driver, allowAll{}, &memStore{}, testOptions(t), quietLogger())

	result := r.Run(context.Background(), loginScenario())
	assert.Equal(t, entities.RunError, result.Status)
	assert.Empty(t, result.Steps)
	assert.Equal(t, 1, driver.launched()[0].closes)
}

func TestRun_LaunchFailure(t *testing.T) {
	driver := &fakeDriver{launchErr: errors.New("playwright not installed")}
	store := &memStore{}
	r := NewRunner(driver, allowAll{}, store, testOptions(t), quietLogger())

	result := r.Run(context.Background(), loginScenario())
	assert.Equal(t, entities.RunError, result.Status)
	assert.Equal(t, entities.KindOther, result.ErrorKind)
	assert.Contains(t, result.Error, "failed to launch browser")
	assert.Len(t, store.runs, 1)
}

func TestRun_TeardownError(t *testing.T) {
	driver := &fakeDriver{configure: func(s *fakeSession) {
		s.visible["All Clients Database"] = true
		s.closeErr = errors.New("browser already gone")
	}}
	r := NewRunner(driver, allowAll{}, &memStore{}, testOptions(t), quietLogger())

	result := r.Run(context.Background(), loginScenario())
	assert.Equal(t, entities.RunPassed, result.Status)
	assert.Equal(t, "browser already gone", result.TeardownError)
}

func TestRun_DestructiveSkipped(t *testing.T) {
	driver := &fakeDriver{}
	r := NewRunner(driver, allowAll{refuse: true}, &memStore{}, testOptions(t), quietLogger())

	sc := loginScenario()
	sc.Destructive = true

	result := r.Run(context.Background(), sc)
	assert.Equal(t, entities.RunSkipped, result.Status)
	assert.Equal(t, entities.KindGuard, result.ErrorKind)
	assert.True(t, result.Succeeded())
	assert.Empty(t, driver.launched())
}

func TestRun_CanceledDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver := &fakeDriver{}
	opts := testOptions(t)
	opts.StepPause = time.Hour
	r := NewRunner(driver, allowAll{}, &memStore{}, opts, quietLogger())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	done := make(chan *entities.RunResult, 1)
	go func() { done <- r.Run(ctx, loginScenario()) }()

	select {
	case result := <-done:
		assert.Equal(t, entities.RunError, result.Status)
		assert.Equal(t, entities.KindCanceled, result.ErrorKind)
		assert.Empty(t, result.Steps)
		assert.Equal(t, 1, driver.launched()[0].closes)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}

func TestRun_CanceledBeforeLaunch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	driver := &fakeDriver{}
	r := NewRunner(driver, allowAll{}, &memStore{}, testOptions(t), quietLogger())

	result := r.Run(ctx, loginScenario())
	assert.Equal(t, entities.KindCanceled, result.ErrorKind)
	assert.Empty(t, driver.launched())
}

func TestRun_ScenarioOverrides(t *testing.T) {
	driver := &fakeDriver{configure: func(s *fakeSession) { s.visible["ok"] = true }}
	opts := testOptions(t)
	opts.AssertTimeout = time.Second
	r := NewRunner(driver, allowAll{}, nil, opts, quietLogger())

	sc := &entities.Scenario{
		ID:     "X",
		Start:  "https://elsewhere.test/login",
		Assert: entities.Assertion{Text: "ok", Timeout: 5 * time.Second},
	}
	result := r.Run(context.Background(), sc)
	require.Equal(t, entities.RunPassed, result.Status)
	assert.Equal(t, "open https://elsewhere.test/login", driver.launched()[0].snapshot()[0])
	assert.Equal(t, 5*time.Second, driver.launched()[0].lastTimeout)
}

func TestRun_ScenarioDisablesPause(t *testing.T) {
	driver := &fakeDriver{configure: func(s *fakeSession) { s.visible["All Clients Database"] = true }}
	opts := testOptions(t)
	opts.StepPause = time.Hour
	r := NewRunner(driver, allowAll{}, nil, opts, quietLogger())

	sc := loginScenario()
	noPause := time.Duration(0)
	sc.Pause = &noPause

	done := make(chan *entities.RunResult, 1)
	go func() { done <- r.Run(context.Background(), sc) }()

	select {
	case result := <-done:
		assert.Equal(t, entities.RunPassed, result.Status)
		assert.Len(t, result.Steps, len(sc.Steps))
	case <-time.After(5 * time.Second):
		t.Fatal("scenario pause override was not applied")
	}
}

func TestResolve(t *testing.T) {
	r := NewRunner(&fakeDriver{}, allowAll{}, nil, Options{BaseURL: "http://localhost:5173/"}, quietLogger())

	assert.Equal(t, "http://localhost:5173/", r.resolve("/"))
	assert.Equal(t, "http://localhost:5173/", r.resolve(""))
	assert.Equal(t, "http://localhost:5173/clients", r.resolve("/clients"))
	assert.Equal(t, "http://localhost:5173/tasks", r.resolve("tasks"))
	assert.Equal(t, "https://x.test/a", r.resolve("https://x.test/a"))
}

func TestRunAll_KeepsOrderAndLimitsParallelism(t *testing.T) {
	var inFlight, peak int32
	driver := &fakeDriver{configure: func(s *fakeSession) {
		s.visible["ok"] = true
		s.onAction = func(int) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}
	}}
	opts := testOptions(t)
	opts.Parallel = 2
	r := NewRunner(driver, allowAll{}, &memStore{}, opts, quietLogger())

	var scenarios []*entities.Scenario
	for i := 0; i < 6; i++ {
		scenarios = append(scenarios, &entities.Scenario{
			ID:     fmt.Sprintf("S%d", i),
			Start:  "/",
			Steps:  []entities.Step{{Kind: entities.StepClick, Locator: entities.MustLocator("css=button")}},
			Assert: entities.Assertion{Text: "ok"},
		})
	}

	results := r.RunAll(context.Background(), scenarios)
	require.Len(t, results, len(scenarios))
	for i, result := range results {
		assert.Equal(t, scenarios[i].ID, result.ScenarioID)
		assert.Equal(t, entities.RunPassed, result.Status)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Len(t, driver.launched(), len(scenarios))
}

// Every launched session is closed exactly once, and the assertion is
// issued at most once, only after every step succeeded.
func TestRun_LifecycleProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kinds := []entities.StepKind{entities.StepFill, entities.StepClick, entities.StepUpload, entities.StepGoto, entities.StepPause}
		n := rapid.IntRange(0, 8).Draw(t, "steps")

		sc := &entities.Scenario{ID: "P", Start: "/", Assert: entities.Assertion{Text: "done"}}
		interactive := 0
		for i := 0; i < n; i++ {
			step := entities.Step{Kind: rapid.SampledFrom(kinds).Draw(t, "kind")}
			switch step.Kind {
			case entities.StepGoto:
				step.URL = "/next"
			case entities.StepPause:
				step.Duration = time.Microsecond
			case entities.StepUpload:
				step.Locator = entities.MustLocator("css=input[type=file]")
				step.Files = []string{"/tmp/clients.xlsx"}
			default:
				step.Locator = entities.MustLocator("css=#field")
			}
			if step.Interactive() {
				interactive++
			}
			sc.Steps = append(sc.Steps, step)
		}

		failAt := rapid.IntRange(0, interactive).Draw(t, "failAt")
		visible := rapid.Bool().Draw(t, "visible")
		launchFails := rapid.Bool().Draw(t, "launchFails")
		closeFails := rapid.Bool().Draw(t, "closeFails")

		driver := &fakeDriver{configure: func(s *fakeSession) {
			s.failAt = failAt
			s.visible["done"] = visible
			if closeFails {
				s.closeErr = errors.New("close failed")
			}
		}}
		if launchFails {
			driver.launchErr = errors.New("no browser")
		}

		r := NewRunner(driver, allowAll{}, &memStore{}, Options{BaseURL: "http://app.test"}, quietLogger())
		result := r.Run(context.Background(), sc)

		sessions := driver.launched()
		if launchFails {
			if len(sessions) != 0 {
				t.Fatalf("expected no session, got %d", len(sessions))
			}
			if result.Status != entities.RunError {
				t.Fatalf("expected error status, got %s", result.Status)
			}
			return
		}

		if len(sessions) != 1 {
			t.Fatalf("expected one session, got %d", len(sessions))
		}
		s := sessions[0]
		if s.closes != 1 {
			t.Fatalf("session closed %d times", s.closes)
		}
		calls := s.snapshot()
		if calls[len(calls)-1] != "close" {
			t.Fatalf("close is not the last call: %v", calls)
		}

		stepFailed := failAt > 0
		if stepFailed {
			if s.expects != 0 {
				t.Fatalf("assertion issued after a failed step")
			}
			if result.Status != entities.RunError {
				t.Fatalf("expected error status, got %s", result.Status)
			}
			return
		}

		if s.expects != 1 {
			t.Fatalf("expected exactly one assertion, got %d", s.expects)
		}
		if len(result.Steps) != len(sc.Steps) {
			t.Fatalf("expected %d step results, got %d", len(sc.Steps), len(result.Steps))
		}
		if visible && result.Status != entities.RunPassed {
			t.Fatalf("expected pass, got %s: %s", result.Status, result.Error)
		}
		if !visible {
			if result.Status != entities.RunFailed {
				t.Fatalf("expected failed status, got %s", result.Status)
			}
			if !strings.Contains(result.Error, `"done"`) {
				t.Fatalf("failure message does not name the text: %s", result.Error)
			}
		}
		if closeFails != (result.TeardownError != "") {
			t.Fatalf("teardown error not recorded: %q", result.TeardownError)
		}
	})
}
