package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"biztrack_e2e/domain/entities"
	"biztrack_e2e/domain/interfaces"
)

// fakeDriver hands out fakeSessions and counts launches
type fakeDriver struct {
	mu        sync.Mutex
	launchErr error
	sessions  []*fakeSession
	configure func(*fakeSession)
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Launch(ctx context.Context, opts interfaces.LaunchOptions) (interfaces.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.launchErr != nil {
		return nil, d.launchErr
	}
	s := &fakeSession{opts: opts, visible: map[string]bool{}}
	if d.configure != nil {
		d.configure(s)
	}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDriver) launched() []*fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeSession(nil), d.sessions...)
}

// fakeSession records every call. failAt is the 1-based action index that fails.
type fakeSession struct {
	mu      sync.Mutex
	opts    interfaces.LaunchOptions
	calls   []string
	visible map[string]bool

	failAt      int
	failErr     error
	openErr     error
	closeErr    error
	onAction    func(n int)
	actions     int
	expects     int
	lastTimeout time.Duration
	closes      int
	shotPaths   []string
}

func (s *fakeSession) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeSession) action(call string) error {
	s.record(call)

	s.mu.Lock()
	s.actions++
	n := s.actions
	hook := s.onAction
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if s.failAt == n {
		if s.failErr != nil {
			return s.failErr
		}
		return fmt.Errorf("%w: %s", entities.ErrElementNotFound, call)
	}
	return nil
}

func (s *fakeSession) Open(ctx context.Context, url string) error {
	s.record("open " + url)
	return s.openErr
}

func (s *fakeSession) Fill(ctx context.Context, loc entities.Locator, text string) error {
	return s.action("fill " + loc.String())
}

func (s *fakeSession) Click(ctx context.Context, loc entities.Locator) error {
	if err := s.action("click " + loc.String()); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *fakeSession) Upload(ctx context.Context, loc entities.Locator, files []string) error {
	return s.action(fmt.Sprintf("upload %s %v", loc, files))
}

func (s *fakeSession) ExpectVisible(ctx context.Context, text string, timeout time.Duration) error {
	s.record("expect " + text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expects++
	s.lastTimeout = timeout
	if !s.visible[text] {
		return fmt.Errorf("%w: text %q", entities.ErrActionTimeout, text)
	}
	return nil
}

func (s *fakeSession) PageInfo(ctx context.Context) (*entities.PageInfo, error) {
	s.record("pageinfo")
	return &entities.PageInfo{URL: "http://app.test/clients", Title: "BizTrack"}, nil
}

func (s *fakeSession) Screenshot(ctx context.Context, path string) error {
	s.record("screenshot")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shotPaths = append(s.shotPaths, path)
	return nil
}

func (s *fakeSession) Close() error {
	s.record("close")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.closeErr
}

func (s *fakeSession) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// allowAll is a guard that refuses only explicitly destructive scenarios
type allowAll struct{ refuse bool }

func (g allowAll) Allow(ctx context.Context, sc *entities.Scenario) error {
	if g.refuse && sc.Destructive {
		return fmt.Errorf("%w: %s", entities.ErrDestructive, sc.ID)
	}
	return nil
}

func (g allowAll) IsDestructive(ctx context.Context, sc *entities.Scenario) bool {
	return sc.Destructive
}

func (g allowAll) RiskLevel(ctx context.Context, step entities.Step) string {
	return "low"
}

// memStore keeps saved runs in memory
type memStore struct {
	mu   sync.Mutex
	runs []*entities.RunResult
}

func (m *memStore) SaveRun(result *entities.RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, result)
	return nil
}

func (m *memStore) LoadRun(runID string) (*entities.RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.RunID == runID {
			return r, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *memStore) Latest() ([]*entities.RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entities.RunResult(nil), m.runs...), nil
}

func (m *memStore) WriteReport(name string, results []*entities.RunResult) (string, error) {
	return "", nil
}
