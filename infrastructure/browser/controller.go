package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"biztrack_e2e/domain/entities"
	"biztrack_e2e/domain/interfaces"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// DefaultArgs are the fixed window/process arguments every browser is launched with
var DefaultArgs = []string{
	"--window-size=1280,720",
	"--disable-dev-shm-usage",
	"--ipc=host",
	"--single-process",
}

// DefaultLaunchOptions returns the launch settings of the generated scenarios
func DefaultLaunchOptions() interfaces.LaunchOptions {
	return interfaces.LaunchOptions{
		Headless:       true,
		Args:           DefaultArgs,
		DefaultTimeout: 5 * time.Second,
		NavTimeout:     10 * time.Second,
		SettleTimeout:  3 * time.Second,
		Viewport:       interfaces.Viewport{Width: 1280, Height: 720},
	}
}

// PlaywrightDriver launches sessions through playwright-go
type PlaywrightDriver struct {
	logger *logrus.Logger
}

// NewPlaywrightDriver - creates new playwright driver
func NewPlaywrightDriver(logger *logrus.Logger) *PlaywrightDriver {
	return &PlaywrightDriver{logger: logger}
}

func (d *PlaywrightDriver) Name() string {
	return "playwright"
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    interfaces.LaunchOptions
	logger  *logrus.Logger

	pages      []playwright.Page
	pagesMutex sync.Mutex
}

// Launch - starts playwright, launches chromium, opens a context and a page.
// A partially built session is torn down before an error is returned.
func (d *PlaywrightDriver) Launch(ctx context.Context, opts interfaces.LaunchOptions) (interfaces.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	s := &playwrightSession{pw: pw, opts: opts, logger: d.logger}

	s.browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.Args,
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to launch browser: %w", err), s.Close())
	}

	contextOptions := playwright.BrowserNewContextOptions{}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		contextOptions.Viewport = &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		}
	}
	s.context, err = s.browser.NewContext(contextOptions)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to create context: %w", err), s.Close())
	}
	s.context.SetDefaultTimeout(millis(opts.DefaultTimeout))

	page, err := s.context.NewPage()
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to create page: %w", err), s.Close())
	}
	s.trackPage(page)
	s.context.OnPage(s.trackPage)

	return s, nil
}

// trackPage keeps the list of open pages; the newest one receives actions
func (s *playwrightSession) trackPage(page playwright.Page) {
	s.pagesMutex.Lock()
	defer s.pagesMutex.Unlock()

	for _, p := range s.pages {
		if p == page {
			return
		}
	}
	s.pages = append(s.pages, page)

	page.OnClose(func(closedPage playwright.Page) {
		s.pagesMutex.Lock()
		defer s.pagesMutex.Unlock()

		for i, p := range s.pages {
			if p == closedPage {
				s.pages = append(s.pages[:i], s.pages[i+1:]...)
				break
			}
		}
	})
}

func (s *playwrightSession) currentPage() (playwright.Page, error) {
	s.pagesMutex.Lock()
	defer s.pagesMutex.Unlock()

	if len(s.pages) == 0 {
		return nil, fmt.Errorf("no open page")
	}
	return s.pages[len(s.pages)-1], nil
}

// Open - navigates to url waiting for commit, then settles the page and its frames
func (s *playwrightSession) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	page, err := s.currentPage()
	if err != nil {
		return err
	}

	_, err = page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateCommit,
		Timeout:   playwright.Float(millis(s.opts.NavTimeout)),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, classify(err))
	}

	s.settle(page)
	return nil
}

// settle waits for DOMContentLoaded on the page and every frame. Failures are ignored.
func (s *playwrightSession) settle(page playwright.Page) {
	timeout := playwright.Float(millis(s.opts.SettleTimeout))

	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: timeout,
	}); err != nil {
		s.logger.Debugf("page did not reach domcontentloaded: %v", err)
	}

	for _, frame := range page.Frames() {
		if err := frame.WaitForLoadState(playwright.FrameWaitForLoadStateOptions{
			State:   playwright.LoadStateDomcontentloaded,
			Timeout: timeout,
		}); err != nil {
			s.logger.Debugf("frame %s did not reach domcontentloaded: %v", frame.URL(), err)
		}
	}
}

func (s *playwrightSession) locate(loc entities.Locator) (playwright.Locator, error) {
	page, err := s.currentPage()
	if err != nil {
		return nil, err
	}
	return page.Locator(Selector(loc)).Nth(0), nil
}

// Fill - types text into the first element matching loc
func (s *playwrightSession) Fill(ctx context.Context, loc entities.Locator, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	locator, err := s.locate(loc)
	if err != nil {
		return err
	}

	if err := locator.Fill(text, playwright.LocatorFillOptions{
		Timeout: playwright.Float(millis(s.opts.DefaultTimeout)),
	}); err != nil {
		return fmt.Errorf("failed to fill %s: %w", loc, classify(err))
	}
	return nil
}

// Click - clicks the first element matching loc
func (s *playwrightSession) Click(ctx context.Context, loc entities.Locator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	locator, err := s.locate(loc)
	if err != nil {
		return err
	}

	if err := locator.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(millis(s.opts.DefaultTimeout)),
	}); err != nil {
		return fmt.Errorf("failed to click %s: %w", loc, classify(err))
	}
	return nil
}

// Upload - sets files on the file input matching loc
func (s *playwrightSession) Upload(ctx context.Context, loc entities.Locator, files []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	paths, err := absPaths(files)
	if err != nil {
		return err
	}
	locator, err := s.locate(loc)
	if err != nil {
		return err
	}

	if err := locator.SetInputFiles(paths, playwright.LocatorSetInputFilesOptions{
		Timeout: playwright.Float(millis(s.opts.DefaultTimeout)),
	}); err != nil {
		return fmt.Errorf("failed to upload into %s: %w", loc, classify(err))
	}
	return nil
}

// ExpectVisible - waits until the first element with text is visible
func (s *playwrightSession) ExpectVisible(ctx context.Context, text string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	page, err := s.currentPage()
	if err != nil {
		return err
	}

	err = page.Locator(Selector(entities.Locator{Kind: entities.LocatorText, Expr: text})).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(millis(timeout)),
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// PageInfo - captures url, title and visible text of the current page
func (s *playwrightSession) PageInfo(ctx context.Context) (*entities.PageInfo, error) {
	page, err := s.currentPage()
	if err != nil {
		return nil, err
	}

	info := &entities.PageInfo{URL: page.URL()}
	info.Title, _ = page.Title()

	text, err := page.Locator("body").InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(millis(s.opts.SettleTimeout)),
	})
	if err != nil {
		return info, fmt.Errorf("failed to read page text: %w", err)
	}
	info.TextContent = entities.TruncateText(strings.TrimSpace(text), entities.MaxPageText)

	return info, nil
}

// Screenshot - takes a full page screenshot of the current page
func (s *playwrightSession) Screenshot(ctx context.Context, path string) error {
	page, err := s.currentPage()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	_, err = page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

// Close - closes the context and the browser, then stops playwright.
// Errors from targets that are already gone are ignored.
func (s *playwrightSession) Close() error {
	var closeErr error

	if s.context != nil {
		if err := s.context.Close(); err != nil && !isClosedErr(err) {
			closeErr = multierr.Append(closeErr, fmt.Errorf("failed to close context: %w", err))
		}
		s.context = nil
	}

	if s.browser != nil {
		if err := s.browser.Close(); err != nil && !isClosedErr(err) {
			closeErr = multierr.Append(closeErr, fmt.Errorf("failed to close browser: %w", err))
		}
		s.browser = nil
	}

	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			closeErr = multierr.Append(closeErr, fmt.Errorf("failed to stop playwright: %w", err))
		}
		s.pw = nil
	}

	return closeErr
}

// Selector - renders a locator as a playwright selector string
func Selector(loc entities.Locator) string {
	if loc.Kind == entities.LocatorTestID {
		return "data-testid=" + loc.Expr
	}
	return loc.String()
}

// classify maps playwright errors onto the scenario failure taxonomy
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		if strings.Contains(err.Error(), "waiting for locator") || strings.Contains(err.Error(), "waiting for selector") {
			return fmt.Errorf("%w: %w: %v", entities.ErrElementNotFound, entities.ErrActionTimeout, err)
		}
		return fmt.Errorf("%w: %v", entities.ErrActionTimeout, err)
	}
	if strings.Contains(err.Error(), "No node found") || strings.Contains(err.Error(), "strict mode violation") {
		return fmt.Errorf("%w: %v", entities.ErrElementNotFound, err)
	}
	return err
}

func isClosedErr(err error) bool {
	if errors.Is(err, playwright.ErrTargetClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "closed") || strings.Contains(errStr, "target closed")
}

func absPaths(files []string) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		p, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("upload fixture %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func millis(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}
