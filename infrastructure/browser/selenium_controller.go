package browser

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"biztrack_e2e/domain/entities"
	"biztrack_e2e/domain/interfaces"

	"github.com/sirupsen/logrus"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"go.uber.org/multierr"
)

// SeleniumDriver launches sessions through chromedriver
type SeleniumDriver struct {
	logger       *logrus.Logger
	driverPath   string
	chromeBinary string
}

type seleniumSession struct {
	wd      selenium.WebDriver
	service *selenium.Service
	opts    interfaces.LaunchOptions
	logger  *logrus.Logger
}

// NewSeleniumDriver - creates a selenium driver. Empty paths are discovered.
func NewSeleniumDriver(logger *logrus.Logger, driverPath, chromeBinary string) *SeleniumDriver {
	return &SeleniumDriver{
		logger:       logger,
		driverPath:   driverPath,
		chromeBinary: chromeBinary,
	}
}

func (d *SeleniumDriver) Name() string {
	return "selenium"
}

// findChromeDriver - finds ChromeDriver executable path
func findChromeDriver(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured, nil
		}
		return "", fmt.Errorf("chromedriver not found at %s", configured)
	}

	commonPaths := []string{
		"/usr/local/bin/chromedriver",
		"/usr/bin/chromedriver",
		"/opt/homebrew/bin/chromedriver",
		filepath.Join(os.Getenv("HOME"), "bin", "chromedriver"),
	}

	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if path, err := exec.LookPath("chromedriver"); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("chromedriver not found. Please install it or set CHROMEDRIVER_PATH")
}

// findChromeBinary - finds Chrome/Chromium browser executable path
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	for _, name := range []string{"google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// freePort asks the kernel for an unused port so parallel sessions do not collide
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// Launch - starts chromedriver and opens a headless chrome session
func (d *SeleniumDriver) Launch(ctx context.Context, opts interfaces.LaunchOptions) (interfaces.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	driverPath, err := findChromeDriver(d.driverPath)
	if err != nil {
		return nil, err
	}
	d.logger.Debugf("Using ChromeDriver at: %s", driverPath)

	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve chromedriver port: %w", err)
	}

	service, err := selenium.NewChromeDriverService(driverPath, port)
	if err != nil {
		return nil, fmt.Errorf("failed to start chromedriver: %w", err)
	}
	s := &seleniumSession{service: service, opts: opts, logger: d.logger}

	args := append([]string{}, opts.Args...)
	if opts.Headless {
		args = append(args, "--headless=new")
	}
	chromeCaps := chrome.Capabilities{Args: args}
	if binary := findChromeBinary(d.chromeBinary); binary != "" {
		chromeCaps.Path = binary
	}

	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chromeCaps)

	s.wd, err = selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d/wd/hub", port))
	if err != nil {
		if strings.Contains(err.Error(), "cannot find Chrome binary") {
			err = fmt.Errorf("chrome browser not found, set CHROME_BINARY_PATH: %w", err)
		}
		return nil, multierr.Append(fmt.Errorf("failed to create webdriver: %w", err), s.Close())
	}

	if err := s.wd.SetPageLoadTimeout(opts.NavTimeout); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to set page load timeout: %w", err), s.Close())
	}

	return s, nil
}

// focusNewest switches to the most recently opened window
func (s *seleniumSession) focusNewest() error {
	handles, err := s.wd.WindowHandles()
	if err != nil {
		return fmt.Errorf("failed to list windows: %w", err)
	}
	if len(handles) == 0 {
		return fmt.Errorf("no open window")
	}
	return s.wd.SwitchWindow(handles[len(handles)-1])
}

// Open - navigates and then best-effort waits for the document to be interactive
func (s *seleniumSession) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.focusNewest(); err != nil {
		return err
	}
	if err := s.wd.Get(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, classifySelenium(err))
	}

	err := s.wd.WaitWithTimeout(func(wd selenium.WebDriver) (bool, error) {
		state, err := wd.ExecuteScript("return document.readyState", nil)
		if err != nil {
			return false, nil
		}
		return state == "interactive" || state == "complete", nil
	}, s.opts.SettleTimeout)
	if err != nil {
		s.logger.Debugf("page did not reach domcontentloaded: %v", err)
	}
	return nil
}

// findElement waits up to the default timeout for the first element matching loc
func (s *seleniumSession) findElement(loc entities.Locator) (selenium.WebElement, error) {
	by, value, err := seleniumBy(loc)
	if err != nil {
		return nil, err
	}
	if err := s.focusNewest(); err != nil {
		return nil, err
	}

	var element selenium.WebElement
	err = s.wd.WaitWithTimeout(func(wd selenium.WebDriver) (bool, error) {
		elements, err := wd.FindElements(by, value)
		if err != nil || len(elements) == 0 {
			return false, nil
		}
		element = elements[0]
		return true, nil
	}, s.opts.DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %s after %s", entities.ErrElementNotFound, entities.ErrActionTimeout, loc, s.opts.DefaultTimeout)
	}
	return element, nil
}

// Fill - clears and types text into the first element matching loc
func (s *seleniumSession) Fill(ctx context.Context, loc entities.Locator, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	element, err := s.findElement(loc)
	if err != nil {
		return fmt.Errorf("failed to fill: %w", err)
	}

	if err := element.Clear(); err != nil {
		s.logger.Warnf("Failed to clear element %s: %v", loc, err)
	}
	if err := element.SendKeys(text); err != nil {
		return fmt.Errorf("failed to fill %s: %w", loc, classifySelenium(err))
	}
	return nil
}

// Click - clicks the first element matching loc
func (s *seleniumSession) Click(ctx context.Context, loc entities.Locator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	element, err := s.findElement(loc)
	if err != nil {
		return fmt.Errorf("failed to click: %w", err)
	}

	if _, err := s.wd.ExecuteScript("arguments[0].scrollIntoView({block: 'center'});", []interface{}{element}); err != nil {
		s.logger.Debugf("Failed to scroll to element %s: %v", loc, err)
	}
	if err := element.Click(); err != nil {
		return fmt.Errorf("failed to click %s: %w", loc, classifySelenium(err))
	}
	return nil
}

// Upload - sends absolute file paths to the file input matching loc
func (s *seleniumSession) Upload(ctx context.Context, loc entities.Locator, files []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	paths, err := absPaths(files)
	if err != nil {
		return err
	}
	element, err := s.findElement(loc)
	if err != nil {
		return fmt.Errorf("failed to upload: %w", err)
	}

	if err := element.SendKeys(strings.Join(paths, "\n")); err != nil {
		return fmt.Errorf("failed to upload into %s: %w", loc, classifySelenium(err))
	}
	return nil
}

// ExpectVisible - polls until a displayed element contains text
func (s *seleniumSession) ExpectVisible(ctx context.Context, text string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	by, value, err := seleniumBy(entities.Locator{Kind: entities.LocatorText, Expr: text})
	if err != nil {
		return err
	}
	if err := s.focusNewest(); err != nil {
		return err
	}

	err = s.wd.WaitWithTimeout(func(wd selenium.WebDriver) (bool, error) {
		elements, err := wd.FindElements(by, value)
		if err != nil {
			return false, nil
		}
		for _, el := range elements {
			if shown, err := el.IsDisplayed(); err == nil && shown {
				return true, nil
			}
		}
		return false, nil
	}, timeout)
	if err != nil {
		return fmt.Errorf("%w: %w: text %q", entities.ErrElementNotFound, entities.ErrActionTimeout, text)
	}
	return nil
}

// PageInfo - captures url, title and visible body text
func (s *seleniumSession) PageInfo(ctx context.Context) (*entities.PageInfo, error) {
	info := &entities.PageInfo{}
	info.URL, _ = s.wd.CurrentURL()
	info.Title, _ = s.wd.Title()

	body, err := s.wd.FindElement(selenium.ByTagName, "body")
	if err != nil {
		return info, fmt.Errorf("failed to read page text: %w", err)
	}
	text, err := body.Text()
	if err != nil {
		return info, fmt.Errorf("failed to read page text: %w", err)
	}
	info.TextContent = entities.TruncateText(strings.TrimSpace(text), entities.MaxPageText)
	return info, nil
}

// Screenshot - writes a PNG of the current window
func (s *seleniumSession) Screenshot(ctx context.Context, path string) error {
	data, err := s.wd.Screenshot()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Close - quits the browser session and stops chromedriver
func (s *seleniumSession) Close() error {
	var closeErr error

	if s.wd != nil {
		if err := s.wd.Quit(); err != nil {
			closeErr = multierr.Append(closeErr, fmt.Errorf("failed to quit webdriver: %w", err))
		}
		s.wd = nil
	}
	if s.service != nil {
		if err := s.service.Stop(); err != nil {
			closeErr = multierr.Append(closeErr, fmt.Errorf("failed to stop chromedriver: %w", err))
		}
		s.service = nil
	}
	return closeErr
}

// seleniumBy - translates a locator into a webdriver strategy
func seleniumBy(loc entities.Locator) (string, string, error) {
	switch loc.Kind {
	case entities.LocatorXPath:
		return selenium.ByXPATH, loc.Expr, nil
	case entities.LocatorCSS:
		return selenium.ByCSSSelector, loc.Expr, nil
	case entities.LocatorTestID:
		return selenium.ByCSSSelector, fmt.Sprintf("[data-testid=%s]", cssString(loc.Expr)), nil
	case entities.LocatorText:
		needle := xpathLiteral(strings.ToLower(loc.Expr))
		return selenium.ByXPATH, fmt.Sprintf(
			"//*[text()[contains(translate(normalize-space(.), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), %s)]]",
			needle), nil
	}
	return "", "", fmt.Errorf("locator engine %q is only supported by the playwright driver", loc.Kind)
}

// cssString quotes s as a CSS string token
func cssString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, "\\%x ", r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// xpathLiteral quotes s for use in an XPath expression
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}

func classifySelenium(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such element"), strings.Contains(msg, "stale element"):
		return fmt.Errorf("%w: %v", entities.ErrElementNotFound, err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return fmt.Errorf("%w: %v", entities.ErrActionTimeout, err)
	}
	return err
}
