package interfaces

import (
	"context"
	"time"

	"biztrack_e2e/domain/entities"
)

// LaunchOptions configures one browser/context/page triple
type LaunchOptions struct {
	Headless       bool
	Args           []string
	DefaultTimeout time.Duration // per-action timeout inside the context
	NavTimeout     time.Duration // navigation commit timeout
	SettleTimeout  time.Duration // best-effort DOMContentLoaded wait per frame
	Viewport       Viewport
}

// Viewport is the page size in CSS pixels
type Viewport struct {
	Width  int
	Height int
}

// Driver starts browser sessions
type Driver interface {
	// Name identifies the automation backend in logs and reports
	Name() string

	// Launch starts the automation tool, launches a browser, opens an
	// isolated context and one page
	Launch(ctx context.Context, opts LaunchOptions) (Session, error)
}

// Session is a live browser/context/page triple. Every method acts on the
// most recently opened page.
type Session interface {
	// Open navigates to url, waits for commit, then best-effort waits for
	// DOMContentLoaded on the page and its frames
	Open(ctx context.Context, url string) error

	// Fill types text into the first element matching loc
	Fill(ctx context.Context, loc entities.Locator, text string) error

	// Click clicks the first element matching loc
	Click(ctx context.Context, loc entities.Locator) error

	// Upload sets files on the first file input matching loc
	Upload(ctx context.Context, loc entities.Locator, files []string) error

	// ExpectVisible waits until an element containing text is visible
	ExpectVisible(ctx context.Context, text string, timeout time.Duration) error

	// PageInfo captures a diagnostics snapshot of the current page
	PageInfo(ctx context.Context) (*entities.PageInfo, error)

	// Screenshot writes a PNG of the current page to path
	Screenshot(ctx context.Context, path string) error

	// Close releases the context, the browser and the automation tool
	Close() error
}
