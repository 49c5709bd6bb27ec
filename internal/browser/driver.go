// Package browser implements the Browser Pool and the BrowserDriver
// capability abstraction the Reply Enumerator and Harvesters drive.
//
// Real implementations bind to a headless browser (chromedp); tests
// substitute FakeDriver with scripted DOM, per the capability design
// in SPEC_FULL.md §9.
package browser

import (
	"context"
	"time"

	"github.com/replythread/harvester/internal/model"
)

// Card is a snapshot of one post-card element: its outer HTML (for the pure
// DOM extractor to parse) and its absolute top-Y position (for cutoff
// comparisons, which require live layout and cannot be derived from static
// HTML alone).
type Card struct {
	TopY float64
	HTML string
}

// Driver launches and tears down the shared browser instance and mints
// disposable Page contexts from it.
type Driver interface {
	// Acquire returns a fresh Page with the given credential bundle's
	// cookies installed (bundle may be nil for an anonymous session). The
	// browser itself is launched lazily on first call.
	Acquire(ctx context.Context, bundle *model.CredentialBundle) (Page, error)
	// Close tears down the shared browser. Safe to call when never launched.
	Close(ctx context.Context) error
}

// Page is one disposable browser tab/context. Implementations must make
// Close safe to call multiple times and on every exit path.
type Page interface {
	// Goto navigates to url, waiting for DOM-content-loaded, within timeout.
	Goto(ctx context.Context, url string, timeout time.Duration) error
	// WaitForSelector blocks until selector matches at least one element,
	// or timeout elapses.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Cards returns the current matches for selector as Card snapshots, in
	// DOM order.
	Cards(ctx context.Context, selector string) ([]Card, error)
	// CutoffHeadingY searches for the first heading matching the
	// recommendation-cutoff label set and returns its absolute Y. found is
	// false when no such heading exists (cutoff is +Inf).
	CutoffHeadingY(ctx context.Context) (y float64, found bool, err error)
	// BodyText returns the page's visible text, used for unavailable/
	// login-wall probes.
	BodyText(ctx context.Context) (string, error)
	// ClickTab clicks the first element whose text matches label and
	// reports whether a match was found.
	ClickTab(ctx context.Context, label string) (bool, error)
	// ClickMatching clicks up to max elements whose text matches any of
	// patterns (regular-expression source strings) and returns how many
	// were clicked.
	ClickMatching(ctx context.Context, patterns []string, max int) (int, error)
	// ScrollLastCardIntoView scrolls selector's last match into view.
	ScrollLastCardIntoView(ctx context.Context, selector string) error
	// ScrollColumnToBottom scrolls the primary column container to its
	// bottom.
	ScrollColumnToBottom(ctx context.Context) error
	// ScrollBy scrolls the window by dy pixels.
	ScrollBy(ctx context.Context, dy int) error
	// ScrollToBottom scrolls the window to document bottom, used by the
	// bottom-sweep phase.
	ScrollToBottom(ctx context.Context) error
	// Close releases the page/tab.
	Close(ctx context.Context) error
}
