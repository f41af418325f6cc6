package browser

import (
	"context"
	"errors"
	"time"

	"dev/bravebird/airline-entry/pkg/models"
)

// ErrElementNotFound is returned when a selector matches nothing in time
var ErrElementNotFound = errors.New("element not found")

// Element is a located form control
type Element interface {
	// Clear empties the control
	Clear() error

	// Type focuses the control and types text into it
	Type(text string) error

	// SelectOption selects the option whose text contains text
	SelectOption(text string) error
}

// Page is the part of a browser tab a run needs
type Page interface {
	// Navigate opens url and waits for the load event
	Navigate(ctx context.Context, url string) error

	// WaitElement waits up to timeout for selector to match. A timeout <= 0
	// looks exactly once.
	WaitElement(ctx context.Context, selector string, timeout time.Duration) (Element, error)

	// FindElement looks selector up once without waiting
	FindElement(ctx context.Context, selector string) (Element, error)

	// Screenshot captures the page as PNG
	Screenshot(ctx context.Context) ([]byte, error)

	// HTML returns the current document markup
	HTML(ctx context.Context) (string, error)
}

// Session owns one launched browser and its page
type Session interface {
	Page() Page
	Close() error
}

// Launcher starts a browser session
type Launcher func(ctx context.Context, opts models.BrowserOptions) (Session, error)
