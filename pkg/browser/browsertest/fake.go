// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dev/bravebird/airline-entry/pkg/browser"
	"dev/bravebird/airline-entry/pkg/models"
)

// pollInterval is how often WaitElement re-checks the fake DOM
const pollInterval = 5 * time.Millisecond

// Element is a fake form control that records what was typed into it
type Element struct {
	mu       sync.Mutex
	value    string
	selected string
	cleared  int

	ClearErr  error
	TypeErr   error
	SelectErr error
}

func (e *Element) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ClearErr != nil {
		return e.ClearErr
	}
	e.value = ""
	e.cleared++
	return nil
}

func (e *Element) Type(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.TypeErr != nil {
		return e.TypeErr
	}
	e.value += text
	return nil
}

func (e *Element) SelectOption(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.SelectErr != nil {
		return e.SelectErr
	}
	e.selected = text
	return nil
}

// Value returns the text currently in the control
func (e *Element) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Selected returns the last selected option text
func (e *Element) Selected() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// Cleared returns how many times Clear succeeded
func (e *Element) Cleared() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cleared
}

// Page is a fake browser.Page keyed by CSS selector
type Page struct {
	mu       sync.Mutex
	elements map[string]*Element
	url      string
	lookups  []string

	NavigateErr   error
	ScreenshotErr error
	HTMLErr       error
	PNG           []byte
	Markup        string
}

// NewPage returns an empty page with non-empty snapshot content
func NewPage() *Page {
	return &Page{
		elements: make(map[string]*Element),
		PNG:      []byte("\x89PNG\r\n\x1a\nfake"),
		Markup:   "<html><body>results</body></html>",
	}
}

// NewAAPage returns a page carrying the booking form and a body
func NewAAPage() *Page {
	p := NewPage()
	form := models.DefaultFormSelectors()
	p.Add(form.Origin.CSS())
	p.Add(form.Destination.CSS())
	p.Add(form.Date.CSS())
	p.Add(form.Cabin.CSS())
	p.Add("body")
	return p
}

// Add inserts an element under selector and returns it
func (p *Page) Add(selector string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	el := &Element{}
	p.elements[selector] = el
	return el
}

// AddAfter inserts an element under selector once d has elapsed
func (p *Page) AddAfter(selector string, d time.Duration) {
	time.AfterFunc(d, func() { p.Add(selector) })
}

// Remove deletes the element under selector
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

// Element returns the element under selector or nil
func (p *Page) Element(selector string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elements[selector]
}

// URL returns the last navigated URL
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Lookups returns every selector looked up, in order
func (p *Page) Lookups() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lookups...)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *Page) WaitElement(ctx context.Context, selector string, timeout time.Duration) (browser.Element, error) {
	if timeout <= 0 {
		return p.FindElement(ctx, selector)
	}
	p.record(selector)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if el := p.Element(selector); el != nil {
			return el, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w: %s after %s", browser.ErrElementNotFound, selector, timeout)
		case <-ticker.C:
		}
	}
}

func (p *Page) FindElement(ctx context.Context, selector string) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.record(selector)
	if el := p.Element(selector); el != nil {
		return el, nil
	}
	return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return p.PNG, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.HTMLErr != nil {
		return "", p.HTMLErr
	}
	return p.Markup, nil
}

func (p *Page) record(selector string) {
	p.mu.Lock()
	p.lookups = append(p.lookups, selector)
	p.mu.Unlock()
}

// Session is a fake browser.Session around a Page
type Session struct {
	mu     sync.Mutex
	page   *Page
	closed bool
}

// NewSession wraps page
func NewSession(page *Page) *Session {
	return &Session{page: page}
}

func (s *Session) Page() browser.Page {
	return s.page
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Launcher returns a browser.Launcher that hands out s, or err when set
func Launcher(s *Session, err error) browser.Launcher {
	return func(ctx context.Context, opts models.BrowserOptions) (browser.Session, error) {
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
