package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"dev/bravebird/airline-entry/pkg/models"
)

// RodSession is a Session backed by a go-rod controlled Chrome
type RodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *RodPage
}

// Launch starts the configured browser and opens a blank page
func Launch(ctx context.Context, opts models.BrowserOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := launcher.New()

	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}

	l = l.Headless(opts.Headless)

	if opts.Maximized {
		l = l.Set("start-maximized")
	}
	if opts.NoSandbox {
		l = l.NoSandbox(true)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, models.NewEntryError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}

	browser := rod.New().ControlURL(url)
	if !opts.Headless {
		// keep the real window size instead of the emulated laptop viewport
		browser = browser.NoDefaultDevice()
	}
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewEntryError(models.ErrCodeBrowserLaunch, "failed to connect to browser", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		browser.Close()
		l.Kill()
		return nil, models.NewEntryError(models.ErrCodeBrowserLaunch, "failed to create page", err)
	}

	return &RodSession{
		launcher: l,
		browser:  browser,
		page:     &RodPage{page: page},
	}, nil
}

// Page returns the session's only page
func (s *RodSession) Page() Page {
	return s.page
}

// Close shuts the browser down and removes its profile directory
func (s *RodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Cleanup()
	return err
}

// RodPage implements Page on a *rod.Page
type RodPage struct {
	page *rod.Page
}

func (p *RodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return models.NewEntryError(models.ErrCodeNavigation, "failed to open "+url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return models.NewEntryError(models.ErrCodeNavigation, "page did not finish loading", err)
	}
	return nil
}

func (p *RodPage) WaitElement(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	if timeout <= 0 {
		return p.FindElement(ctx, selector)
	}

	page := p.page.Context(ctx).Timeout(timeout)
	el, err := page.Element(selector)
	if err != nil {
		page.CancelTimeout()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrElementNotFound, selector, timeout)
		}
		return nil, fmt.Errorf("find %s: %w", selector, err)
	}

	return &RodElement{el: el.CancelTimeout()}, nil
}

func (p *RodPage) FindElement(ctx context.Context, selector string) (Element, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", selector, err)
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return &RodElement{el: el}, nil
}

func (p *RodPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (p *RodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

// RodElement implements Element on a *rod.Element
type RodElement struct {
	el *rod.Element
}

func (e *RodElement) Clear() error {
	if err := e.el.SelectAllText(); err != nil {
		return err
	}
	return e.el.Input("")
}

func (e *RodElement) Type(text string) error {
	return e.el.Input(text)
}

// SelectOption picks the first option whose text contains text, ignoring case
func (e *RodElement) SelectOption(text string) error {
	return e.el.Select([]string{optionPattern(text)}, true, rod.SelectorTypeRegex)
}

func optionPattern(text string) string {
	return "(?i)" + regexp.QuoteMeta(text)
}
