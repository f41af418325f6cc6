package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dev/bravebird/airline-entry/pkg/models"
)

// Source is anything that can render its current state
type Source interface {
	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)
}

// Capturer writes a screenshot and an HTML dump to fixed filenames
type Capturer struct {
	Dir      string
	BaseName string
}

// NewCapturer creates a capturer for the given output options
func NewCapturer(opts models.OutputOptions) *Capturer {
	return &Capturer{
		Dir:      opts.Dir,
		BaseName: opts.BaseName,
	}
}

// ScreenshotPath is where the PNG lands
func (c *Capturer) ScreenshotPath() string {
	return filepath.Join(c.Dir, c.BaseName+".png")
}

// HTMLPath is where the markup lands
func (c *Capturer) HTMLPath() string {
	return filepath.Join(c.Dir, c.BaseName+".html")
}

// EnsureDir creates the output directory if it is missing
func (c *Capturer) EnsureDir() error {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return models.NewEntryError(models.ErrCodeCapture, "failed to create output dir", err)
	}
	return nil
}

// Capture saves whatever src currently shows. Existing files are overwritten
// and a screenshot already written is left in place if the HTML step fails.
func (c *Capturer) Capture(ctx context.Context, src Source) (*models.Snapshot, error) {
	if err := c.EnsureDir(); err != nil {
		return nil, err
	}

	data, err := src.Screenshot(ctx)
	if err != nil {
		return nil, models.NewEntryError(models.ErrCodeCapture, "failed to take screenshot", err)
	}
	if err := os.WriteFile(c.ScreenshotPath(), data, 0644); err != nil {
		return nil, models.NewEntryError(models.ErrCodeCapture, "failed to save screenshot", err)
	}

	html, err := src.HTML(ctx)
	if err != nil {
		return nil, models.NewEntryError(models.ErrCodeCapture, "failed to read page source", err)
	}
	if err := os.WriteFile(c.HTMLPath(), []byte(html), 0644); err != nil {
		return nil, models.NewEntryError(models.ErrCodeCapture, "failed to save html", err)
	}

	return &models.Snapshot{
		ScreenshotPath:  c.ScreenshotPath(),
		HTMLPath:        c.HTMLPath(),
		ScreenshotBytes: len(data),
		HTMLBytes:       len(html),
		CapturedAt:      time.Now(),
	}, nil
}

func (c *Capturer) String() string {
	return fmt.Sprintf("%s/{%s.png,%s.html}", c.Dir, c.BaseName, c.BaseName)
}
