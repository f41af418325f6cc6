package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dev/bravebird/airline-entry/pkg/browser/browsertest"
	"dev/bravebird/airline-entry/pkg/models"
)

func TestCaptureWritesBothFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "aa_test_output")
	c := NewCapturer(models.OutputOptions{Dir: dir, BaseName: "aa_dfw_nrt"})

	snap, err := c.Capture(context.Background(), browsertest.NewPage())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	for _, path := range []string{snap.ScreenshotPath, snap.HTMLPath} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", path)
		}
	}
	if snap.ScreenshotPath != filepath.Join(dir, "aa_dfw_nrt.png") {
		t.Errorf("ScreenshotPath = %s", snap.ScreenshotPath)
	}
	if snap.HTMLPath != filepath.Join(dir, "aa_dfw_nrt.html") {
		t.Errorf("HTMLPath = %s", snap.HTMLPath)
	}
}

func TestEnsureDirIsIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	c := &Capturer{Dir: dir, BaseName: "x"}

	for i := 0; i < 3; i++ {
		if err := c.EnsureDir(); err != nil {
			t.Fatalf("EnsureDir() call %d: %v", i+1, err)
		}
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("output dir missing: %v", err)
	}
}

func TestCaptureOverwritesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	c := &Capturer{Dir: dir, BaseName: "aa_dfw_nrt"}

	first := browsertest.NewPage()
	first.Markup = "<html><body>first run with a much longer body</body></html>"
	if _, err := c.Capture(context.Background(), first); err != nil {
		t.Fatalf("first Capture() error = %v", err)
	}

	second := browsertest.NewPage()
	second.Markup = "<html>second</html>"
	if _, err := c.Capture(context.Background(), second); err != nil {
		t.Fatalf("second Capture() error = %v", err)
	}

	got, err := os.ReadFile(c.HTMLPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != second.Markup {
		t.Errorf("html = %q, want %q", got, second.Markup)
	}
}

func TestCaptureErrors(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(p *browsertest.Page)
		wantPNGOnDisk bool
	}{
		{
			name:          "screenshot fails",
			setup:         func(p *browsertest.Page) { p.ScreenshotErr = errors.New("target closed") },
			wantPNGOnDisk: false,
		},
		{
			name:          "html fails after screenshot",
			setup:         func(p *browsertest.Page) { p.HTMLErr = errors.New("target closed") },
			wantPNGOnDisk: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Capturer{Dir: t.TempDir(), BaseName: "aa"}
			page := browsertest.NewPage()
			tt.setup(page)

			_, err := c.Capture(context.Background(), page)
			if models.ErrorCode(err) != models.ErrCodeCapture {
				t.Fatalf("ErrorCode = %q, want %q (err=%v)", models.ErrorCode(err), models.ErrCodeCapture, err)
			}

			_, statErr := os.Stat(c.ScreenshotPath())
			if exists := statErr == nil; exists != tt.wantPNGOnDisk {
				t.Errorf("png on disk = %v, want %v", exists, tt.wantPNGOnDisk)
			}
		})
	}
}
