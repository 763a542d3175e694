package onepage_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	onepage "github.com/porticus-lab/onepage-pdf"
	"github.com/porticus-lab/onepage-pdf/internal/pdf"
)

// chromeAvailable reports whether a Chrome/Chromium executable is in PATH.
func chromeAvailable() bool {
	for _, name := range []string{
		"chromium-browser", "chromium", "google-chrome",
		"google-chrome-stable", "chrome",
	} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func skipIfNoChrome(t *testing.T) {
	t.Helper()
	if !chromeAvailable() {
		t.Skip("skipping: Chrome/Chromium not found in PATH")
	}
}

func newTestBrowser(t *testing.T, opts ...onepage.Option) *onepage.Browser {
	t.Helper()
	skipIfNoChrome(t)
	b, err := onepage.NewBrowser(append([]onepage.Option{onepage.WithNoSandbox()}, opts...)...)
	if err != nil {
		t.Fatalf("NewBrowser: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func newTestSession(t *testing.T) *onepage.Session {
	t.Helper()
	b := newTestBrowser(t)
	s, err := b.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// isPDF checks whether data starts with the PDF magic number.
func isPDF(data []byte) bool {
	return len(data) > 4 && string(data[:5]) == "%PDF-"
}

// tallHTML is a document of roughly px CSS pixels of content.
func tallHTML(px string) string {
	return `<!DOCTYPE html>
<html>
<head><style>
  body { margin: 0; font-family: sans-serif; }
  .block { height: ` + px + `; background: linear-gradient(#3b82f6, #8b5cf6); }
</style></head>
<body>
  <h1>Submission history</h1>
  <div class="block"></div>
  <p>end of document</p>
</body>
</html>`
}

func TestSession_RenderShortDocument(t *testing.T) {
	s := newTestSession(t)
	if err := s.LoadHTML(context.Background(), "<h1>Hello World</h1>"); err != nil {
		t.Fatalf("LoadHTML: %v", err)
	}

	out, err := s.Render(context.Background(), 11, 17)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !isPDF(out.Data) {
		t.Fatal("output is not a valid PDF")
	}
	if out.Pages != 1 {
		t.Errorf("Pages = %d, want 1", out.Pages)
	}
}

func TestSession_RenderCountsPages(t *testing.T) {
	s := newTestSession(t)
	if err := s.LoadHTML(context.Background(), tallHTML("4000px")); err != nil {
		t.Fatalf("LoadHTML: %v", err)
	}

	out, err := s.Render(context.Background(), 11, 17)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.Pages < 2 {
		t.Errorf("Pages = %d, want at least 2 for a 4000px document", out.Pages)
	}
	n, err := pdf.CountPages(out.Data)
	if err != nil {
		t.Fatalf("CountPages: %v", err)
	}
	if n != out.Pages {
		t.Errorf("reported %d pages, document has %d", out.Pages, n)
	}
}

func TestSession_FindSinglePageHeight(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	if err := s.SetViewport(ctx, onepage.DefaultViewport); err != nil {
		t.Fatalf("SetViewport: %v", err)
	}
	if err := s.LoadHTML(ctx, tallHTML("6000px")); err != nil {
		t.Fatalf("LoadHTML: %v", err)
	}

	res, err := s.FindSinglePageHeight(ctx, 11, 17)
	if err != nil {
		t.Fatalf("FindSinglePageHeight: %v", err)
	}
	if !isPDF(res.Bytes()) {
		t.Fatal("output is not a valid PDF")
	}
	n, err := pdf.CountPages(res.Bytes())
	if err != nil {
		t.Fatalf("CountPages: %v", err)
	}
	if n != 1 {
		t.Fatalf("result has %d pages, want 1", n)
	}
	if res.Height() <= 17 {
		t.Errorf("Height() = %d, want more than the initial 17", res.Height())
	}

	// The result is the smallest height that fits.
	below, err := s.Render(ctx, 11, res.Height()-1)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if below.Pages == 1 {
		t.Errorf("height %d also fits on one page", res.Height()-1)
	}

	// Starting from the answer costs a single render.
	again, err := s.FindSinglePageHeight(ctx, 11, res.Height())
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if again.Renders() != 1 {
		t.Errorf("second search used %d renders, want 1", again.Renders())
	}
}

func TestSession_CancelledContext(t *testing.T) {
	s := newTestSession(t)
	if err := s.LoadHTML(context.Background(), tallHTML("3000px")); err != nil {
		t.Fatalf("LoadHTML: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.FindSinglePageHeight(ctx, 11, 17)
	if !onepage.IsKind(err, onepage.KindTimedOut) {
		t.Fatalf("expected timed_out, got %v", err)
	}

	// The tab survives a cancelled search.
	if _, err := s.Render(context.Background(), 11, 17); err != nil {
		t.Fatalf("Render after cancelled search: %v", err)
	}
}

func TestSession_NavigateInvalidURL(t *testing.T) {
	s := newTestSession(t)

	if err := s.Navigate(context.Background(), "not a url"); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestSession_InvalidViewport(t *testing.T) {
	s := newTestSession(t)

	if err := s.SetViewport(context.Background(), onepage.Viewport{Width: 0, Height: 1080}); err == nil {
		t.Fatal("expected error for zero-width viewport")
	}
}

func TestSession_UsedAfterClose(t *testing.T) {
	s := newTestSession(t)
	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	_, err := s.Render(context.Background(), 11, 17)
	if !errors.Is(err, onepage.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	_, err = s.FindSinglePageHeight(context.Background(), 11, 17)
	if !onepage.IsKind(err, onepage.KindRenderUnavailable) || !errors.Is(err, onepage.ErrClosed) {
		t.Fatalf("expected render_unavailable wrapping ErrClosed, got %v", err)
	}
}

func TestBrowser_CloseIdempotent(t *testing.T) {
	skipIfNoChrome(t)

	b, err := onepage.NewBrowser(onepage.WithNoSandbox())
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestBrowser_CloseEndsSessions(t *testing.T) {
	skipIfNoChrome(t)

	b, err := onepage.NewBrowser(onepage.WithNoSandbox())
	if err != nil {
		t.Fatal(err)
	}
	s, err := b.NewSession(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	b.Close()

	if _, err := b.NewSession(context.Background()); err != onepage.ErrClosed {
		t.Fatalf("NewSession after Close: expected ErrClosed, got %v", err)
	}
	if err := s.LoadHTML(context.Background(), "<p>x</p>"); !errors.Is(err, onepage.ErrClosed) {
		t.Fatalf("LoadHTML after browser Close: expected ErrClosed, got %v", err)
	}
	if onepage.KindOf(onepage.ErrClosed) != onepage.KindClosed {
		t.Fatal("ErrClosed does not map to KindClosed")
	}
}

func TestNewBrowser_InvalidPageConfig(t *testing.T) {
	_, err := onepage.NewBrowser(onepage.WithPageConfig(onepage.PageConfig{Scale: 3}))
	if err == nil {
		t.Fatal("expected error for scale out of range")
	}
}

func TestExportHTML_PackageLevel(t *testing.T) {
	skipIfNoChrome(t)

	res, err := onepage.ExportHTML(context.Background(), tallHTML("2500px"), 11, 17,
		onepage.WithNoSandbox(),
		onepage.WithPageConfig(onepage.PageConfig{Margin: onepage.UniformMargin(0.5), PrintBackground: true}),
	)
	if err != nil {
		t.Fatalf("ExportHTML: %v", err)
	}
	if n, err := pdf.CountPages(res.Bytes()); err != nil || n != 1 {
		t.Fatalf("CountPages = %d, %v; want 1 page", n, err)
	}
}

func TestExportFile(t *testing.T) {
	skipIfNoChrome(t)

	path := filepath.Join(t.TempDir(), "history.html")
	if err := os.WriteFile(path, []byte(tallHTML("2000px")), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := onepage.ExportFile(context.Background(), path, 11, 17, onepage.WithNoSandbox())
	if err != nil {
		t.Fatalf("ExportFile: %v", err)
	}
	if !isPDF(res.Bytes()) {
		t.Fatal("output is not a valid PDF")
	}

	out := filepath.Join(t.TempDir(), "out.pdf")
	if err := res.WriteToFile(out, 0o644); err != nil {
		t.Fatalf("WriteToFile: %v", err)
	}
	if doc, err := pdf.Open(out); err != nil {
		t.Fatalf("Open: %v", err)
	} else if n, _ := doc.PageCount(); n != 1 {
		t.Errorf("written file has %d pages, want 1", n)
	}
}

func TestExportFile_NotFound(t *testing.T) {
	_, err := onepage.ExportFile(context.Background(), "/nonexistent/file.html", 11, 17)
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}
