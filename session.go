package onepage

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/porticus-lab/onepage-pdf/internal/pdf"
)

// Viewport is the device metrics a page is laid out for.
type Viewport struct {
	Width       int64
	Height      int64
	ScaleFactor float64
	Mobile      bool
}

// DefaultViewport is a full-HD desktop screen.
var DefaultViewport = Viewport{Width: 1920, Height: 1080, ScaleFactor: 1}

// Session is one browser tab. It implements [Oracle]: Render prints the
// current document at the requested paper size and counts the pages.
//
// A Session must not be used concurrently; renders in one tab are
// inherently sequential.
type Session struct {
	browser   *Browser
	tabCtx    context.Context
	tabCancel context.CancelFunc
	page      PageConfig
	logger    *zap.Logger

	mu     sync.Mutex
	closed bool
}

var _ Oracle = (*Session)(nil)

// Navigate loads rawURL in the tab and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return fmt.Errorf("onepage: invalid URL %q: %w", rawURL, err)
	}
	if err := s.run(ctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("onepage: navigating to %s: %w", rawURL, err)
	}
	s.logger.Debug("navigated", zap.String("url", rawURL))
	return nil
}

// LoadHTML replaces the tab's document with html.
func (s *Session) LoadHTML(ctx context.Context, html string) error {
	if err := s.run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("onepage: loading html: %w", err)
	}
	return nil
}

// Run executes arbitrary chromedp actions in the tab, for example to log in
// or to tidy up the page before rendering.
func (s *Session) Run(ctx context.Context, actions ...chromedp.Action) error {
	return s.run(ctx, actions...)
}

// SetViewport overrides the device metrics, which fixes the layout width of
// the page independently of the paper size.
func (s *Session) SetViewport(ctx context.Context, v Viewport) error {
	if v.Width <= 0 || v.Height <= 0 || v.ScaleFactor < 0 {
		return fmt.Errorf("onepage: invalid viewport %+v", v)
	}
	if err := s.run(ctx,
		emulation.SetDeviceMetricsOverride(v.Width, v.Height, v.ScaleFactor, v.Mobile),
	); err != nil {
		return fmt.Errorf("onepage: setting viewport: %w", err)
	}
	return nil
}

// Render prints the current document on paper of width x height inches and
// reports how many pages came out.
func (s *Session) Render(ctx context.Context, width float64, height int) (*Rendering, error) {
	params := s.printParams(width, float64(height))

	var buf []byte
	if err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, _, err = params.Do(ctx)
		return err
	})); err != nil {
		return nil, fmt.Errorf("onepage: printing %gx%d in: %w", width, height, err)
	}

	n, err := pdf.CountPages(buf)
	if err != nil {
		return nil, fmt.Errorf("onepage: counting pages: %w", err)
	}
	return &Rendering{Pages: n, Data: buf}, nil
}

func (s *Session) printParams(width, height float64) *page.PrintToPDFParams {
	r := s.page.resolved()
	top, right, bottom, left := r.marginInches()
	return page.PrintToPDF().
		WithPaperWidth(width).
		WithPaperHeight(height).
		WithMarginTop(top).
		WithMarginRight(right).
		WithMarginBottom(bottom).
		WithMarginLeft(left).
		WithScale(r.Scale).
		WithPrintBackground(r.PrintBackground)
}

// Close closes the tab. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.tabCancel()
	return nil
}

// run executes actions in the tab. Cancelling ctx aborts the actions but
// leaves the tab open.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	linked, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-linked.Done():
		}
	}()
	execCtx := linked
	if t := s.browser.cfg.timeout; t > 0 {
		var cancelTimeout context.CancelFunc
		execCtx, cancelTimeout = context.WithTimeout(linked, t)
		defer cancelTimeout()
	}

	began := time.Now()
	err := chromedp.Run(execCtx, actions...)
	if err != nil && ctx.Err() != nil {
		// Report the caller's reason, not the derived context's.
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	s.logger.Debug("browser actions",
		zap.Int("actions", len(actions)),
		zap.Duration("elapsed", time.Since(began)),
		zap.Error(err))
	return err
}

func (s *Session) checkClosed() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return s.browser.checkClosed()
}
