package onepage

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"
	"go.uber.org/zap"
)

// resolveBrowser downloads a compatible Chromium binary if one is not
// already cached and returns the path to the executable. The binary is
// stored in ~/.cache/rod/browser (Unix) or %APPDATA%\rod\browser (Windows).
func resolveBrowser() (string, error) {
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return "", fmt.Errorf("onepage: downloading browser: %w", err)
	}
	return path, nil
}

// Browser owns a headless Chrome process. Each [Session] is a tab in it.
//
// Call [Browser.Close] when the Browser is no longer needed to release
// browser resources. Closing the Browser closes all its sessions.
type Browser struct {
	cfg           browserConfig
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewBrowser starts Chrome with the given options, or attaches to a running
// one when [WithRemoteURL] is set. The browser is started eagerly so that
// launch errors surface here.
func NewBrowser(opts ...Option) (*Browser, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if err := cfg.page.validate(); err != nil {
		return nil, err
	}

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.remoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.remoteURL)
	} else {
		if cfg.chromePath == "" && cfg.autoDownload {
			path, err := resolveBrowser()
			if err != nil {
				return nil, err
			}
			cfg.chromePath = path
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	}

	log := cfg.logger.Named("chromedp")
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			log.Warn(fmt.Sprintf(format, args...))
		}),
		chromedp.WithDebugf(func(format string, args ...any) {
			if ce := log.Check(zap.DebugLevel, "cdp"); ce != nil {
				ce.Write(zap.String("frame", fmt.Sprintf(format, args...)))
			}
		}),
	)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("onepage: starting browser: %w", err)
	}
	cfg.logger.Info("browser started",
		zap.String("chrome", cfg.chromePath),
		zap.String("remote", cfg.remoteURL),
		zap.Bool("headless", cfg.headless))

	return &Browser{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

func allocatorOptions(cfg browserConfig) []chromedp.ExecAllocatorOption {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.chromePath))
	}
	if cfg.noSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

// NewSession opens a new tab. The tab keeps its cookies and DOM across
// renders, so a page can be logged into, cleaned up, and then searched.
func (b *Browser) NewSession(ctx context.Context) (*Session, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// The tab lives as long as the context of its first Run, so that run
	// must not be bounded by the caller's context.
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("onepage: opening tab: %w", err)
	}
	return &Session{
		browser:   b,
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		page:      b.cfg.page,
		logger:    b.cfg.logger,
	}, nil
}

// Close releases all resources held by the Browser, including the
// browser process. Close is idempotent.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.browserCancel()
	b.allocCancel()
	b.cfg.logger.Debug("browser closed")
	return nil
}

func (b *Browser) checkClosed() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}
