package onepage

import (
	"time"

	"go.uber.org/zap"
)

// browserConfig holds internal configuration for a Browser.
type browserConfig struct {
	chromePath   string
	remoteURL    string
	timeout      time.Duration
	noSandbox    bool
	headless     bool
	autoDownload bool
	page         PageConfig
	logger       *zap.Logger
}

func defaultConfig() browserConfig {
	return browserConfig{
		timeout:  60 * time.Second,
		headless: true,
		page:     DefaultPageConfig(),
		logger:   zap.NewNop(),
	}
}

// Option configures a [Browser].
type Option func(*browserConfig)

// WithChromePath sets the path to the Chrome or Chromium executable.
// By default the library searches standard locations automatically.
func WithChromePath(path string) Option {
	return func(c *browserConfig) {
		c.chromePath = path
	}
}

// WithTimeout bounds every browser action of a [Session], including each
// render. Defaults to 60 seconds. A zero or negative value disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *browserConfig) {
		c.timeout = d
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when
// running as root, for example inside Docker containers.
func WithNoSandbox() Option {
	return func(c *browserConfig) {
		c.noSandbox = true
	}
}

// WithHeadless controls whether Chrome runs without a window. Defaults to true.
func WithHeadless(headless bool) Option {
	return func(c *browserConfig) {
		c.headless = headless
	}
}

// WithAutoDownload fetches a compatible Chromium build when no
// [WithChromePath] is given. The binary is cached under the user's cache
// directory and reused on later runs.
func WithAutoDownload() Option {
	return func(c *browserConfig) {
		c.autoDownload = true
	}
}

// WithRemoteURL connects to an already running Chrome through its DevTools
// websocket URL instead of launching one. Launch options are ignored.
func WithRemoteURL(url string) Option {
	return func(c *browserConfig) {
		c.remoteURL = url
	}
}

// WithPageConfig sets the print parameters every render uses.
func WithPageConfig(pc PageConfig) Option {
	return func(c *browserConfig) {
		c.page = pc
	}
}

// WithBrowserLogger routes DevTools protocol errors and debug output to l.
func WithBrowserLogger(l *zap.Logger) Option {
	return func(c *browserConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
