// Package config loads quizpdf settings from a config file, QUIZPDF_
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. QUIZPDF_RENDER_WIDTH.
const EnvPrefix = "QUIZPDF"

// Config holds all quizpdf configuration.
//
// The quiz identifiers and credentials sit at the top level so that a flat
// JSON file like {"course_id": 1, "quiz_id": 2, "user_id": 3, "username": ...}
// loads as is.
type Config struct {
	CourseID  int
	QuizID    int
	UserID    int
	Username  string
	Password  string
	OutputDir string

	Site     SiteConfig
	Render   RenderConfig
	Viewport ViewportConfig
	Browser  BrowserConfig
	Log      LogConfig
}

// SiteConfig describes the quiz site.
type SiteConfig struct {
	BaseURL       string
	LoginLinkText string
	UsernameField string
	PasswordField string
	SubmitButton  string
}

// RenderConfig holds the paper geometry and search parameters.
type RenderConfig struct {
	Width           float64 // inches
	InitialHeight   int     // inches
	Slack           int
	MaxProbes       int
	MaxHeight       int
	Timeout         time.Duration
	Margin          float64 // centimeters
	Scale           float64
	PrintBackground bool
}

// ViewportConfig holds the emulated device metrics.
type ViewportConfig struct {
	Width  int64
	Height int64
	Scale  float64
}

// BrowserConfig selects and launches Chrome.
type BrowserConfig struct {
	ChromePath   string
	RemoteURL    string
	NoSandbox    bool
	Headless     bool
	AutoDownload bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// ErrMissingQuiz is returned by RequireQuiz when a quiz identifier is unset.
var ErrMissingQuiz = errors.New("config: course_id, quiz_id and user_id are required")

// ErrMissingCredentials is returned by RequireCredentials.
var ErrMissingCredentials = errors.New("config: username and password are required")

var defaults = map[string]any{
	"output_dir": ".",

	"site.base_url":        "https://canvas.nus.edu.sg",
	"site.login_link_text": "NUS Students / Alumni",
	"site.username_field":  "#userNameInput",
	"site.password_field":  "#passwordInput",
	"site.submit_button":   "#submitButton",

	"render.width":            11.0,
	"render.initial_height":   17,
	"render.slack":            3,
	"render.max_probes":       64,
	"render.max_height":       0,
	"render.timeout":          60 * time.Second,
	"render.margin":           1.0,
	"render.scale":            1.0,
	"render.print_background": true,

	"viewport.width":  1920,
	"viewport.height": 1080,
	"viewport.scale":  1.0,

	"browser.chrome_path":   "",
	"browser.remote_url":    "",
	"browser.no_sandbox":    false,
	"browser.headless":      true,
	"browser.auto_download": false,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stderr",
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"course":          "course_id",
	"quiz":            "quiz_id",
	"user":            "user_id",
	"username":        "username",
	"out":             "output_dir",
	"base-url":        "site.base_url",
	"width":           "render.width",
	"height":          "render.initial_height",
	"slack":           "render.slack",
	"max-probes":      "render.max_probes",
	"max-height":      "render.max_height",
	"timeout":         "render.timeout",
	"margin":          "render.margin",
	"scale":           "render.scale",
	"background":      "render.print_background",
	"viewport-width":  "viewport.width",
	"viewport-height": "viewport.height",
	"viewport-scale":  "viewport.scale",
	"chrome":          "browser.chrome_path",
	"remote":          "browser.remote_url",
	"no-sandbox":      "browser.no_sandbox",
	"headless":        "browser.headless",
	"download":        "browser.auto_download",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"log-output":      "log.output",
}

// RegisterFlags defines the flags Load understands on fs. Only the flags
// present on the set passed to Load are bound, so commands may register a
// subset by hand instead.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "j", "", "config file (JSON, TOML or YAML)")
	fs.Int("course", 0, "course ID")
	fs.Int("quiz", 0, "quiz ID")
	fs.Int("user", 0, "user ID")
	fs.String("username", "", "site username")
	fs.StringP("out", "o", ".", "output directory")
	fs.String("base-url", "https://canvas.nus.edu.sg", "site base URL")

	fs.Float64("width", 11, "paper width in inches")
	fs.Int("height", 17, "initial paper height in inches")
	fs.Int("slack", 3, "bracket slack in pages")
	fs.Int("max-probes", 64, "maximum renders per search")
	fs.Int("max-height", 0, "maximum paper height in inches, 0 for none")
	fs.Duration("timeout", 60*time.Second, "timeout for each browser action")
	fs.Float64("margin", 1, "page margin in centimeters")
	fs.Float64("scale", 1, "rendering scale (0.1 to 2.0)")
	fs.Bool("background", true, "print background graphics")

	fs.Int64("viewport-width", 1920, "viewport width in pixels")
	fs.Int64("viewport-height", 1080, "viewport height in pixels")
	fs.Float64("viewport-scale", 1, "device scale factor")

	fs.String("chrome", "", "path to the Chrome executable")
	fs.String("remote", "", "DevTools websocket URL of a running Chrome")
	fs.Bool("no-sandbox", false, "disable the Chrome sandbox")
	fs.Bool("headless", true, "run Chrome without a window")
	fs.Bool("download", false, "download Chromium if none is installed")

	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-format", "console", "console or json")
	fs.String("log-output", "stderr", "stdout, stderr or a file path")
}

// Load reads the configuration.
//
// Priority (highest to lowest):
//  1. Flags set on fs
//  2. Environment variables with QUIZPDF_ prefix (e.g., QUIZPDF_RENDER_WIDTH)
//  3. The config file: path if given, else ./quizpdf.{json,toml,yaml} if present
//  4. Built-in defaults
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	} else {
		v.SetConfigName("quizpdf")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: reading config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: binding --%s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		CourseID:  v.GetInt("course_id"),
		QuizID:    v.GetInt("quiz_id"),
		UserID:    v.GetInt("user_id"),
		Username:  v.GetString("username"),
		Password:  v.GetString("password"),
		OutputDir: v.GetString("output_dir"),
		Site: SiteConfig{
			BaseURL:       strings.TrimRight(v.GetString("site.base_url"), "/"),
			LoginLinkText: v.GetString("site.login_link_text"),
			UsernameField: v.GetString("site.username_field"),
			PasswordField: v.GetString("site.password_field"),
			SubmitButton:  v.GetString("site.submit_button"),
		},
		Render: RenderConfig{
			Width:           v.GetFloat64("render.width"),
			InitialHeight:   v.GetInt("render.initial_height"),
			Slack:           v.GetInt("render.slack"),
			MaxProbes:       v.GetInt("render.max_probes"),
			MaxHeight:       v.GetInt("render.max_height"),
			Timeout:         v.GetDuration("render.timeout"),
			Margin:          v.GetFloat64("render.margin"),
			Scale:           v.GetFloat64("render.scale"),
			PrintBackground: v.GetBool("render.print_background"),
		},
		Viewport: ViewportConfig{
			Width:  v.GetInt64("viewport.width"),
			Height: v.GetInt64("viewport.height"),
			Scale:  v.GetFloat64("viewport.scale"),
		},
		Browser: BrowserConfig{
			ChromePath:   v.GetString("browser.chrome_path"),
			RemoteURL:    v.GetString("browser.remote_url"),
			NoSandbox:    v.GetBool("browser.no_sandbox"),
			Headless:     v.GetBool("browser.headless"),
			AutoDownload: v.GetBool("browser.auto_download"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	r := c.Render
	switch {
	case r.Width <= 0:
		return fmt.Errorf("config: render.width must be positive, got %v", r.Width)
	case r.InitialHeight <= 0:
		return fmt.Errorf("config: render.initial_height must be positive, got %d", r.InitialHeight)
	case r.Slack < 1:
		return fmt.Errorf("config: render.slack must be at least 1, got %d", r.Slack)
	case r.MaxProbes < 1:
		return fmt.Errorf("config: render.max_probes must be at least 1, got %d", r.MaxProbes)
	case r.MaxHeight < 0:
		return fmt.Errorf("config: render.max_height must not be negative, got %d", r.MaxHeight)
	case r.Margin < 0:
		return fmt.Errorf("config: render.margin must not be negative, got %v", r.Margin)
	case r.Scale < 0.1 || r.Scale > 2.0:
		return fmt.Errorf("config: render.scale must be between 0.1 and 2.0, got %v", r.Scale)
	case c.Viewport.Width <= 0 || c.Viewport.Height <= 0 || c.Viewport.Scale <= 0:
		return fmt.Errorf("config: viewport must be positive, got %dx%d@%v",
			c.Viewport.Width, c.Viewport.Height, c.Viewport.Scale)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// RequireQuiz reports an error unless all quiz identifiers are set.
func (c *Config) RequireQuiz() error {
	if c.CourseID <= 0 || c.QuizID <= 0 || c.UserID <= 0 {
		return fmt.Errorf("%w (got course=%d quiz=%d user=%d)", ErrMissingQuiz, c.CourseID, c.QuizID, c.UserID)
	}
	return nil
}

// RequireCredentials reports an error unless a username and password are set.
func (c *Config) RequireCredentials() error {
	if c.Username == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}
