package onepage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FindSinglePageHeight searches for the single-page height of the document
// currently loaded in the session. The session's logger is used unless opts
// set another.
func (s *Session) FindSinglePageHeight(ctx context.Context, width float64, initialHeight int, opts ...SearchOption) (*Result, error) {
	opts = append([]SearchOption{WithLogger(s.logger)}, opts...)
	return FindSinglePageHeight(ctx, s, width, initialHeight, opts...)
}

// --- Package-level convenience functions ---

// ExportHTML renders html as one PDF page using a temporary [Browser].
// For repeated use, create a Browser with [NewBrowser] and reuse it.
func ExportHTML(ctx context.Context, html string, width float64, initialHeight int, opts ...Option) (*Result, error) {
	return export(ctx, opts, width, initialHeight, func(s *Session) error {
		return s.LoadHTML(ctx, html)
	})
}

// ExportURL renders the web page at rawURL as one PDF page using a
// temporary [Browser].
func ExportURL(ctx context.Context, rawURL string, width float64, initialHeight int, opts ...Option) (*Result, error) {
	return export(ctx, opts, width, initialHeight, func(s *Session) error {
		return s.Navigate(ctx, rawURL)
	})
}

// ExportFile renders a local HTML file as one PDF page using a temporary
// [Browser].
func ExportFile(ctx context.Context, path string, width float64, initialHeight int, opts ...Option) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("onepage: resolving path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("onepage: %w", err)
	}
	return export(ctx, opts, width, initialHeight, func(s *Session) error {
		return s.Navigate(ctx, "file://"+filepath.ToSlash(abs))
	})
}

func export(ctx context.Context, opts []Option, width float64, initialHeight int, load func(*Session) error) (*Result, error) {
	b, err := NewBrowser(opts...)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	s, err := b.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := load(s); err != nil {
		return nil, err
	}
	return s.FindSinglePageHeight(ctx, width, initialHeight)
}
