package onepage

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultSlack is how many page-heights below the naive estimate the
	// bisection bracket starts. Chrome breaks pages between lines, so a page
	// holds a little less than its nominal height and the naive lower bound
	// can already be sufficient.
	DefaultSlack = 3

	// DefaultMaxProbes bounds the number of renders in one search.
	DefaultMaxProbes = 64
)

// Rendering is the outcome of one render: the document and its page count.
type Rendering struct {
	Pages int
	Data  []byte
}

// Oracle renders the prepared document at a fixed width and a requested page
// height. Heights are integral renderer paper units (inches for Chrome).
//
// For a fixed document the page count must not increase as the height grows,
// and some finite height must yield a single page.
type Oracle interface {
	Render(ctx context.Context, width float64, height int) (*Rendering, error)
}

// OracleFunc adapts a function to the [Oracle] interface.
type OracleFunc func(ctx context.Context, width float64, height int) (*Rendering, error)

// Render calls f.
func (f OracleFunc) Render(ctx context.Context, width float64, height int) (*Rendering, error) {
	return f(ctx, width, height)
}

// Probe records one render performed during a search.
type Probe struct {
	Height int
	Pages  int
}

type searchConfig struct {
	slack     int
	maxProbes int
	maxHeight int
	logger    *zap.Logger
}

// SearchOption configures a [Searcher].
type SearchOption func(*searchConfig)

// WithSlack sets the expansion constant k: after a probe at height h reports
// p pages, bisection runs over [(p-k)*h, p*h]. Larger values cost more probes
// but survive renderers that fit less than h of content per page.
func WithSlack(k int) SearchOption {
	return func(c *searchConfig) { c.slack = k }
}

// WithMaxProbes caps the number of renders. Exceeding the cap fails the
// search with [KindNotConverged].
func WithMaxProbes(n int) SearchOption {
	return func(c *searchConfig) { c.maxProbes = n }
}

// WithMaxHeight sets a ceiling on probed heights. Zero means no ceiling
// beyond integer overflow.
func WithMaxHeight(h int) SearchOption {
	return func(c *searchConfig) { c.maxHeight = h }
}

// WithLogger sets the logger used to trace probes at debug level.
func WithLogger(l *zap.Logger) SearchOption {
	return func(c *searchConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Searcher finds a page height at which an [Oracle] renders exactly one
// page. It holds configuration only and may be reused across documents,
// but a single oracle session must not be searched concurrently.
type Searcher struct {
	oracle Oracle
	cfg    searchConfig
}

// NewSearcher returns a Searcher over oracle.
func NewSearcher(oracle Oracle, opts ...SearchOption) *Searcher {
	cfg := searchConfig{
		slack:     DefaultSlack,
		maxProbes: DefaultMaxProbes,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Searcher{oracle: oracle, cfg: cfg}
}

// FindSinglePageHeight is shorthand for NewSearcher(oracle, opts...).Find.
func FindSinglePageHeight(ctx context.Context, oracle Oracle, width float64, initialHeight int, opts ...SearchOption) (*Result, error) {
	return NewSearcher(oracle, opts...).Find(ctx, width, initialHeight)
}

// Find renders at initialHeight and, while the document spills onto more
// than one page, brackets and bisects the height until the smallest
// sufficient height in the bracket is confirmed. If a bracket turns out to be
// too short, the search expands again from its top.
//
// The returned Result carries the single-page document and the smallest
// height probed that produced it. Renders run sequentially; ctx is checked
// before each one.
func (s *Searcher) Find(ctx context.Context, width float64, initialHeight int) (*Result, error) {
	if err := s.validate(width, initialHeight); err != nil {
		return nil, err
	}
	r := &run{Searcher: s, ctx: ctx, width: width, start: time.Now()}
	h := initialHeight
	out, err := r.probe(h, "initial")
	if err != nil {
		return nil, err
	}

	for out.Pages > 1 {
		lo, hi, err := r.bracket(h, out.Pages)
		if err != nil {
			return nil, err
		}
		for lo < hi {
			mid := lo + (hi-lo)/2
			res, err := r.probe(mid, "bisect")
			if err != nil {
				return nil, err
			}
			if res.Pages == 1 {
				hi = mid
			} else {
				lo = mid + 1
			}
		}
		if r.best == lo {
			break
		}
		// The top of the bracket was never confirmed; check it and
		// expand again from there if it still spills over.
		h = lo
		if out, err = r.probe(h, "collapse"); err != nil {
			return nil, err
		}
	}
	return r.result(), nil
}

func (s *Searcher) validate(width float64, initialHeight int) error {
	switch {
	case s.oracle == nil:
		return newError(KindInvalidInput, 0, nil, "onepage: nil oracle")
	case math.IsNaN(width) || math.IsInf(width, 0) || width <= 0:
		return newError(KindInvalidInput, 0, nil, "onepage: width must be positive, got %v", width)
	case initialHeight <= 0:
		return newError(KindInvalidInput, 0, nil, "onepage: initial height must be positive, got %d", initialHeight)
	case s.cfg.slack < 1:
		return newError(KindInvalidInput, 0, nil, "onepage: slack must be at least 1, got %d", s.cfg.slack)
	case s.cfg.maxProbes < 1:
		return newError(KindInvalidInput, 0, nil, "onepage: max probes must be at least 1, got %d", s.cfg.maxProbes)
	case s.cfg.maxHeight < 0:
		return newError(KindInvalidInput, 0, nil, "onepage: max height must not be negative, got %d", s.cfg.maxHeight)
	case s.cfg.maxHeight > 0 && initialHeight > s.cfg.maxHeight:
		return newError(KindInvalidInput, 0, nil, "onepage: initial height %d exceeds max height %d", initialHeight, s.cfg.maxHeight)
	}
	return nil
}

// run is the state of one search.
type run struct {
	*Searcher
	ctx    context.Context
	width  float64
	start  time.Time
	probes []Probe

	// Smallest height confirmed to render as one page, 0 if none yet.
	best     int
	bestData []byte
}

func (r *run) probe(height int, phase string) (*Rendering, error) {
	n := len(r.probes)
	if n >= r.cfg.maxProbes {
		return nil, newError(KindNotConverged, n, nil,
			"onepage: no single-page height after %d renders", n)
	}
	if err := r.ctx.Err(); err != nil {
		return nil, newError(KindTimedOut, n, err, "onepage: search stopped before render %d", n+1)
	}

	began := time.Now()
	out, err := r.oracle.Render(r.ctx, r.width, height)
	if err != nil && r.ctx.Err() != nil {
		return nil, newError(KindTimedOut, n, err, "onepage: search stopped during render %d", n+1)
	}
	if err != nil {
		return nil, newError(KindRenderUnavailable, n, err, "onepage: render at height %d failed", height)
	}
	if out == nil || out.Pages < 1 {
		return nil, newError(KindRenderUnavailable, n, nil, "onepage: render at height %d returned no pages", height)
	}

	r.probes = append(r.probes, Probe{Height: height, Pages: out.Pages})
	if out.Pages == 1 && (r.best == 0 || height < r.best) {
		r.best, r.bestData = height, out.Data
	}
	r.cfg.logger.Debug("render probe",
		zap.String("phase", phase),
		zap.Int("probe", n+1),
		zap.Float64("width", r.width),
		zap.Int("height", height),
		zap.Int("pages", out.Pages),
		zap.Duration("elapsed", time.Since(began)))
	return out, nil
}

// bracket derives the bisection interval after height h rendered as pages
// pages: h is insufficient, pages*h is expected to suffice.
func (r *run) bracket(h, pages int) (lo, hi int, err error) {
	ceiling := math.MaxInt
	if r.cfg.maxHeight > 0 {
		ceiling = r.cfg.maxHeight
	}
	if h >= ceiling {
		return 0, 0, newError(KindNotConverged, len(r.probes), nil,
			"onepage: height %d still renders %d pages and the ceiling is %d", h, pages, ceiling)
	}

	hi = min(mulSat(pages, h), ceiling)
	lo = h + 1
	if k := pages - r.cfg.slack; k > 1 {
		lo = max(lo, min(mulSat(k, h), hi))
	}
	r.cfg.logger.Debug("bracket",
		zap.Int("from_height", h),
		zap.Int("from_pages", pages),
		zap.Int("lo", lo),
		zap.Int("hi", hi))
	return lo, hi, nil
}

func (r *run) result() *Result {
	r.cfg.logger.Info("single-page height found",
		zap.Int("height", r.best),
		zap.Int("probes", len(r.probes)),
		zap.Duration("elapsed", time.Since(r.start)))
	return &Result{
		data:   r.bestData,
		width:  r.width,
		height: r.best,
		probes: r.probes,
	}
}

// mulSat multiplies two positive ints, saturating at math.MaxInt.
func mulSat(a, b int) int {
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}
