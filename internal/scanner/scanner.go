// Package scanner runs the scan pipeline: render, extract, score.
package scanner

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/raysh454/consentscan/internal/browser"
	"github.com/raysh454/consentscan/internal/extractor"
	"github.com/raysh454/consentscan/internal/logging"
	"github.com/raysh454/consentscan/internal/model"
	"github.com/raysh454/consentscan/internal/scoring"
)

// Config bounds how many browsers run at once and how fast new ones start.
type Config struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`

	// LaunchesPerSecond paces renderer calls. Zero disables pacing.
	LaunchesPerSecond float64 `mapstructure:"launches_per_second"`
	LaunchBurst       int     `mapstructure:"launch_burst"`
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrent:     4,
		LaunchesPerSecond: 2,
		LaunchBurst:       2,
	}
}

// Scanner is safe for concurrent use. Scans share nothing but the
// concurrency and pacing limits.
type Scanner struct {
	renderer browser.PageRenderer
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	limit    int
	logger   logging.Logger
}

func New(cfg Config, renderer browser.PageRenderer, logger logging.Logger) (*Scanner, error) {
	if renderer == nil {
		return nil, errors.New("scanner: nil renderer")
	}
	if logger == nil {
		return nil, errors.New("scanner: nil logger")
	}
	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = DefaultConfig().MaxConcurrent
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.LaunchesPerSecond > 0 {
		burst := cfg.LaunchBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.LaunchesPerSecond), burst)
	}
	return &Scanner{
		renderer: renderer,
		sem:      semaphore.NewWeighted(int64(limit)),
		limiter:  limiter,
		limit:    limit,
		logger:   logger.With(logging.Field{Key: "component", Value: "scanner"}),
	}, nil
}

// ScanSite renders rawURL and scores it. Every failure is a
// *model.ScanError; extraction and scoring cannot fail.
func (s *Scanner) ScanSite(ctx context.Context, rawURL string) (*model.ScanResult, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, &model.ScanError{Kind: model.KindNavigation, Target: rawURL, Err: err}
	}
	defer s.sem.Release(1)

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &model.ScanError{Kind: model.KindNavigation, Target: rawURL, Err: err}
	}

	start := time.Now()
	page, err := s.renderer.Render(ctx, rawURL)
	if err != nil {
		var se *model.ScanError
		if !errors.As(err, &se) {
			err = &model.ScanError{Kind: model.KindNavigation, Target: rawURL, Err: err}
		}
		s.logger.Warn("scan failed",
			logging.Field{Key: "url", Value: rawURL},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, err
	}

	result := scoring.Score(extractor.Extract(page))
	s.logger.Info("scan complete",
		logging.Field{Key: "url", Value: page.Target.String()},
		logging.Field{Key: "score", Value: result.Score},
		logging.Field{Key: "missing", Value: len(result.Missing)},
		logging.Field{Key: "elapsed", Value: time.Since(start).String()})
	return result, nil
}

// Outcome is the result of one target in a batch.
type Outcome struct {
	URL    string
	Result *model.ScanResult
	Err    error
}

// ScanMany scans urls concurrently. Per-target failures are reported in
// the outcome, which keeps the input order; only cancellation of ctx
// fails the batch.
func (s *Scanner) ScanMany(ctx context.Context, urls []string) ([]Outcome, error) {
	out := make([]Outcome, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)

	for i, u := range urls {
		g.Go(func() error {
			res, err := s.ScanSite(gctx, u)
			out[i] = Outcome{URL: u, Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, ctx.Err()
}
