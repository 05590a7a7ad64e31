// Package scan runs the open, classify and resolve pipeline over a sequence
// of candidate paths and yields the ones that match a query.
package scan

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/coral-mesh/ief/internal/binfmt"
	ieferrors "github.com/coral-mesh/ief/internal/errors"
	"github.com/coral-mesh/ief/internal/resolve"
)

// Stats counts what a Scanner has seen so far.
type Stats struct {
	Scanned int64
	Matched int64
	Skipped int64
}

// Scanner checks files against queries. It is safe for concurrent use.
type Scanner struct {
	cfg    Config
	open   opener
	logger zerolog.Logger

	scanned atomic.Int64
	matched atomic.Int64
	skipped atomic.Int64
}

// New validates cfg and builds a Scanner.
func New(cfg Config) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan config: %w", err)
	}
	return &Scanner{
		cfg:    cfg,
		open:   cfg.opener(),
		logger: cfg.Logger.With().Str("component", "scan").Logger(),
	}, nil
}

// Evaluate opens path, classifies it and resolves q against it. The file is
// released before Evaluate returns.
func (s *Scanner) Evaluate(path string, q resolve.Query) (bool, error) {
	in, err := s.open(path)
	if err != nil {
		return false, fmt.Errorf("%w: %w", binfmt.ErrIO, err)
	}
	defer ieferrors.DeferClose(s.logger, in, path)

	c, err := binfmt.Classify(in, in.Size())
	if err != nil {
		return false, err
	}
	return resolve.Resolve(c, q)
}

// Check is Evaluate with every failure reported as no match. It is the one
// place where per-file errors are dropped.
func (s *Scanner) Check(path string, q resolve.Query) bool {
	s.scanned.Add(1)
	ok, err := s.Evaluate(path, q)
	if err != nil {
		s.skipped.Add(1)
		s.logger.Debug().Err(err).Str("path", path).Msg("Skipping file")
		return false
	}
	if ok {
		s.matched.Add(1)
	}
	return ok
}

// Stats returns a snapshot of the counters.
func (s *Scanner) Stats() Stats {
	return Stats{
		Scanned: s.scanned.Load(),
		Matched: s.matched.Load(),
		Skipped: s.skipped.Load(),
	}
}

// Scan yields every path from paths that satisfies q, in the order paths
// produced them. Nothing is read until the result is ranged over. Breaking
// out of the loop or cancelling ctx stops pulling from paths.
func (s *Scanner) Scan(ctx context.Context, paths iter.Seq[string], q resolve.Query) iter.Seq[string] {
	if s.cfg.Workers <= 1 {
		return s.scanSequential(ctx, paths, q)
	}
	return s.scanParallel(ctx, paths, q)
}

func (s *Scanner) scanSequential(ctx context.Context, paths iter.Seq[string], q resolve.Query) iter.Seq[string] {
	return func(yield func(string) bool) {
		for path := range paths {
			if ctx.Err() != nil {
				return
			}
			if s.Check(path, q) && !yield(path) {
				return
			}
		}
	}
}

// pending is a path whose verdict is computed by a worker.
type pending struct {
	path string
	done chan bool
}

// scanParallel checks up to Workers files at once. Verdicts are queued in
// path order, so a slow file delays the emission of later matches but never
// reorders them.
func (s *Scanner) scanParallel(ctx context.Context, paths iter.Seq[string], q resolve.Query) iter.Seq[string] {
	return func(yield func(string) bool) {
		ctx, cancel := context.WithCancel(ctx)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Workers)

		queue := make(chan pending, s.cfg.Workers)
		go func() {
			defer close(queue)
			for path := range paths {
				if gctx.Err() != nil {
					return
				}
				p := pending{path: path, done: make(chan bool, 1)}
				select {
				case queue <- p:
				case <-gctx.Done():
					return
				}
				g.Go(func() error {
					p.done <- s.Check(p.path, q)
					return nil
				})
			}
		}()

		defer func() {
			cancel()
			for range queue {
			}
			_ = g.Wait()
		}()

		for p := range queue {
			matched := <-p.done
			if ctx.Err() != nil {
				return
			}
			if matched && !yield(p.path) {
				return
			}
		}
	}
}
