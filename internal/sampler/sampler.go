package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/7c/schedprobe/internal/procscan"
	"github.com/7c/schedprobe/internal/sched"
)

// Observer receives the outcome of each cycle. Implementations must be safe
// to call from the goroutine running Sample.
type Observer interface {
	ObserveCycle(res *Result)
	ObserveFailure(err error)
}

// Sampler runs one discover, resolve, parse, assemble cycle per call.
type Sampler struct {
	Lister   procscan.Lister
	ProcRoot string
	// Workers > 1 parses scheduler files concurrently. Row order does not
	// depend on it.
	Workers  int
	Align    sched.Align
	Logger   *slog.Logger
	Observer Observer
}

// Result is one completed cycle.
type Result struct {
	Table       *sched.Table
	Diagnostics procscan.Diagnostics
	Enumerated  int
	Resolved    int
	Started     time.Time
	Duration    time.Duration
}

// Dropped returns how many enumerated processes are absent from the table.
func (r *Result) Dropped() int { return r.Enumerated - r.Table.Len() }

// parsed is the outcome for one target.
type parsed struct {
	ok    bool
	entry sched.Entry
	diags procscan.Diagnostics
}

// Sample runs one cycle. It fails only when the lister is unavailable or
// ctx is cancelled; every per-line and per-process failure is a diagnostic.
func (s *Sampler) Sample(ctx context.Context) (*Result, error) {
	log := s.logger()
	start := time.Now()

	pids, diags, err := s.Lister.List(ctx)
	if err != nil {
		err = fmt.Errorf("list processes: %w", err)
		log.Error("sampling cycle aborted", "error", err)
		if s.Observer != nil {
			s.Observer.ObserveFailure(err)
		}
		return nil, err
	}

	targets, rdiags := procscan.Resolve(s.ProcRoot, pids)
	diags = append(diags, rdiags...)

	results, err := s.parseAll(ctx, targets)
	if err != nil {
		if s.Observer != nil {
			s.Observer.ObserveFailure(err)
		}
		return nil, err
	}

	entries := make([]sched.Entry, 0, len(results))
	for _, p := range results {
		diags = append(diags, p.diags...)
		if p.ok {
			entries = append(entries, p.entry)
		}
	}

	res := &Result{
		Table:       sched.Assemble(entries, s.Align),
		Diagnostics: diags,
		Enumerated:  len(pids),
		Resolved:    len(targets),
		Started:     start,
		Duration:    time.Since(start),
	}
	s.report(log, res)
	if s.Observer != nil {
		s.Observer.ObserveCycle(res)
	}
	return res, nil
}

func (s *Sampler) parseAll(ctx context.Context, targets []procscan.Target) ([]parsed, error) {
	results := make([]parsed, len(targets))
	if s.Workers <= 1 {
		for i, t := range targets {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = parseTarget(t)
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for i, t := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = parseTarget(t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// parseTarget reads one scheduler file. It never fails the cycle.
func parseTarget(t procscan.Target) parsed {
	res, err := sched.ParseFile(t.Path)
	if err != nil {
		return parsed{diags: procscan.Diagnostics{{
			Kind: procscan.KindReadFailure, PID: t.PID, Path: t.Path, Err: err,
		}}}
	}

	p := parsed{ok: true, entry: sched.Entry{PID: t.PID, Record: res.Record}}
	for _, le := range res.Skipped {
		p.diags = append(p.diags, &procscan.Diagnostic{
			Kind: procscan.KindFieldParse, PID: t.PID, Path: t.Path,
			Line: le.Line, Text: le.Text, Err: errors.New(le.Reason),
		})
	}
	switch {
	case !res.HeaderFound:
		p.diags = append(p.diags, &procscan.Diagnostic{
			Kind: procscan.KindNoSeparator, PID: t.PID, Path: t.Path, Err: sched.ErrNoSeparator,
		})
	case len(res.Record) == 0:
		p.diags = append(p.diags, &procscan.Diagnostic{
			Kind: procscan.KindEmptyRecord, PID: t.PID, Path: t.Path,
		})
	}
	return p
}

func (s *Sampler) report(log *slog.Logger, res *Result) {
	for _, d := range res.Diagnostics {
		log.Debug("sample diagnostic",
			"kind", string(d.Kind), "pid", d.PID, "path", d.Path,
			"line", d.Line, "text", d.Text, "error", d.Err)
	}
	counts := res.Diagnostics.Counts()
	log.Info("sampling cycle complete",
		"enumerated", res.Enumerated,
		"resolved", res.Resolved,
		"rows", res.Table.Len(),
		"listing_skipped", counts[procscan.KindDiscoveryParse],
		"resolve_miss", counts[procscan.KindResolveMiss],
		"read_failure", counts[procscan.KindReadFailure],
		"field_skipped", counts[procscan.KindFieldParse],
		"empty_records", counts[procscan.KindEmptyRecord]+counts[procscan.KindNoSeparator],
		"duration", res.Duration,
	)
}

func (s *Sampler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
