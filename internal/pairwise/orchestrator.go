// Package pairwise aligns every unordered pair of melodic lines with an
// alignment engine and streams the results into batched writes.
package pairwise

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/franz/fuga/internal/align"
	"github.com/franz/fuga/internal/alphabet"
	"github.com/franz/fuga/internal/report"
	"github.com/franz/fuga/internal/store"
	"github.com/franz/fuga/internal/util"
)

// ErrPersistence is returned when a result batch could not be written.
// Batches flushed before the failure stay in the sink.
var ErrPersistence = errors.New("failed to persist alignment batch")

const (
	// DefaultBatchSize is the number of results per write
	DefaultBatchSize = 100
	// DefaultProgressInterval is the cadence of progress reports
	DefaultProgressInterval = 2 * time.Second
)

// Sink receives result batches. Each call must be atomic.
type Sink interface {
	InsertAlignmentBatch(batch []store.Alignment) error
}

// Config holds orchestrator configuration
type Config struct {
	Engine           align.Engine
	Sink             Sink
	Workers          int // 0 means one per CPU
	BatchSize        int
	ProgressInterval time.Duration
	Logger           *report.EventLogger
	RunID            string

	// Skip reports pairs that already have a result
	Skip func(id1, id2 string) bool
	// OnFlush is called by the writer after every successful batch with
	// the number of results written so far and failed invocations so far
	OnFlush func(written, failed int64)
}

// Result summarizes a run
type Result struct {
	RunID     string
	Lines     int
	Total     int64
	Processed int64
	Skipped   int64
	Failed    int64 // failed invocations, not pairs
	Written   int64
	Batches   int
	Duration  time.Duration
}

// Orchestrator runs the corpus-wide pairwise alignment
type Orchestrator struct {
	cfg Config
}

// PairCount returns the number of unordered pairs of n lines
func PairCount(n int) int64 {
	if n < 2 {
		return 0
	}
	return int64(n) * int64(n-1) / 2
}

// New validates the configuration and fills in defaults
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("%w: no alignment engine", util.ErrInvalidConfig)
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("%w: no result sink", util.ErrInvalidConfig)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must be >= 0, got %d", util.ErrInvalidConfig, cfg.Workers)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("%w: batch size must be >= 1, got %d", util.ErrInvalidConfig, cfg.BatchSize)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &Orchestrator{cfg: cfg}, nil
}

// Workers returns the effective worker count
func (o *Orchestrator) Workers() int {
	return o.cfg.Workers
}

// RunID returns the id stamped on every result
func (o *Orchestrator) RunID() string {
	return o.cfg.RunID
}

// sortLines returns lines ordered by id, rejecting duplicate ids
func sortLines(lines []*store.MelodicLine) ([]*store.MelodicLine, error) {
	sorted := make([]*store.MelodicLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID {
			return nil, fmt.Errorf("%w: duplicate line id %s", util.ErrInvalidConfig, sorted[i].ID)
		}
	}
	return sorted, nil
}

// Run aligns every pair {i, j}, i < j, of lines ordered by id exactly once.
// Track failures are recorded as store.FailedRate. A failed batch write
// cancels the run and returns ErrPersistence; cancelling ctx stops
// dispatching and returns the context error after pending results are
// flushed.
func (o *Orchestrator) Run(ctx context.Context, lines []*store.MelodicLine) (*Result, error) {
	start := time.Now()
	sorted, err := sortLines(lines)
	if err != nil {
		return nil, err
	}

	result := &Result{RunID: o.cfg.RunID, Lines: len(sorted), Total: PairCount(len(sorted))}
	util.InfoLog("Aligning %s pairs of %s lines with %d workers (%s engine, batch size %d)",
		util.FormatCount(result.Total), util.FormatCount(int64(len(sorted))),
		o.cfg.Workers, o.cfg.Engine.Name(), o.cfg.BatchSize)
	o.cfg.Logger.LogAlignStart(o.cfg.RunID, o.cfg.Engine.Name(), len(sorted), result.Total, o.cfg.Workers, o.cfg.BatchSize)

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		processed atomic.Int64
		skipped   atomic.Int64
		failed    atomic.Int64
	)

	// Single writer: the only goroutine that touches the sink
	results := make(chan store.Alignment, o.cfg.BatchSize*2)
	var writeErr error
	var writerWg sync.WaitGroup
	writerWg.Add(1)
	go func() {
		defer writerWg.Done()
		batch := make([]store.Alignment, 0, o.cfg.BatchSize)
		flush := func() {
			if len(batch) == 0 || writeErr != nil {
				batch = batch[:0]
				return
			}
			flushStart := time.Now()
			err := o.cfg.Sink.InsertAlignmentBatch(batch)
			o.cfg.Logger.LogBatch(o.cfg.RunID, len(batch), time.Since(flushStart), err)
			if err != nil {
				writeErr = err
				util.ErrorLog("Batch write failed, stopping run: %v", err)
				cancel()
			} else {
				result.Written += int64(len(batch))
				result.Batches++
				if o.cfg.OnFlush != nil {
					o.cfg.OnFlush(result.Written, failed.Load())
				}
			}
			batch = batch[:0]
		}
		for rec := range results {
			batch = append(batch, rec)
			if len(batch) >= o.cfg.BatchSize {
				flush()
			}
		}
		flush()
	}()

	stopProgress := o.startProgress(start, result.Total, func() int64 {
		return processed.Load() + skipped.Load()
	})

	p := pool.New().WithMaxGoroutines(o.cfg.Workers)
dispatch:
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if ctx.Err() != nil {
				break dispatch
			}
			a, b := sorted[i], sorted[j]
			if o.cfg.Skip != nil && o.cfg.Skip(a.ID, b.ID) {
				skipped.Add(1)
				continue
			}
			p.Go(func() {
				if ctx.Err() != nil {
					return
				}
				rec, fails := o.alignPair(ctx, a, b)
				if ctx.Err() != nil {
					// Distances computed under a cancelled context are not trusted
					return
				}
				failed.Add(int64(fails))
				select {
				case results <- rec:
					processed.Add(1)
				case <-ctx.Done():
				}
			})
		}
	}
	p.Wait()
	close(results)
	writerWg.Wait()
	stopProgress()

	result.Processed = processed.Load()
	result.Skipped = skipped.Load()
	result.Failed = failed.Load()
	result.Duration = time.Since(start)

	var runErr error
	switch {
	case writeErr != nil:
		runErr = fmt.Errorf("%w: %w", ErrPersistence, writeErr)
	case parent.Err() != nil:
		runErr = parent.Err()
	}
	o.cfg.Logger.LogAlignFinish(o.cfg.RunID, result.Written, result.Failed, result.Duration, runErr)
	if runErr != nil {
		return result, runErr
	}

	util.SuccessLog("Alignment complete: %s pairs written, %s skipped, %s failed invocations (%v)",
		util.FormatCount(result.Written), util.FormatCount(result.Skipped),
		util.FormatCount(result.Failed), result.Duration.Round(time.Millisecond))
	return result, nil
}

// alignPair runs the three track alignments of one pair
func (o *Orchestrator) alignPair(ctx context.Context, a, b *store.MelodicLine) (store.Alignment, int) {
	rec := store.Alignment{LineID1: a.ID, LineID2: b.ID, RunID: o.cfg.RunID}
	fails := 0
	for _, t := range alphabet.Tracks {
		d, err := o.cfg.Engine.Distance(ctx, a.Feature(t), b.Feature(t), t)
		if err != nil {
			d = store.FailedRate
			fails++
			if ctx.Err() == nil {
				util.DebugLog("%s alignment of %s/%s failed: %v", t, a.ID, b.ID, err)
				o.cfg.Logger.LogInvocationFailure(o.cfg.RunID, a.ID, b.ID, string(t), err)
			}
		}
		rec.SetRate(t, d)
	}
	return rec, fails
}

// startProgress reports progress at the configured cadence until the
// returned stop function is called
func (o *Orchestrator) startProgress(start time.Time, total int64, done func() int64) func() {
	var bar *progressbar.ProgressBar
	if util.ShowProgressBar() {
		bar = progressbar.NewOptions64(total,
			progressbar.OptionSetDescription("Aligning"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("pairs"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(o.cfg.ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n := done()
				if bar != nil {
					bar.Set64(n)
				} else {
					util.InfoLog("Progress: %s", computeProgress(n, total, time.Since(start)))
				}
			case <-stop:
				if bar != nil {
					bar.Set64(done())
					bar.Finish()
				}
				return
			}
		}
	}()

	return func() {
		close(stop)
		wg.Wait()
	}
}
