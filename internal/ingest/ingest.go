// Package ingest reads corpus feature files, builds dictionaries from them
// and stores encoded melodic lines.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/franz/fuga/internal/alphabet"
	"github.com/franz/fuga/internal/report"
	"github.com/franz/fuga/internal/store"
	"github.com/franz/fuga/internal/util"
)

// DefaultBatchSize is the number of lines written per transaction
const DefaultBatchSize = 500

// maxReportedErrors bounds Result.Errors on a badly broken corpus
const maxReportedErrors = 100

// Config holds ingester configuration
type Config struct {
	Store       *store.Store
	Set         *alphabet.Set
	Concurrency int
	BatchSize   int
	Retry       *util.RetryConfig // nil uses util.DefaultRetryConfig
	Logger      *report.EventLogger
}

// Ingester encodes corpus documents with a dictionary set and writes them
// to the store
type Ingester struct {
	store       *store.Store
	set         *alphabet.Set
	encoders    map[alphabet.Track]*alphabet.Encoder
	concurrency int
	batchSize   int
	retry       *util.RetryConfig
	logger      *report.EventLogger
}

// Result summarizes an ingest
type Result struct {
	FilesFound    int
	LinesIngested int
	FilesFailed   int
	EncodingGaps  int64
	Duration      time.Duration
	Errors        []error
}

// New creates an ingester
func New(cfg *Config) (*Ingester, error) {
	if cfg.Store == nil || cfg.Set == nil {
		return nil, fmt.Errorf("%w: ingest needs a store and a dictionary set", util.ErrInvalidConfig)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	encoders := make(map[alphabet.Track]*alphabet.Encoder, len(alphabet.Tracks))
	for _, t := range alphabet.Tracks {
		enc, err := cfg.Set.Encoder(t)
		if err != nil {
			return nil, err
		}
		encoders[t] = enc
	}

	return &Ingester{
		store:       cfg.Store,
		set:         cfg.Set,
		encoders:    encoders,
		concurrency: cfg.Concurrency,
		batchSize:   cfg.BatchSize,
		retry:       cfg.Retry,
		logger:      cfg.Logger,
	}, nil
}

// Encode turns a document into a melodic line. The second value counts
// tokens missing from the dictionaries.
func (i *Ingester) Encode(d *Document) (*store.MelodicLine, int, error) {
	tokens, err := d.Tokens()
	if err != nil {
		return nil, 0, err
	}

	id := store.ParseLineID(d.ID)
	line := &store.MelodicLine{
		ID:                d.ID,
		ScoreID:           id.ScoreID,
		LineNumber:        id.LineNumber,
		MusicalForm:       id.MusicalForm,
		FileExtension:     d.FileExtension,
		ChromaticTokens:   d.Chromatic,
		DiatonicTokens:    d.Diatonic,
		RhythmicTokens:    d.Rhythm,
		DictionaryVersion: i.set.Version,
		SourcePath:        d.Path,
	}

	gaps := 0
	for _, t := range alphabet.Tracks {
		encoded, g := i.encoders[t].EncodeWithGaps(tokens[t])
		line.SetFeature(t, encoded)
		gaps += g
	}
	return line, gaps, nil
}

// Ingest discovers, encodes and stores every feature file under root.
// Broken files are logged and counted; only store failures abort.
func (i *Ingester) Ingest(ctx context.Context, root string) (*Result, error) {
	start := time.Now()
	util.InfoLog("Starting ingest of: %s", root)

	paths, err := Discover(ctx, root)
	if err != nil {
		return nil, err
	}
	result := &Result{FilesFound: len(paths)}
	util.InfoLog("Found %s feature files", util.FormatCount(int64(len(paths))))

	var (
		processed atomic.Int64
		failed    atomic.Int64
		gaps      atomic.Int64
		errMu     sync.Mutex
	)
	recordErr := func(err error) {
		errMu.Lock()
		if len(result.Errors) < maxReportedErrors {
			result.Errors = append(result.Errors, err)
		}
		errMu.Unlock()
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var bar *progressbar.ProgressBar
	if util.ShowProgressBar() {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription("Ingesting"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	lines := make(chan *store.MelodicLine, i.batchSize)
	var writeErr error
	var written int
	var writerWg sync.WaitGroup
	writerWg.Add(1)
	go func() {
		defer writerWg.Done()
		batch := make([]*store.MelodicLine, 0, i.batchSize)
		flush := func() {
			if len(batch) == 0 || writeErr != nil {
				batch = batch[:0]
				return
			}
			if err := i.store.InsertMelodicLineBatch(batch); err != nil {
				writeErr = err
				cancel()
			} else {
				written += len(batch)
			}
			batch = batch[:0]
		}
		for line := range lines {
			batch = append(batch, line)
			if len(batch) >= i.batchSize {
				flush()
			}
		}
		flush()
	}()

	p := pool.New().WithMaxGoroutines(i.concurrency)
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			defer func() {
				n := processed.Add(1)
				if bar != nil {
					bar.Set64(n)
				}
			}()

			doc, err := ReadDocument(ctx, path, i.retry)
			if err == nil {
				var line *store.MelodicLine
				var g int
				line, g, err = i.Encode(doc)
				if err == nil {
					gaps.Add(int64(g))
					i.logger.LogIngest(line.ID, path, g, nil)
					if g > 0 {
						util.DebugLog("%s: %d tokens not in dictionary", line.ID, g)
					}
					select {
					case lines <- line:
					case <-ctx.Done():
					}
					return
				}
			}

			failed.Add(1)
			err = fmt.Errorf("%s: %w", path, err)
			util.WarnLog("Skipping %v", err)
			i.logger.LogIngest("", path, 0, err)
			recordErr(err)
		})
	}
	p.Wait()
	close(lines)
	writerWg.Wait()

	if bar != nil {
		bar.Finish()
	}

	result.LinesIngested = written
	result.FilesFailed = int(failed.Load())
	result.EncodingGaps = gaps.Load()
	result.Duration = time.Since(start)

	if writeErr != nil {
		return result, fmt.Errorf("failed to store melodic lines: %w", writeErr)
	}
	if err := parent.Err(); err != nil {
		return result, err
	}

	util.SuccessLog("Ingest complete: %s lines stored, %d files failed, %s tokens not in dictionary (%v)",
		util.FormatCount(int64(result.LinesIngested)), result.FilesFailed,
		util.FormatCount(result.EncodingGaps), result.Duration.Round(time.Millisecond))
	return result, nil
}

// CountTokens tallies token frequencies over every feature file under root,
// normalizing tokens the way a set built with opts will encode them.
// Unparsable files are skipped with a warning.
func CountTokens(ctx context.Context, root string, opts alphabet.BuildOptions, concurrency int, retry *util.RetryConfig) (map[alphabet.Track]*alphabet.Counter, int, error) {
	paths, err := Discover(ctx, root)
	if err != nil {
		return nil, 0, err
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	counters := alphabet.NewCounters(opts)
	var mu sync.Mutex
	var docs atomic.Int64

	p := pool.New().WithMaxGoroutines(concurrency)
	for _, path := range paths {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			doc, err := ReadDocument(ctx, path, retry)
			if err != nil {
				util.WarnLog("Skipping %s: %v", path, err)
				return
			}
			tokens, err := doc.Tokens()
			if err != nil {
				util.WarnLog("Skipping %s: %v", path, err)
				return
			}

			local := alphabet.NewCounters(opts)
			for t, toks := range tokens {
				local[t].Add(toks)
			}
			mu.Lock()
			for t, c := range local {
				counters[t].Merge(c)
			}
			mu.Unlock()
			docs.Add(1)
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return counters, int(docs.Load()), nil
}
