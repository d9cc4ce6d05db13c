// Package pipeline moves PMC Open Access articles through the bronze, silver
// and gold layers.
//
// A single goroutine walks the manifest and fetches payloads, since the
// fetcher is stateful and serializes requests anyway. Parsing is spread over
// a pool of workers. A run that completes without error records the newest
// "last updated" timestamp it ingested so that the next run only picks up
// what changed since.
package pipeline

import (
	"context"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/coreason-ai/pmc-etl/manifest"
	"github.com/coreason-ai/pmc-etl/metrics"
	"github.com/coreason-ai/pmc-etl/schema"
	"github.com/coreason-ai/pmc-etl/sink"
	"github.com/coreason-ai/pmc-etl/state"
)

type Config struct {
	// ManifestPath is the local file list.
	ManifestPath string

	// RemoteManifest is the path of the file list within the dataset. When
	// set it is downloaded to ManifestPath before the run.
	RemoteManifest string

	// StateName is the key of the high-water mark in the state store.
	StateName string

	// FullRefresh ignores the stored high-water mark.
	FullRefresh bool

	// Workers is the number of parsers, runtime.NumCPU() by default.
	Workers int
}

// Pipeline runs the ingestion. The state store and the validator are
// optional.
type Pipeline struct {
	logger    logrus.FieldLogger
	fs        afero.Fs
	source    Source
	sink      sink.Sink
	state     state.Store
	validator *schema.Validator
	metrics   *metrics.Metrics
	config    Config

	now func() time.Time
}

func New(
	logger logrus.FieldLogger, fs afero.Fs,
	src Source, snk sink.Sink, store state.Store,
	validator *schema.Validator, m *metrics.Metrics,
	config Config) *Pipeline {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.StateName == "" {
		config.StateName = state.DefaultName
	}
	return &Pipeline{
		logger:    logger,
		fs:        fs,
		source:    src,
		sink:      snk,
		state:     store,
		validator: validator,
		metrics:   m,
		config:    config,
		now:       time.Now,
	}
}

// Run ingests every record of the manifest newer than the high-water mark.
// Per-record problems are logged and counted, the run only fails when the
// manifest, the state store or the sink fail, or when ctx is canceled.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := p.now()
	runID := uuid.New().String()
	logger := p.logger.WithField("run_id", runID)
	logger.WithField("workers", p.config.Workers).Info("Run started")

	sum := &Summary{RunID: runID}
	defer func() {
		sum.Duration = p.now().Sub(start)
		sum.Source = string(p.source.Source())
	}()

	if p.config.RemoteManifest != "" {
		if err := p.downloadManifest(ctx); err != nil {
			return sum, err
		}
	}

	cutoff, err := p.cutoff(ctx)
	if err != nil {
		return sum, err
	}
	if !cutoff.IsZero() {
		logger.WithField("cutoff", cutoff.Format(time.RFC3339)).Info("Incremental run")
	}

	f, err := p.fs.Open(p.config.ManifestPath)
	if err != nil {
		return sum, errors.Wrap(err, "opening manifest")
	}
	defer f.Close()
	reader := manifest.NewReader(logger.WithField("component", "manifest"), f, cutoff)

	var (
		c      counters
		hwm    time.Time
		bronze = make(chan *BronzeRecord)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(bronze)
		for {
			rec, err := reader.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return errors.Wrap(err, "reading manifest")
			}

			b, err := Ingest(gctx, p.source, *rec, p.now())
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.fetchFailed.Add(1)
				logger.WithField("file_path", rec.FilePath).WithError(err).Warn("Fetch failed, skipping")
				continue
			}
			c.fetched.Add(1)

			if err := p.sink.Write(gctx, sink.LayerBronze, b.SourceFilePath, b); err != nil {
				return err
			}
			c.written.Add(1)

			if b.LastUpdated.After(hwm) {
				hwm = b.LastUpdated
			}

			select {
			case bronze <- b:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})
	for i := 0; i < p.config.Workers; i++ {
		g.Go(func() error {
			for b := range bronze {
				if err := p.refine(gctx, logger, b, &c); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err = g.Wait()
	c.fill(sum)
	if err != nil {
		logger.WithError(err).Error("Run aborted")
		return sum, err
	}

	// The mark only moves once every record is durable at the destination.
	if err := p.sink.Flush(ctx); err != nil {
		logger.WithError(err).Error("Run aborted")
		return sum, errors.Wrap(err, "flushing sink")
	}

	if !hwm.IsZero() && p.state != nil {
		if err := p.state.SetHighWaterMark(ctx, p.config.StateName, hwm); err != nil {
			return sum, errors.Wrap(err, "saving high-water mark")
		}
		sum.HighWaterMark = hwm
	}

	logger.WithFields(logrus.Fields{
		"fetched": sum.Fetched,
		"parsed":  sum.Parsed,
		"written": sum.Written,
	}).Info("Run completed")
	return sum, nil
}

// refine runs the silver and gold transformations of a bronze record.
func (p *Pipeline) refine(ctx context.Context, logger logrus.FieldLogger, b *BronzeRecord, c *counters) error {
	res := TransformSilver(logger.WithField("layer", sink.LayerSilver), p.validator, p.metrics, b)
	c.outcome(res.Outcome)
	c.violations.Add(int64(len(res.Violations)))
	if res.Record == nil {
		return nil
	}

	key := b.SourceFilePath
	if res.Record.PMCID != nil {
		key = *res.Record.PMCID
	}
	if err := p.sink.Write(ctx, sink.LayerSilver, key, res.Record); err != nil {
		return err
	}
	if err := p.sink.Write(ctx, sink.LayerGold, key, TransformGold(res.Record)); err != nil {
		return err
	}
	c.written.Add(2)
	return nil
}

func (p *Pipeline) downloadManifest(ctx context.Context) error {
	p.logger.WithField("path", p.config.RemoteManifest).Info("Downloading manifest")
	blob, err := p.source.GetFile(ctx, p.config.RemoteManifest)
	if err != nil {
		return errors.Wrap(err, "downloading manifest")
	}
	return errors.Wrap(afero.WriteFile(p.fs, p.config.ManifestPath, blob, 0o644), "saving manifest")
}

func (p *Pipeline) cutoff(ctx context.Context) (time.Time, error) {
	if p.config.FullRefresh || p.state == nil {
		return time.Time{}, nil
	}
	t, ok, err := p.state.HighWaterMark(ctx, p.config.StateName)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "loading high-water mark")
	}
	if !ok {
		return time.Time{}, nil
	}
	return t, nil
}

type counters struct {
	fetched     atomic.Int64
	fetchFailed atomic.Int64
	parsed      atomic.Int64
	empty       atomic.Int64
	absent      atomic.Int64
	malformed   atomic.Int64
	failed      atomic.Int64
	violations  atomic.Int64
	written     atomic.Int64
}

func (c *counters) outcome(o string) {
	switch o {
	case metrics.OutcomeParsed:
		c.parsed.Add(1)
	case metrics.OutcomeEmpty:
		c.empty.Add(1)
	case metrics.OutcomeAbsent:
		c.absent.Add(1)
	case metrics.OutcomeMalformed:
		c.malformed.Add(1)
	default:
		c.failed.Add(1)
	}
}

func (c *counters) fill(s *Summary) {
	s.Fetched = c.fetched.Load()
	s.FetchFailed = c.fetchFailed.Load()
	s.Parsed = c.parsed.Load()
	s.Empty = c.empty.Load()
	s.Absent = c.absent.Load()
	s.Malformed = c.malformed.Load()
	s.Failed = c.failed.Load()
	s.Violations = c.violations.Load()
	s.Written = c.written.Load()
}
