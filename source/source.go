// Package source fetches PMC Open Access files. The public S3 bucket is the
// primary source; after repeated consecutive S3 failures the manager switches
// to the NCBI FTP mirror for the rest of its lifetime.
package source

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/coreason-ai/pmc-etl/metrics"
	"github.com/coreason-ai/pmc-etl/s3"
)

const (
	DefaultBucket            = "pmc-oa-opendata"
	DefaultFailoverThreshold = 3
)

// Kind identifies where a file came from.
type Kind string

const (
	KindS3  Kind = "S3"
	KindFTP Kind = "FTP"
)

// Fetcher returns the contents of a file given its path relative to the
// root of the Open Access dataset, e.g. "oa_comm/xml/all/PMC12345.xml".
type Fetcher interface {
	GetFile(ctx context.Context, path string) ([]byte, error)
}

type Config struct {
	Bucket            string
	FailoverThreshold int

	// RateLimit caps the number of requests per second, zero disables it.
	RateLimit float64
	Burst     int
}

// Manager implements Fetcher with S3 to FTP failover. It is safe for
// concurrent use but requests are serialized.
type Manager struct {
	logger  logrus.FieldLogger
	storage s3.ObjectStorage
	ftp     Fetcher
	metrics *metrics.Metrics
	limiter *rate.Limiter

	bucket    string
	threshold int

	mu          sync.Mutex
	current     Kind
	consecutive int
}

var _ Fetcher = (*Manager)(nil)

func NewManager(logger logrus.FieldLogger, storage s3.ObjectStorage, ftp Fetcher, m *metrics.Metrics, config Config) *Manager {
	if config.Bucket == "" {
		config.Bucket = DefaultBucket
	}
	if config.FailoverThreshold <= 0 {
		config.FailoverThreshold = DefaultFailoverThreshold
	}
	mgr := &Manager{
		logger:    logger,
		storage:   storage,
		ftp:       ftp,
		metrics:   m,
		bucket:    config.Bucket,
		threshold: config.FailoverThreshold,
		current:   KindS3,
	}
	if config.RateLimit > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		mgr.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}
	return mgr
}

// Source reports the source currently in use.
func (m *Manager) Source() Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// GetFile fetches a file from the current source.
//
// S3 failures below the failover threshold are returned to the caller. The
// failure that reaches the threshold switches the manager to FTP and the
// same request is served from FTP.
func (m *Manager) GetFile(ctx context.Context, path string) ([]byte, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == KindS3 {
		start := time.Now()
		blob, err := s3.Get(ctx, m.storage, s3.URI(m.bucket, path))
		if err == nil {
			m.consecutive = 0
			m.metrics.Fetched(string(KindS3), metrics.StatusSuccess, time.Since(start))
			return blob, nil
		}
		m.metrics.Fetched(string(KindS3), metrics.StatusFail, time.Since(start))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		m.consecutive++
		m.logger.WithFields(logrus.Fields{
			"path":     path,
			"failures": m.consecutive,
			"limit":    m.threshold,
		}).WithError(err).Warn("S3 fetch failed")

		if m.consecutive < m.threshold {
			return nil, errors.Wrapf(err, "fetching %s from S3", path)
		}

		m.logger.WithField("path", path).Info("S3 unreachable, switching to FTP for subsequent requests")
		m.current = KindFTP
		m.metrics.Failover()
	}

	start := time.Now()
	blob, err := m.ftp.GetFile(ctx, path)
	if err != nil {
		m.metrics.Fetched(string(KindFTP), metrics.StatusFail, time.Since(start))
		return nil, err
	}
	m.metrics.Fetched(string(KindFTP), metrics.StatusSuccess, time.Since(start))
	return blob, nil
}
