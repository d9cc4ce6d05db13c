package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/oklog/run"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/coreason-ai/pmc-etl/metrics"
	"github.com/coreason-ai/pmc-etl/pipeline"
	"github.com/coreason-ai/pmc-etl/s3"
	"github.com/coreason-ai/pmc-etl/schema"
	"github.com/coreason-ai/pmc-etl/sink"
	"github.com/coreason-ai/pmc-etl/source"
	"github.com/coreason-ai/pmc-etl/state"
	"github.com/coreason-ai/pmc-etl/version"
)

var (
	fullRefresh bool
	dryRun      bool
)

func NewCmdRun(out io.Writer, logger logrus.FieldLogger, config *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest the Open Access dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.WithField("v", version.VERSION).Info("Starting run...")
			return doRun(out, logger, config)
		},
	}

	cmd.Flags().BoolVar(&fullRefresh, "full-refresh", false, "Ignore the stored high-water mark")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Keep the records in memory instead of writing them to the sink")

	return cmd
}

func doRun(out io.Writer, logger logrus.FieldLogger, config *Config) error {
	m := metrics.New()

	e, err := newEngine(logger, config, m)
	if err != nil {
		return err
	}
	defer e.ftp.Close()

	var g run.Group
	{
		ctx, cancel := context.WithCancel(context.Background())

		g.Add(func() error {
			sum, err := e.pipeline.Run(ctx)
			if cerr := e.sink.Close(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "closing sink")
			}
			if sum != nil {
				sum.WriteTo(out)
			}
			if config.Metrics.PushGateway != "" {
				if perr := m.Push(context.Background(), config.Metrics.PushGateway, config.Metrics.Job); perr != nil {
					logger.WithError(perr).Warn("Metrics could not be pushed")
				}
			}
			return err
		}, func(error) {
			cancel()
		})
	}
	if config.Metrics.Addr != "" {
		ln, err := net.Listen("tcp", config.Metrics.Addr)
		if err != nil {
			return err
		}
		logger.WithField("addr", ln.Addr().String()).Info("HTTP server listening")

		g.Add(func() error {
			return http.Serve(ln, newMux(m))
		}, func(error) {
			ln.Close()
		})
	}
	{
		cancel := make(chan struct{})

		g.Add(func() error {
			err := interrupt(cancel, func() {
				logger.WithField("source", e.source.Source()).Info("Run in progress")
			})
			logger.Warn("Shutting down...")
			return err
		}, func(error) {
			close(cancel)
		})
	}

	return g.Run()
}

func newMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	// Prometheus metrics.
	mux.Handle("/metrics", m.Handler())

	// Profiling data.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/debug/pprof/heap", pprof.Handler("heap"))

	return mux
}

// engine holds the components of a run.
type engine struct {
	pipeline *pipeline.Pipeline
	source   *source.Manager
	ftp      *source.FTPClient
	sink     sink.Sink
}

func newEngine(logger logrus.FieldLogger, config *Config, m *metrics.Metrics) (*engine, error) {
	fs := afero.NewOsFs()
	e := &engine{}

	{
		sess, err := s3.NewSession(s3.SessionConfig{
			Region:    config.Source.Region,
			Endpoint:  config.Source.Endpoint,
			Anonymous: true,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		e.ftp = source.NewFTPClient(logger.WithField("component", "ftp"), source.FTPConfig{
			Addr:           config.Source.FTPAddr,
			BasePath:       config.Source.FTPBasePath,
			User:           config.Source.FTPUser,
			Password:       config.Source.FTPPassword,
			Timeout:        config.Source.FTPTimeout,
			ReconnectDelay: config.Source.FTPReconnectDelay,
		})
		e.source = source.NewManager(logger.WithField("component", "source"), s3.New(sess), e.ftp, m, source.Config{
			Bucket:            config.Source.Bucket,
			FailoverThreshold: config.Source.FailoverThreshold,
			RateLimit:         config.Source.RateLimit,
			Burst:             config.Source.Burst,
		})
	}

	if dryRun {
		e.sink = sink.NewMemory()
	} else {
		sess, err := s3.NewSession(s3.SessionConfig{
			Profile:  config.AWS.S3Profile,
			Region:   config.AWS.Region,
			Endpoint: config.AWS.S3Endpoint,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		e.sink, err = sink.Open(context.Background(), config.Sink.URI, sink.Deps{
			Logger:  logger.WithField("component", "sink"),
			Fs:      fs,
			Storage: s3.New(sess),
		})
		if err != nil {
			return nil, err
		}
	}

	var store state.Store
	switch config.State.Backend {
	case "file":
		store = state.NewFileStore(fs, config.State.Path)
	case "dynamodb":
		sess, err := s3.NewSession(s3.SessionConfig{
			Profile:  config.AWS.DynamoDBProfile,
			Region:   config.AWS.Region,
			Endpoint: config.AWS.DynamoDBEndpoint,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		store = state.NewStoreDynamoDB(dynamodb.New(sess), config.State.Table)
	}

	var validator *schema.Validator
	if config.Pipeline.Validate {
		var err error
		validator, err = schema.NewValidator()
		if err != nil {
			return nil, err
		}
	}

	e.pipeline = pipeline.New(
		logger.WithField("component", "pipeline"), fs,
		e.source, e.sink, store,
		validator, m,
		pipeline.Config{
			ManifestPath:   config.Pipeline.ManifestPath,
			RemoteManifest: config.Pipeline.RemoteManifest,
			StateName:      config.State.Name,
			FullRefresh:    fullRefresh,
			Workers:        config.Pipeline.Workers,
		})

	return e, nil
}
