package mode

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/pipeline"
	"github.com/khaledhikmat/ws-go/service/lgr"
	"github.com/khaledhikmat/ws-go/service/metrics"
	"github.com/khaledhikmat/ws-go/vision"
)

// newVision is swapped in tests that cannot open a camera.
var newVision = vision.NewVision

// Detect runs one agent for the configured user until it is cancelled or the stream
// ends, then flushes and prints the final statistics.
func Detect(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	cfgSvc := svcs.CfgSvc
	shutdown := time.Duration(cfgSvc.GetModeMaxShutdownTime()) * time.Second
	user := model.UserIdentity(cfgSvc.GetUserIdentity())

	// Create error and stats streams
	errorStream := make(chan interface{}, streamBuffer)
	statsStream := make(chan interface{}, streamBuffer)

	if svcs.Metrics == nil {
		svcs.Metrics = metrics.New()
	}

	v, err := newVision(cfgSvc)
	if err != nil {
		return xerrors.Errorf("failed to open capture: %w", err)
	}

	agent, err := pipeline.NewAgent(svcs, v, user, errorStream, statsStream)
	if err != nil {
		closeVision(v)
		return xerrors.Errorf("failed to create agent: %w", err)
	}

	stopMetrics := serveMetrics(cfgSvc.GetMetricsAddress(), svcs.Metrics.Handler())
	defer stopMetrics(shutdown)

	if user.Anonymous() {
		lgr.Logger.Warn("no user identity configured, statistics are only saved locally")
	}

	agent.Start(canxCtx)

	// Wait for cancellation, end of stream, stats or errors
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"detect mode context cancelled",
			)
			goto resume

		case <-agent.Done():
			lgr.Logger.Info(
				"detection loop ended",
				slog.String("agentID", agent.ID),
			)
			goto resume

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}

resume:
	counters, stopErr := agent.Stop(shutdown)
	if stopErr != nil {
		lgr.Logger.Error("agent stopped with error", lgr.Err(stopErr))
	}

	report(os.Stdout, svcs.StoreSvc, cfgSvc.GetStoreParameters().Timeout, user, counters)

	drain(svcs, shutdown, statsStream, errorStream)
	return stopErr
}

// drain processes what the agent's goroutines reported while stopping. It returns once
// both streams are empty or the shutdown period expires.
func drain(svcs pipeline.ServicesFactory, period time.Duration, statsStream, errorStream chan interface{}) {
	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			lgr.Logger.Info(
				"shutdown waiting period expired",
				slog.Duration("period", period),
			)
			return

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)

		default:
			return
		}
	}
}

func closeVision(v pipeline.Vision) {
	closers := []interface{ Close() error }{v.Source, v.Gate}
	if v.Preview != nil {
		closers = append(closers, v.Preview)
	}
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			lgr.Logger.Warn("error closing capture resource", lgr.Err(err))
		}
	}
}

// serveMetrics exposes handler on address until the returned stop function is called.
// An empty address disables it.
func serveMetrics(address string, handler http.Handler) func(time.Duration) {
	if address == "" {
		return func(time.Duration) {}
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	srv := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lgr.Logger.Info("metrics listening", slog.String("address", address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lgr.Logger.Error("metrics server failed", lgr.Err(err))
		}
	}()

	return func(grace time.Duration) {
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			lgr.Logger.Warn("metrics server shutdown", lgr.Err(err))
		}
	}
}
