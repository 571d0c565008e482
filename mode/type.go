package mode

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/pipeline"
	"github.com/khaledhikmat/ws-go/service/data"
	"github.com/khaledhikmat/ws-go/service/lgr"
)

type Processor func(canxCtx context.Context, svcs pipeline.ServicesFactory) error

// stream capacity for the error and stats processors
const streamBuffer = 100

func procStats(datasvc data.IService, stats interface{}) {
	switch stats := stats.(type) {
	case model.AgentStats:
		procAgentStats(datasvc, stats)
	case model.DetectorStats:
		procDetectorStats(datasvc, stats)
	case model.AlerterStats:
		procAlerterStats(datasvc, stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
	}
}

func procAgentStats(datasvc data.IService, stats model.AgentStats) {
	err := datasvc.NewAgentStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store agent stats",
			slog.Any("stats", stats),
			lgr.Err(err),
		)
	}
}

func procDetectorStats(datasvc data.IService, stats model.DetectorStats) {
	lgr.Logger.Debug(
		"detector stats",
		slog.String("runID", stats.RunID),
		slog.Int("frames", stats.Frames),
		slog.Int("accepted", stats.Accepted),
		slog.Int("fps", stats.FPS),
	)

	err := datasvc.NewDetectorStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store detector stats",
			slog.Any("stats", stats),
			lgr.Err(err),
		)
	}
}

func procAlerterStats(datasvc data.IService, stats model.AlerterStats) {
	err := datasvc.NewAlerterStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store alerter stats",
			slog.Any("stats", stats),
			lgr.Err(err),
		)
	}
}

// procError persists the error record and reports it to Sentry when a client is configured.
func procError(datasvc data.IService, err interface{}) {
	if e, ok := err.(error); ok {
		sentry.CaptureException(e)
	} else {
		sentry.CaptureMessage(fmt.Sprintf("%v", err))
	}

	errTemp := datasvc.NewError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			lgr.Err(errTemp),
		)
	}
}
