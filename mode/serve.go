package mode

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/ws-go/api"
	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/pipeline"
	"github.com/khaledhikmat/ws-go/service/lgr"
)

// Serve runs the admin API. Agents are started and stopped over HTTP; on cancellation
// the running agent is stopped and flushed before the server goes down.
func Serve(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	cfgSvc := svcs.CfgSvc
	shutdown := time.Duration(cfgSvc.GetModeMaxShutdownTime()) * time.Second

	// Create error and stats streams shared by every agent this server starts
	errorStream := make(chan interface{}, streamBuffer)
	statsStream := make(chan interface{}, streamBuffer)

	newAgent := func(user model.UserIdentity) (*pipeline.Agent, error) {
		v, err := newVision(cfgSvc)
		if err != nil {
			return nil, xerrors.Errorf("failed to open capture: %w", err)
		}
		agent, err := pipeline.NewAgent(svcs, v, user, errorStream, statsStream)
		if err != nil {
			closeVision(v)
			return nil, err
		}
		return agent, nil
	}

	controller := api.NewController(canxCtx, newAgent, shutdown)
	server := api.NewServer(svcs.StoreSvc, svcs.PubsubSvc, controller, svcs.Metrics, cfgSvc.GetStoreParameters().Timeout)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe(canxCtx, cfgSvc.GetAPIAddress(), shutdown)
	}()

	var runErr error

	// Wait for cancellation, server failure, stats or errors
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"serve mode context cancelled",
			)
			goto resume

		case err := <-serveErr:
			if err != nil {
				lgr.Logger.Error("admin api exited", lgr.Err(err))
			}
			runErr = err
			serveErr = nil
			goto resume

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}

resume:
	if status, ok := controller.Status(); ok {
		counters, err := controller.Stop()
		if err != nil && !errors.Is(err, api.ErrAgentNotRunning) {
			lgr.Logger.Error("agent stopped with error", lgr.Err(err))
		}
		if counters != nil {
			report(os.Stdout, svcs.StoreSvc, cfgSvc.GetStoreParameters().Timeout, status.User, counters)
		}
	}

	if serveErr != nil {
		timer := time.NewTimer(shutdown)
		defer timer.Stop()
		select {
		case err := <-serveErr:
			if err != nil {
				lgr.Logger.Error("admin api shutdown", lgr.Err(err))
			}
		case <-timer.C:
			lgr.Logger.Warn("admin api did not stop in time", slog.Duration("period", shutdown))
		}
	}

	drain(svcs, shutdown, statsStream, errorStream)
	return runErr
}
