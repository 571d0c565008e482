package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/khaledhikmat/ws-go/mode"
	"github.com/khaledhikmat/ws-go/service/config"
	"github.com/khaledhikmat/ws-go/service/lgr"
	"github.com/khaledhikmat/ws-go/service/tracing"
)

var modeProcessors = map[string]mode.Processor{
	"detect": mode.Detect,
	"serve":  mode.Serve,
}

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// Load env vars if we are in DEV mode. A missing .env file is fine.
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			lgr.Logger.Error("error loading .env file", lgr.Err(err))
			panic("error loading .env file")
		}
	}

	modeType := "detect"
	args := os.Args[1:]
	if len(args) > 0 {
		modeType = args[0]
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		lgr.Logger.Error("invalid mode", slog.String("mode", modeType))
		panic("invalid mode")
	}

	// Config service
	cfgSvc, err := config.NewEnv()
	if err != nil {
		lgr.Logger.Error("invalid configuration", lgr.Err(err))
		panic("invalid configuration")
	}

	logCloser := lgr.Setup(cfgSvc.GetLogLevel(), cfgSvc.GetLogFile())
	defer logCloser.Close()

	shutdownTracing := tracing.Setup("ws-go")
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			lgr.Logger.Warn("tracer provider shutdown", lgr.Err(err))
		}
	}()

	if dsn := cfgSvc.GetSentryDSN(); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			lgr.Logger.Warn("sentry disabled", lgr.Err(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Create the services needed for the mode processor
	svcs, closeSvcs, err := mode.NewServices(canxCtx, cfgSvc)
	if err != nil {
		lgr.Logger.Error("error creating services", lgr.Err(err))
		panic("error creating services")
	}
	defer closeSvcs()

	// Create mode processor result
	modeProcResult := make(chan error, 1)

	// Start the mode processor
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs)
	}()

	// Wait for cancellation or the mode processor
	select {
	case <-canxCtx.Done():
		lgr.Logger.Info(
			"ws context cancelled",
		)

	case err := <-modeProcResult:
		if err != nil {
			lgr.Logger.Info(
				"ws mode processor exited",
				lgr.Err(err),
			)
		}
		// Nothing left to wait for.
		canxFn()
		return
	}

	lgr.Logger.Info(
		"ws is waiting for the mode processor to exit",
	)

	// The mode processor flushes the running agent before it returns. The wait grows
	// with the configured shutdown window and store timeout.
	waitOnShutdown := config.ShutdownWait(cfgSvc)
	timer := time.NewTimer(waitOnShutdown)
	defer timer.Stop()

	select {
	case <-timer.C:
		lgr.Logger.Info(
			"ws shutdown waiting period expired. Exiting now",
			slog.Duration("period", waitOnShutdown),
		)

	case err := <-modeProcResult:
		if err != nil {
			lgr.Logger.Info(
				"ws mode processor exited",
				lgr.Err(err),
			)
		}
	}
}
