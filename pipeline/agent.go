package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/lgr"
	"github.com/khaledhikmat/ws-go/service/metrics"
)

// Agent owns one detection run: its capture devices, classifier, detector and stat
// sink. Stop always flushes the sink exactly once, whichever way the run ended.
type Agent struct {
	ID        string
	user      model.UserIdentity
	svcs      ServicesFactory
	vision    Vision
	sink      *StatSink
	detector  *Detector
	startedAt time.Time

	errorStream chan interface{}
	statsStream chan interface{}

	cancel      context.CancelFunc
	done        chan struct{}
	alerterDone <-chan struct{}
	runErr      error

	flushOnce sync.Once
	flushErr  error
	closeOnce sync.Once
}

// NewAgent validates the classifier's categories and wires a detector for user.
func NewAgent(svcs ServicesFactory, vision Vision, user model.UserIdentity, errorStream chan interface{}, statsStream chan interface{}) (*Agent, error) {
	if vision.Source == nil || vision.Gate == nil {
		return nil, errors.New("agent requires a source and a motion gate")
	}
	if svcs.InferenceSvc == nil {
		return nil, errors.New("agent requires a classifier")
	}
	if svcs.Metrics == nil {
		svcs.Metrics = metrics.New()
	}

	set := svcs.InferenceSvc.Categories()
	if set.Len() == 0 {
		return nil, errors.New("classifier has no categories")
	}

	return &Agent{
		ID:          uuid.NewString(),
		user:        user,
		svcs:        svcs,
		vision:      vision,
		sink:        NewStatSink(svcs, user, set, errorStream),
		errorStream: errorStream,
		statsStream: statsStream,
		done:        make(chan struct{}),
	}, nil
}

// Start launches the alerter, the detector loop and the heartbeat.
func (a *Agent) Start(canxCtx context.Context) {
	ctx, cancel := context.WithCancel(canxCtx)
	a.cancel = cancel
	a.startedAt = time.Now()

	lgr.Logger.Info(
		"agent starting....",
		slog.String("agentID", a.ID),
		slog.String("user", string(a.user)),
		slog.String("source", a.vision.Source.Name()),
	)

	alertStream, alerterDone := EventAlerter(ctx, a.svcs, a.errorStream, a.statsStream)
	a.alerterDone = alerterDone

	a.detector = NewDetector(DetectorParams{
		RunID:               a.ID,
		User:                a.user,
		ConfidenceThreshold: a.svcs.CfgSvc.GetClassifierParameters().ConfidenceThreshold,
	}, a.vision, a.svcs.InferenceSvc, NewCooldown(a.svcs.CfgSvc.GetCooldownParameters()), a.sink, a.svcs.Metrics, alertStream, a.errorStream)

	a.svcs.Metrics.ActiveAgents.Add(1)

	go func() {
		defer close(a.done)
		defer a.svcs.Metrics.ActiveAgents.Add(-1)

		err := a.detector.Run(ctx)
		if err != nil {
			lgr.Logger.Error("detector stopped with error", slog.String("agentID", a.ID), lgr.Err(err))
			send(a.errorStream, model.GenError("agent", err, map[string]interface{}{"agentID": a.ID}, "detector stopped"))
		}
		a.runErr = err

		// The stream may end on its own; counters are flushed right away in that case.
		if ferr := a.flush(); ferr != nil {
			lgr.Logger.Error("flush failed", slog.String("agentID", a.ID), lgr.Err(ferr))
		}
		send(a.statsStream, a.detector.Stats())
	}()

	go a.heartbeat(ctx)
}

func (a *Agent) heartbeat(ctx context.Context) {
	period := time.Duration(a.svcs.CfgSvc.GetAgentHeartbeatPeriod()) * time.Second
	if period <= 0 {
		return
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case <-ticker.C:
			send(a.statsStream, model.AgentStats{
				ID:     a.ID,
				User:   a.user,
				Source: a.vision.Source.Name(),
				Uptime: int64(time.Since(a.startedAt).Seconds()),
			})
			send(a.statsStream, a.detector.Stats())
		}
	}
}

func (a *Agent) flush() error {
	a.flushOnce.Do(func() {
		a.flushErr = a.sink.Flush()
	})
	return a.flushErr
}

// Done is closed when the detector loop has returned.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// Err is the loop's terminal error. Only valid after Done is closed.
func (a *Agent) Err() error {
	return a.runErr
}

// Stop cancels the run, waits up to timeout for the loop, flushes the sink and
// releases the devices. It returns the final in-memory counters.
func (a *Agent) Stop(timeout time.Duration) (model.StatCounters, error) {
	if a.cancel == nil {
		return a.sink.Snapshot(), errors.New("agent was not started")
	}
	a.cancel()

	finished := true
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-a.done:
	case <-timer.C:
		finished = false
		lgr.Logger.Warn("agent loop did not stop in time, flushing anyway",
			slog.String("agentID", a.ID),
			slog.Duration("timeout", timeout),
		)
	}

	if finished {
		select {
		case <-a.alerterDone:
		case <-timer.C:
		}
	}

	flushErr := a.flush()

	var runErr error
	if finished {
		runErr = a.runErr
		// Devices are only released once the loop no longer touches them.
		a.close()
	}

	counters := a.sink.Snapshot()
	lgr.Logger.Info("agent stopped",
		slog.String("agentID", a.ID),
		slog.Int64("total", counters.Total()),
	)

	if flushErr != nil || runErr != nil {
		return counters, errors.Join(runErr, flushErr)
	}
	if !finished {
		return counters, fmt.Errorf("agent %s loop still running after %s", a.ID, timeout)
	}
	return counters, nil
}

func (a *Agent) close() {
	a.closeOnce.Do(func() {
		closers := map[string]interface{ Close() error }{
			"source": a.vision.Source,
			"gate":   a.vision.Gate,
		}
		if a.vision.Preview != nil {
			closers["preview"] = a.vision.Preview
		}
		for name, c := range closers {
			if err := c.Close(); err != nil {
				lgr.Logger.Warn("error closing agent resource", slog.String("resource", name), lgr.Err(err))
			}
		}
	})
}

// Status is a point-in-time view of a running agent.
type Status struct {
	ID        string              `json:"id"`
	User      model.UserIdentity  `json:"user"`
	Source    string              `json:"source"`
	Running   bool                `json:"running"`
	Cooldown  string              `json:"cooldown"`
	Counters  model.StatCounters  `json:"counters"`
	Detector  model.DetectorStats `json:"detector"`
	StartedAt time.Time           `json:"startedAt"`
}

func (a *Agent) Status() Status {
	running := false
	select {
	case <-a.done:
	default:
		running = a.cancel != nil
	}

	status := Status{
		ID:        a.ID,
		User:      a.user,
		Source:    a.vision.Source.Name(),
		Running:   running,
		Counters:  a.sink.Snapshot(),
		StartedAt: a.startedAt,
	}
	if a.detector != nil {
		status.Cooldown = a.detector.CooldownState().String()
		status.Detector = a.detector.Stats()
	}
	return status
}
