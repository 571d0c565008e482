package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/data"
	"github.com/khaledhikmat/ws-go/service/lgr"
	"github.com/khaledhikmat/ws-go/service/metrics"
	"github.com/khaledhikmat/ws-go/service/pubsub"
	"github.com/khaledhikmat/ws-go/service/store"
)

var ErrUnknownCategory = errors.New("unknown category")

// StatSink counts accepted detections in memory and persists them twice: a best-effort
// remote increment keyed by user and a local snapshot that must succeed.
type StatSink struct {
	mu       sync.Mutex
	user     model.UserIdentity
	set      model.CategorySet
	counters model.StatCounters

	dataSvc     data.IService
	storeSvc    store.IService
	pubsubSvc   pubsub.IService
	metrics     *metrics.Metrics
	timeout     time.Duration
	errorStream chan interface{}
}

func NewStatSink(svcs ServicesFactory, user model.UserIdentity, set model.CategorySet, errorStream chan interface{}) *StatSink {
	m := svcs.Metrics
	if m == nil {
		m = metrics.New()
	}

	return &StatSink{
		user:        user,
		set:         set,
		counters:    model.NewStatCounters(set),
		dataSvc:     svcs.DataSvc,
		storeSvc:    svcs.StoreSvc,
		pubsubSvc:   svcs.PubsubSvc,
		metrics:     m,
		timeout:     svcs.CfgSvc.GetStoreParameters().Timeout,
		errorStream: errorStream,
	}
}

// Accumulate adds one to category. Remote and fan-out failures are logged and
// swallowed; only a failed local snapshot is returned.
func (s *StatSink) Accumulate(ctx context.Context, category model.Category) error {
	if _, ok := s.set.Slot(category); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	s.mu.Lock()
	s.counters[category]++
	counters := s.counters.Clone()
	s.mu.Unlock()

	// The lock is not held across network calls.
	s.persistRemote(ctx, category)
	s.publish(ctx, counters)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dataSvc.SaveSnapshot(s.counters.Clone()); err != nil {
		s.metrics.LocalErrors.Add(1)
		return fmt.Errorf("local snapshot write failed: %w", err)
	}
	return nil
}

func (s *StatSink) persistRemote(ctx context.Context, category model.Category) {
	if s.storeSvc == nil {
		return
	}
	if s.user.Anonymous() {
		lgr.Logger.Debug("no user identity, skipping remote stats update")
		return
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.storeSvc.Increment(rctx, s.user, category)
	if err == nil {
		return
	}

	s.metrics.RemoteErrors.Add(1)
	lgr.Logger.Warn("remote stats update failed, continuing with local snapshot",
		slog.String("user", string(s.user)),
		slog.String("category", string(category)),
		lgr.Err(err),
	)
	send(s.errorStream, model.GenError("stat_sink", err, map[string]interface{}{
		"user":     string(s.user),
		"category": string(category),
	}, "remote stats update failed"))
}

func (s *StatSink) publish(ctx context.Context, counters model.StatCounters) {
	if s.pubsubSvc == nil {
		return
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.pubsubSvc.PublishStats(pctx, model.StatsUpdate{
		User:      s.user,
		Counters:  counters,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		lgr.Logger.Warn("stats update not published", lgr.Err(err))
	}
}

// Flush writes the full in-memory snapshot to the local file.
func (s *StatSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dataSvc.SaveSnapshot(s.counters.Clone()); err != nil {
		s.metrics.LocalErrors.Add(1)
		return fmt.Errorf("local snapshot flush failed: %w", err)
	}
	return nil
}

func (s *StatSink) Snapshot() model.StatCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters.Clone()
}

func (s *StatSink) User() model.UserIdentity {
	return s.user
}
