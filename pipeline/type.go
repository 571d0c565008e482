package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/config"
	"github.com/khaledhikmat/ws-go/service/data"
	"github.com/khaledhikmat/ws-go/service/inference"
	"github.com/khaledhikmat/ws-go/service/metrics"
	"github.com/khaledhikmat/ws-go/service/pubsub"
	"github.com/khaledhikmat/ws-go/service/store"
)

// ErrStopRequested is returned by a Preview when the operator asks the loop to stop.
var ErrStopRequested = errors.New("stop requested")

type FrameData struct {
	Mat       model.Image
	Timestamp time.Time
}

// Source yields captured frames in order. Read returns io.EOF at end of stream.
// Any other error means the frame could not be decoded and is skipped.
type Source interface {
	Name() string
	Read(ctx context.Context) (FrameData, error)
	Close() error
}

// MotionGate reports whether a candidate object is present in a frame. It keeps a
// running background model so frames must be fed in capture order.
type MotionGate interface {
	Observe(frame FrameData) (bool, error)
	Close() error
}

// Preview renders frames for the operator.
type Preview interface {
	Show(frame FrameData, caption string) error
	Close() error
}

// Notifier receives accepted detections from the alerter.
type Notifier interface {
	Notify(ctx context.Context, event model.DetectionEvent) error
}

// ServicesFactory carries the services one agent depends on. StoreSvc and PubsubSvc
// may be nil, which disables remote persistence and stats fan-out.
type ServicesFactory struct {
	CfgSvc       config.IService
	DataSvc      data.IService
	InferenceSvc inference.IService
	StoreSvc     store.IService
	PubsubSvc    pubsub.IService
	Notifiers    map[string]Notifier
	Metrics      *metrics.Metrics
}

// Vision is the per-agent capture side. The agent owns and closes every part.
type Vision struct {
	Source  Source
	Gate    MotionGate
	Preview Preview
}

// send pushes v onto a processor stream without ever blocking the caller.
func send(stream chan interface{}, v interface{}) {
	if stream == nil {
		return
	}
	select {
	case stream <- v:
	default:
	}
}
