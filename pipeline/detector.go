package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/inference"
	"github.com/khaledhikmat/ws-go/service/lgr"
	"github.com/khaledhikmat/ws-go/service/metrics"
)

const idleYield = 10 * time.Millisecond

var tracer = otel.Tracer("github.com/khaledhikmat/ws-go/pipeline")

// Outcome is what happened to one frame.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeNoMotion
	OutcomeCoolingDown
	OutcomeClassifierFailed
	OutcomeRejected
	OutcomeAccepted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoMotion:
		return "no_motion"
	case OutcomeCoolingDown:
		return "cooling_down"
	case OutcomeClassifierFailed:
		return "classifier_failed"
	case OutcomeRejected:
		return "rejected"
	case OutcomeAccepted:
		return "accepted"
	default:
		return "skipped"
	}
}

type DetectorParams struct {
	RunID               string
	User                model.UserIdentity
	ConfidenceThreshold float32
}

// Detector runs the per-frame loop: motion gate, cooldown, classifier, confidence gate
// and stat accumulation. One goroutine drives it; frames are never processed in parallel.
type Detector struct {
	params      DetectorParams
	source      Source
	gate        MotionGate
	preview     Preview
	classifier  inference.IService
	cooldown    *Cooldown
	sink        *StatSink
	alertStream chan<- model.DetectionEvent
	errorStream chan interface{}
	metrics     *metrics.Metrics

	caption string

	mu        sync.Mutex
	stats     model.DetectorStats
	state     CooldownState
	procTime  time.Duration
	startTime time.Time
}

func NewDetector(params DetectorParams,
	vision Vision,
	classifier inference.IService,
	cooldown *Cooldown,
	sink *StatSink,
	m *metrics.Metrics,
	alertStream chan<- model.DetectionEvent,
	errorStream chan interface{}) *Detector {
	if m == nil {
		m = metrics.New()
	}

	return &Detector{
		params:      params,
		source:      vision.Source,
		gate:        vision.Gate,
		preview:     vision.Preview,
		classifier:  classifier,
		cooldown:    cooldown,
		sink:        sink,
		alertStream: alertStream,
		errorStream: errorStream,
		metrics:     m,
		stats: model.DetectorStats{
			Name:   "detector",
			RunID:  params.RunID,
			Source: vision.Source.Name(),
		},
		startTime: time.Now(),
	}
}

// Run processes frames until ctx is cancelled, the source ends, or the preview asks to
// stop. Only a failed local snapshot write is returned as an error.
func (d *Detector) Run(ctx context.Context) error {
	lgr.Logger.Info("detector starting...",
		slog.String("runID", d.params.RunID),
		slog.String("source", d.source.Name()),
		slog.String("user", string(d.params.User)),
		slog.Float64("threshold", float64(d.params.ConfidenceThreshold)),
	)

	for {
		select {
		case <-ctx.Done():
			lgr.Logger.Info("detector context cancelled", slog.String("runID", d.params.RunID))
			return nil
		default:
		}

		frame, err := d.source.Read(ctx)
		if errors.Is(err, io.EOF) {
			lgr.Logger.Info("end of stream", slog.String("source", d.source.Name()))
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			d.skip(err)
			select {
			case <-ctx.Done():
			case <-time.After(idleYield):
			}
			continue
		}

		_, err = d.ProcessFrame(ctx, frame)
		if errors.Is(err, ErrStopRequested) {
			lgr.Logger.Info("stop requested from preview", slog.String("runID", d.params.RunID))
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (d *Detector) skip(err error) {
	d.mu.Lock()
	d.stats.Errors++
	d.mu.Unlock()
	d.metrics.FramesSkipped.Add(1)
	lgr.Logger.Debug("skipping unreadable frame", lgr.Err(err))
}

// ProcessFrame runs one iteration of the loop and always releases the frame. The
// returned error is non-nil only for a failed local snapshot or a stop request.
func (d *Detector) ProcessFrame(ctx context.Context, frame FrameData) (Outcome, error) {
	if frame.Mat != nil {
		defer frame.Mat.Close()
	}

	d.metrics.FramesRead.Add(1)
	d.mu.Lock()
	d.stats.Frames++
	d.mu.Unlock()

	outcome, err := d.process(ctx, frame)
	if err != nil {
		return outcome, err
	}

	if d.preview != nil {
		if perr := d.preview.Show(frame, d.caption); perr != nil {
			return outcome, perr
		}
	}

	return outcome, nil
}

func (d *Detector) process(ctx context.Context, frame FrameData) (Outcome, error) {
	if frame.Mat == nil || frame.Mat.Empty() {
		d.skip(errors.New("empty frame"))
		return OutcomeSkipped, nil
	}

	motion, err := d.gate.Observe(frame)
	if err != nil {
		d.skip(fmt.Errorf("motion gate: %w", err))
		return OutcomeSkipped, nil
	}
	if !motion {
		return OutcomeNoMotion, nil
	}

	d.metrics.MotionFrames.Add(1)
	d.mu.Lock()
	d.stats.MotionFrames++
	d.mu.Unlock()

	if !d.cooldown.Allowed(frame.Timestamp) {
		return OutcomeCoolingDown, nil
	}

	// An in-flight iteration completes even if a stop arrives meanwhile.
	ictx, span := tracer.Start(context.WithoutCancel(ctx), "detection",
		trace.WithAttributes(attribute.String("runID", d.params.RunID)),
	)
	defer span.End()

	prediction, err := d.classify(ictx, frame)
	if err != nil {
		d.metrics.ClassifierErrors.Add(1)
		d.mu.Lock()
		d.stats.Errors++
		d.mu.Unlock()
		lgr.Logger.WarnContext(ictx, "classification failed, skipping frame", lgr.Err(err))
		send(d.errorStream, model.GenError("detector", err, map[string]interface{}{
			"runID": d.params.RunID,
		}, "classification failed"))
		return OutcomeClassifierFailed, nil
	}

	if prediction.Confidence < d.params.ConfidenceThreshold {
		d.metrics.Rejected.Add(1)
		d.mu.Lock()
		d.stats.Rejected++
		d.mu.Unlock()
		lgr.Logger.DebugContext(ictx, "low confidence detection discarded",
			slog.String("category", string(prediction.Category)),
			slog.Float64("confidence", float64(prediction.Confidence)),
		)
		return OutcomeRejected, nil
	}

	return d.accept(ictx, frame, prediction)
}

func (d *Detector) classify(ctx context.Context, frame FrameData) (inference.Prediction, error) {
	ctx, span := tracer.Start(ctx, "classify")
	defer span.End()

	d.metrics.Classifications.Add(1)
	start := time.Now()
	prediction, err := d.classifier.Predict(ctx, frame.Mat)
	elapsed := time.Since(start)
	d.metrics.UpdateClassifyLatency(elapsed)

	d.mu.Lock()
	d.stats.Classifications++
	d.procTime += elapsed
	d.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return prediction, err
	}

	span.SetAttributes(
		attribute.String("category", string(prediction.Category)),
		attribute.Float64("confidence", float64(prediction.Confidence)),
	)
	return prediction, nil
}

func (d *Detector) accept(ctx context.Context, frame FrameData, prediction inference.Prediction) (Outcome, error) {
	localErr := d.sink.Accumulate(ctx, prediction.Category)
	if errors.Is(localErr, ErrUnknownCategory) {
		d.skip(localErr)
		return OutcomeSkipped, nil
	}

	d.cooldown.OnAccepted(frame.Timestamp)

	d.metrics.Accepted.Add(1)
	d.metrics.ObserveDetection(prediction.Category)
	d.mu.Lock()
	d.stats.Accepted++
	d.state = d.cooldown.State()
	d.mu.Unlock()

	d.caption = fmt.Sprintf("%s: %.2f", prediction.Category, prediction.Confidence)
	lgr.Logger.InfoContext(ctx, "waste item classified",
		slog.String("category", string(prediction.Category)),
		slog.Float64("confidence", float64(prediction.Confidence)),
		slog.String("action", fmt.Sprintf("move item to %s bin", prediction.Category)),
	)

	d.emit(model.DetectionEvent{
		RunID:      d.params.RunID,
		User:       d.params.User,
		Category:   prediction.Category,
		Confidence: prediction.Confidence,
		Timestamp:  frame.Timestamp,
	})

	if localErr != nil {
		return OutcomeAccepted, localErr
	}
	return OutcomeAccepted, nil
}

func (d *Detector) emit(event model.DetectionEvent) {
	if d.alertStream == nil {
		return
	}
	select {
	case d.alertStream <- event:
	default:
		d.metrics.AlertsDropped.Add(1)
		lgr.Logger.Warn("alertStream full, dropping detection event")
	}
}

// Stats returns a copy of the run counters.
func (d *Detector) Stats() model.DetectorStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := d.stats
	uptime := time.Since(d.startTime)
	stats.Uptime = int64(uptime.Seconds())
	if uptime > 0 {
		stats.FPS = int(float64(stats.Frames) / uptime.Seconds())
	}
	if stats.Classifications > 0 {
		stats.AvgProcTime = d.procTime.Seconds() / float64(stats.Classifications)
	}
	return stats
}

// CooldownState is safe to call from other goroutines.
func (d *Detector) CooldownState() CooldownState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
