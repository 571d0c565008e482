package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/natefinch/lumberjack"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/lgr"
)

// EventAlerter consumes accepted detections: one JSON line per event goes to the
// detection log, then every notifier is called. The returned channel is never closed;
// done is closed once the alerter has drained and exited after canx ends.
func EventAlerter(canx context.Context, svcs ServicesFactory, errorStream chan interface{}, statsStream chan interface{}) (chan model.DetectionEvent, <-chan struct{}) {
	in := make(chan model.DetectionEvent, svcs.CfgSvc.GetAlerterBufferSize())
	done := make(chan struct{})

	detectionLog := &lumberjack.Logger{
		Filename:   svcs.CfgSvc.GetDetectionLogFile(),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     7, // days
		Compress:   true,
	}

	go func() {
		defer close(done)
		defer detectionLog.Close()

		startTime := time.Now()
		stats := model.AlerterStats{Name: "eventAlerter"}

		defer func() {
			stats.Uptime = int64(time.Since(startTime).Seconds())
			send(statsStream, stats)
		}()

		for {
			select {
			case <-canx.Done():
				lgr.Logger.Info("alerter context cancelled")
				// Buffered events still reach the log. Notifiers are skipped since the
				// item has already left the camera's view.
				for {
					select {
					case event := <-in:
						writeDetection(detectionLog, event)
						stats.Alerts++
					default:
						return
					}
				}

			case event := <-in:
				writeDetection(detectionLog, event)
				stats.Alerts++

				for name, notifier := range svcs.Notifiers {
					if err := notifier.Notify(canx, event); err != nil {
						stats.Errors++
						if svcs.Metrics != nil {
							svcs.Metrics.NotifierErrors.Add(1)
						}
						lgr.Logger.Warn("notifier failed",
							slog.String("notifier", name),
							slog.String("category", string(event.Category)),
							lgr.Err(err),
						)
						send(errorStream, model.GenError("alerter", err, map[string]interface{}{
							"notifier": name,
						}, "notifier failed"))
					}
				}
			}
		}
	}()

	return in, done
}

func writeDetection(w io.Writer, event model.DetectionEvent) {
	entry := map[string]interface{}{
		"time":       event.Timestamp.Format(time.RFC3339Nano),
		"runId":      event.RunID,
		"user":       event.User,
		"category":   event.Category,
		"confidence": event.Confidence,
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		lgr.Logger.Error("error marshaling detection", lgr.Err(err))
		return
	}

	if _, err := w.Write(append(jsonData, '\n')); err != nil {
		lgr.Logger.Error("error writing to detection log file", lgr.Err(err))
	}
}
