package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/ws-go/model"
)

func TestHandler_ExposesCounters(t *testing.T) {
	m := New()
	m.FramesRead.Add(3)
	m.Accepted.Add(1)
	m.ObserveDetection(model.Glass)
	m.UpdateClassifyLatency(42 * time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, "ws_frames_read_total 3")
	assert.Contains(t, text, "ws_accepted_total 1")
	assert.Contains(t, text, `ws_detections_total{category="glass"} 1`)
	assert.Contains(t, text, "ws_classify_latency_ms 42")
}
