package mode

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/pipeline"
	"github.com/khaledhikmat/ws-go/service/config"
	"github.com/khaledhikmat/ws-go/service/data"
	"github.com/khaledhikmat/ws-go/service/inference"
	"github.com/khaledhikmat/ws-go/service/metrics"
	"github.com/khaledhikmat/ws-go/service/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/natefinch/lumberjack.(*Logger).millRun"),
	)
}

type testConfig struct {
	config.IService
	folder string
	user   string
}

func (c testConfig) GetSettingsFolder() string { return c.folder }
func (c testConfig) GetSnapshotFile() string   { return filepath.Join(c.folder, "waste_stats.json") }
func (c testConfig) GetDetectionLogFile() string {
	return filepath.Join(c.folder, "detections.log")
}
func (c testConfig) GetMetricsAddress() string    { return "" }
func (c testConfig) GetUserIdentity() string      { return c.user }
func (c testConfig) GetModeMaxShutdownTime() int  { return 1 }
func (c testConfig) GetAgentHeartbeatPeriod() int { return 0 }
func (c testConfig) GetStoreParameters() config.StoreParameters {
	return config.StoreParameters{
		Driver:  config.SqliteStoreDriver,
		DSN:     filepath.Join(c.folder, "ws.db"),
		Timeout: time.Second,
	}
}

type fakeImage struct{}

func (fakeImage) Empty() bool  { return false }
func (fakeImage) Close() error { return nil }

type listSource struct {
	stamps []time.Time
	closed bool
}

func (s *listSource) Name() string { return "list" }

func (s *listSource) Read(context.Context) (pipeline.FrameData, error) {
	if len(s.stamps) == 0 {
		return pipeline.FrameData{}, io.EOF
	}
	ts := s.stamps[0]
	s.stamps = s.stamps[1:]
	return pipeline.FrameData{Mat: fakeImage{}, Timestamp: ts}, nil
}

func (s *listSource) Close() error {
	s.closed = true
	return nil
}

type motionGate struct{}

func (motionGate) Observe(pipeline.FrameData) (bool, error) { return true, nil }
func (motionGate) Close() error                             { return nil }

func withVision(t *testing.T, v pipeline.Vision, err error) {
	t.Helper()
	orig := newVision
	newVision = func(config.IService) (pipeline.Vision, error) { return v, err }
	t.Cleanup(func() { newVision = orig })
}

func TestDetect_RunsToEndOfStream(t *testing.T) {
	cfg := testConfig{IService: config.NewHardCoded(), folder: t.TempDir(), user: "uid-1"}

	st, err := store.New(cfg.GetStoreParameters())
	require.NoError(t, err)
	defer st.Close()
	_, err = st.CreateUser(context.Background(), "uid-1", "")
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	source := &listSource{stamps: []time.Time{
		base,
		base.Add(5 * time.Second),  // cooling down
		base.Add(13 * time.Second), // past the subsequent window
	}}
	withVision(t, pipeline.Vision{Source: source, Gate: motionGate{}}, nil)

	dataSvc := data.NewFilesDB(cfg)
	svcs := pipeline.ServicesFactory{
		CfgSvc:  cfg,
		DataSvc: dataSvc,
		InferenceSvc: inference.NewFake(model.DefaultCategorySet(), inference.Step{
			Prediction: inference.Prediction{Category: model.Metal, Confidence: 0.8},
		}),
		StoreSvc: st,
		Metrics:  metrics.New(),
	}

	require.NoError(t, Detect(context.Background(), svcs))
	assert.True(t, source.closed)

	snap, err := dataSvc.RetrieveSnapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap[model.Metal])

	stats, err := st.Stats(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Counters[model.Metal])
}

func TestDetect_CaptureFailure(t *testing.T) {
	cfg := testConfig{IService: config.NewHardCoded(), folder: t.TempDir()}
	withVision(t, pipeline.Vision{}, errors.New("no camera"))

	svcs := pipeline.ServicesFactory{
		CfgSvc:       cfg,
		DataSvc:      data.NewFilesDB(cfg),
		InferenceSvc: inference.NewFake(model.DefaultCategorySet()),
	}

	err := Detect(context.Background(), svcs)
	assert.ErrorContains(t, err, "no camera")
}

func TestReport(t *testing.T) {
	cfg := testConfig{IService: config.NewHardCoded(), folder: t.TempDir()}
	st, err := store.New(cfg.GetStoreParameters())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	_, err = st.CreateUser(ctx, "uid-1", "")
	require.NoError(t, err)
	for i := 0; i < 1200; i++ {
		require.NoError(t, st.Increment(ctx, "uid-1", model.Paper))
	}

	counters := model.NewStatCounters(model.DefaultCategorySet())
	counters[model.Paper] = 3

	var buf bytes.Buffer
	report(&buf, st, time.Second, "uid-1", counters)

	out := buf.String()
	assert.Contains(t, out, "Final statistics (this run):")
	assert.Contains(t, out, "Stored statistics for uid-1")
	assert.Contains(t, out, "1,200")

	buf.Reset()
	report(&buf, st, time.Second, "", counters)
	assert.NotContains(t, buf.String(), "Stored statistics")
}

type countingData struct {
	data.IService
	agent, detector, alerter, errs int
}

func (d *countingData) NewAgentStats(model.AgentStats) error       { d.agent++; return nil }
func (d *countingData) NewDetectorStats(model.DetectorStats) error { d.detector++; return nil }
func (d *countingData) NewAlerterStats(model.AlerterStats) error   { d.alerter++; return nil }
func (d *countingData) NewError(interface{}) error                 { d.errs++; return nil }

func TestProcStatsAndErrors(t *testing.T) {
	d := &countingData{}

	procStats(d, model.AgentStats{ID: "a"})
	procStats(d, model.DetectorStats{RunID: "a"})
	procStats(d, model.AlerterStats{Name: "alerter"})
	procStats(d, "not a stats record")
	procError(d, model.GenError("test", errors.New("boom"), nil, "failed"))
	procError(d, "plain message")

	assert.Equal(t, 1, d.agent)
	assert.Equal(t, 1, d.detector)
	assert.Equal(t, 1, d.alerter)
	assert.Equal(t, 2, d.errs)
}
