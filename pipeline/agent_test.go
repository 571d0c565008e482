package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/inference"
)

func newTestAgent(t *testing.T, source Source, data *memData, steps ...inference.Step) *Agent {
	t.Helper()
	svcs := ServicesFactory{
		CfgSvc:       newTestConfig(t),
		DataSvc:      data,
		InferenceSvc: inference.NewFake(model.DefaultCategorySet(), steps...),
		StoreSvc:     &memStore{err: errors.New("offline")},
	}
	agent, err := NewAgent(svcs, Vision{Source: source, Gate: alwaysMotion()}, "uid-1", make(chan interface{}, 100), make(chan interface{}, 100))
	require.NoError(t, err)
	return agent
}

func TestAgent_StopFlushesOnCancel(t *testing.T) {
	data := &memData{}
	agent := newTestAgent(t, &endlessSource{start: t0}, data, predict(model.Glass, 0.9))

	agent.Start(context.Background())
	require.Eventually(t, func() bool {
		return agent.Status().Counters[model.Glass] == 1
	}, 2*time.Second, 5*time.Millisecond)

	counters, err := agent.Stop(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters[model.Glass])

	snap, err := data.RetrieveSnapshot()
	require.NoError(t, err)
	assert.Equal(t, counters, snap)
	assert.False(t, agent.Status().Running)
}

func TestAgent_EndOfStreamFlushesOnce(t *testing.T) {
	data := &memData{}
	source := &sliceSource{frames: []FrameData{frameAt(1), frameAt(2)}}
	agent := newTestAgent(t, source, data, predict(model.Paper, 0.95))

	agent.Start(context.Background())
	select {
	case <-agent.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not finish at end of stream")
	}
	require.NoError(t, agent.Err())

	// One write from the accepted detection and one from the flush.
	assert.Equal(t, 2, data.writes())

	counters, err := agent.Stop(time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters[model.Paper])
	assert.Equal(t, 2, data.writes(), "stop must not flush a second time")
	assert.True(t, source.isClosed())
}

func TestAgent_LocalFailureSurfaces(t *testing.T) {
	data := &memData{saveErr: errors.New("disk full")}
	source := &sliceSource{frames: []FrameData{frameAt(1)}}
	agent := newTestAgent(t, source, data, predict(model.Metal, 0.95))

	agent.Start(context.Background())
	<-agent.Done()
	assert.Error(t, agent.Err())

	counters, err := agent.Stop(time.Second)
	assert.Error(t, err)
	assert.Equal(t, int64(1), counters[model.Metal])
}

func TestAgent_StopBeforeStart(t *testing.T) {
	agent := newTestAgent(t, &sliceSource{}, &memData{})

	_, err := agent.Stop(time.Second)
	assert.Error(t, err)
}

func TestNewAgent_Validation(t *testing.T) {
	svcs := ServicesFactory{CfgSvc: newTestConfig(t), DataSvc: &memData{}}

	_, err := NewAgent(svcs, Vision{Source: &sliceSource{}, Gate: alwaysMotion()}, "", nil, nil)
	assert.Error(t, err, "classifier is required")

	svcs.InferenceSvc = inference.NewFake(model.DefaultCategorySet())
	_, err = NewAgent(svcs, Vision{Source: &sliceSource{}}, "", nil, nil)
	assert.Error(t, err, "gate is required")
}

func TestAgent_HeartbeatPublishesStats(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.heartbeat = 1
	statsStream := make(chan interface{}, 100)

	svcs := ServicesFactory{
		CfgSvc:       cfg,
		DataSvc:      &memData{},
		InferenceSvc: inference.NewFake(model.DefaultCategorySet(), predict(model.Glass, 0.2)),
	}
	agent, err := NewAgent(svcs, Vision{Source: &endlessSource{start: t0}, Gate: alwaysMotion()}, "", nil, statsStream)
	require.NoError(t, err)

	agent.Start(context.Background())
	defer agent.Stop(time.Second)

	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-statsStream:
			if stats, ok := s.(model.AgentStats); ok {
				assert.Equal(t, agent.ID, stats.ID)
				return
			}
		case <-deadline:
			t.Fatal("no agent heartbeat")
		}
	}
}
