package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/ws-go/model"
)

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float32{1, 2, 3})
	require.Len(t, probs, 3)

	var sum float32
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
	assert.Greater(t, probs[2], probs[1])
	assert.Greater(t, probs[1], probs[0])

	// Large logits must not overflow.
	probs = Softmax([]float32{1000, 1000})
	assert.InDelta(t, 0.5, probs[0], 1e-5)

	assert.Nil(t, Softmax(nil))
}

func TestBest(t *testing.T) {
	set := model.DefaultCategorySet()

	p, err := Best([]float32{0.05, 0.05, 0.82, 0.04, 0.02, 0.02}, set)
	require.NoError(t, err)
	assert.Equal(t, model.Glass, p.Category)
	assert.InDelta(t, 0.82, p.Confidence, 1e-6)

	_, err = Best([]float32{0.5, 0.5}, set)
	assert.Error(t, err)

	_, err = Best(nil, set)
	assert.Error(t, err)
}

type stubImage struct{ empty bool }

func (s stubImage) Empty() bool  { return s.empty }
func (s stubImage) Close() error { return nil }

func TestFake_ReplaysSteps(t *testing.T) {
	fail := errors.New("inference failed")
	svc := NewFake(model.DefaultCategorySet(),
		Step{Prediction: Prediction{Category: model.Glass, Confidence: 0.82}},
		Step{Err: fail},
	)
	ctx := context.Background()

	p, err := svc.Predict(ctx, stubImage{})
	require.NoError(t, err)
	assert.Equal(t, model.Glass, p.Category)

	_, err = svc.Predict(ctx, stubImage{})
	assert.ErrorIs(t, err, fail)
	_, err = svc.Predict(ctx, stubImage{})
	assert.ErrorIs(t, err, fail)

	_, err = svc.Predict(ctx, stubImage{empty: true})
	assert.Error(t, err)

	assert.Equal(t, 3, svc.Calls())
}

func TestFake_Random(t *testing.T) {
	set := model.DefaultCategorySet()
	svc := NewFake(set)

	for i := 0; i < 20; i++ {
		p, err := svc.Predict(context.Background(), stubImage{})
		require.NoError(t, err)
		_, ok := set.Slot(p.Category)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, p.Confidence, float32(0.5))
		assert.LessOrEqual(t, p.Confidence, float32(1))
	}
}
