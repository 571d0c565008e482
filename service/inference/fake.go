package inference

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/khaledhikmat/ws-go/model"
)

// Step is one scripted classifier outcome.
type Step struct {
	Prediction Prediction
	Err        error
}

type FakeService struct {
	set   model.CategorySet
	steps []Step
	mu    sync.Mutex
	calls int
}

// NewFake replays steps in order and repeats the last one once they run out. Without
// steps it returns random predictions, which pairs with the random framer for dev runs.
func NewFake(set model.CategorySet, steps ...Step) *FakeService {
	return &FakeService{
		set:   set,
		steps: steps,
	}
}

func (svc *FakeService) Predict(ctx context.Context, img model.Image) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	if img == nil || img.Empty() {
		return Prediction{}, errors.New("empty frame")
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	idx := svc.calls
	svc.calls++

	if len(svc.steps) == 0 {
		category, _ := svc.set.At(rand.Intn(svc.set.Len()))
		return Prediction{Category: category, Confidence: 0.5 + rand.Float32()/2}, nil
	}

	if idx >= len(svc.steps) {
		idx = len(svc.steps) - 1
	}
	step := svc.steps[idx]
	return step.Prediction, step.Err
}

func (svc *FakeService) Categories() model.CategorySet {
	return svc.set
}

// Calls reports how many times Predict ran.
func (svc *FakeService) Calls() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.calls
}

func (svc *FakeService) Close() error {
	return nil
}
