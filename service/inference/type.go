package inference

import (
	"context"

	"github.com/khaledhikmat/ws-go/model"
)

type Prediction struct {
	Category   model.Category `json:"category"`
	Confidence float32        `json:"confidence"`
}

// IService classifies one frame. A failure only affects the frame it was called with.
type IService interface {
	Predict(ctx context.Context, img model.Image) (Prediction, error)
	Categories() model.CategorySet
	Close() error
}
