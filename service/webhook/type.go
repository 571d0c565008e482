package webhook

import (
	"context"

	"github.com/khaledhikmat/ws-go/model"
)

type IService interface {
	Notify(ctx context.Context, event model.DetectionEvent) error
}
