package sorter

import (
	"context"

	"github.com/khaledhikmat/ws-go/model"
)

// IService tells the sorting actuator which bin an accepted item belongs to.
type IService interface {
	Notify(ctx context.Context, event model.DetectionEvent) error
	Stats() Stats
	Close() error
}

type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}
