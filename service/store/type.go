package store

import (
	"context"
	"errors"

	"github.com/khaledhikmat/ws-go/model"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
	ErrStatsNotFound = errors.New("statistics not found")
)

// IService is the remote statistics store. Users are provisioned through CreateUser only;
// Increment never creates them.
type IService interface {
	Increment(ctx context.Context, user model.UserIdentity, category model.Category) error
	Stats(ctx context.Context, user model.UserIdentity) (model.WasteStatistics, error)
	ListStats(ctx context.Context) ([]model.WasteStatistics, error)
	DeleteStats(ctx context.Context, user model.UserIdentity) error

	CreateUser(ctx context.Context, user model.UserIdentity, email string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	Close() error
}
