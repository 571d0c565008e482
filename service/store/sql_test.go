package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/config"
)

func newSqlite(t *testing.T) IService {
	t.Helper()
	svc, err := New(config.StoreParameters{
		Driver:  config.SqliteStoreDriver,
		DSN:     filepath.Join(t.TempDir(), "ws.db"),
		Timeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestIncrement_UnknownUserIsNotCreated(t *testing.T) {
	svc := newSqlite(t)
	ctx := context.Background()

	err := svc.Increment(ctx, "ghost", model.Glass)
	assert.ErrorIs(t, err, ErrUserNotFound)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = svc.Stats(ctx, "ghost")
	assert.ErrorIs(t, err, ErrStatsNotFound)
}

func TestIncrement_UpsertsCounters(t *testing.T) {
	svc := newSqlite(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "uid-1", "one@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.Increment(ctx, "uid-1", model.Glass))
	require.NoError(t, svc.Increment(ctx, "uid-1", model.Glass))
	require.NoError(t, svc.Increment(ctx, "uid-1", model.FoodOrganics))

	stats, err := svc.Stats(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, model.UserIdentity("uid-1"), stats.User)
	assert.Equal(t, int64(2), stats.Counters[model.Glass])
	assert.Equal(t, int64(1), stats.Counters[model.FoodOrganics])
	assert.Equal(t, int64(0), stats.Counters[model.Paper])
	assert.Len(t, stats.Counters, len(model.KnownCategories))
	assert.False(t, stats.UpdatedAt.Before(stats.CreatedAt))
}

func TestListAndDeleteStats(t *testing.T) {
	svc := newSqlite(t)
	ctx := context.Background()

	for _, uid := range []model.UserIdentity{"b-user", "a-user"} {
		_, err := svc.CreateUser(ctx, uid, "")
		require.NoError(t, err)
		require.NoError(t, svc.Increment(ctx, uid, model.Metal))
	}

	all, err := svc.ListStats(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, model.UserIdentity("a-user"), all[0].User)

	require.NoError(t, svc.DeleteStats(ctx, "a-user"))
	assert.ErrorIs(t, svc.DeleteStats(ctx, "a-user"), ErrStatsNotFound)

	all, err = svc.ListStats(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	// Counting starts over after a reset.
	require.NoError(t, svc.Increment(ctx, "a-user", model.Paper))
	stats, err := svc.Stats(ctx, "a-user")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Counters[model.Paper])
	assert.Equal(t, int64(0), stats.Counters[model.Metal])
}

func TestCreateUser(t *testing.T) {
	svc := newSqlite(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, "uid-1", "one@example.com")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)

	_, err = svc.CreateUser(ctx, "uid-1", "again@example.com")
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.CreateUser(ctx, "", "")
	assert.Error(t, err)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "one@example.com", users[0].Email)
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(config.StoreParameters{Driver: "mongo"})
	assert.Error(t, err)
}

func TestDialectPlaceholders(t *testing.T) {
	assert.Equal(t, "?", sqliteDialect{}.Placeholder(3))
	assert.Equal(t, "$3", postgresDialect{}.Placeholder(3))
	assert.Contains(t, postgresDialect{}.Schema(), "food_organics BIGINT NOT NULL DEFAULT 0")
}

// Classifier label files are parsed into known categories, so every category a
// classifier can emit must have a counter column.
func TestCategoryColumns_CoverKnownCategories(t *testing.T) {
	for _, c := range model.KnownCategories {
		col, err := columnFor(c)
		require.NoError(t, err, c)
		assert.NotEmpty(t, col)
	}
	assert.Len(t, counterColumns(), len(model.KnownCategories))

	_, err := columnFor(model.Category("plastic"))
	assert.Error(t, err)

	_, err = model.NewCategorySet([]string{"paper", "plastic"})
	assert.Error(t, err)
}
