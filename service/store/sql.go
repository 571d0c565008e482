package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/config"
)

type sqlService struct {
	conn    *sql.DB
	dialect Dialect
	mu      sync.RWMutex
}

// New opens the store selected by params.Driver and migrates its schema.
func New(params config.StoreParameters) (IService, error) {
	switch params.Driver {
	case config.SqliteStoreDriver:
		return open(sqliteDialect{}, sqliteDSN(params.DSN))
	case config.PostgresStoreDriver:
		return open(postgresDialect{}, params.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", params.Driver)
	}
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}

func open(dialect Dialect, dsn string) (*sqlService, error) {
	conn, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name(), err)
	}

	if dialect.Name() == "sqlite" {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
	}

	svc := &sqlService{conn: conn, dialect: dialect}
	if err := svc.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return svc, nil
}

func (svc *sqlService) migrate() error {
	// One statement per Exec; not every driver accepts a batch.
	for _, stmt := range strings.Split(svc.dialect.Schema(), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := svc.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (svc *sqlService) ph(n int) string {
	return svc.dialect.Placeholder(n)
}

func (svc *sqlService) userID(ctx context.Context, user model.UserIdentity) (int64, error) {
	var id int64
	query := fmt.Sprintf("SELECT id FROM users WHERE external_id = %s", svc.ph(1))
	err := svc.conn.QueryRowContext(ctx, query, string(user)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return id, err
}

// Increment upserts the user's statistics row and adds one to the category's counter.
func (svc *sqlService) Increment(ctx context.Context, user model.UserIdentity, category model.Category) error {
	col, err := columnFor(category)
	if err != nil {
		return err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	id, err := svc.userID(ctx, user)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO waste_statistics (user_id, %[1]s, created_at, updated_at)
		VALUES (%[2]s, 1, %[3]s, %[4]s)
		ON CONFLICT (user_id) DO UPDATE SET %[1]s = waste_statistics.%[1]s + 1, updated_at = excluded.updated_at`,
		col, svc.ph(1), svc.ph(2), svc.ph(3))

	if _, err := svc.conn.ExecContext(ctx, query, id, now, now); err != nil {
		return fmt.Errorf("failed to increment %s for %s: %w", col, user, err)
	}
	return nil
}

func (svc *sqlService) statsSelect() string {
	cols := counterColumns()
	qualified := make([]string, len(cols))
	for i, col := range cols {
		qualified[i] = "s." + col
	}
	return fmt.Sprintf(`SELECT s.id, u.external_id, %s, s.created_at, s.updated_at
		FROM waste_statistics s JOIN users u ON u.id = s.user_id`, strings.Join(qualified, ", "))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStats(row rowScanner) (model.WasteStatistics, error) {
	var (
		stats    model.WasteStatistics
		external string
		counts   = make([]int64, len(model.KnownCategories))
	)

	dest := []any{&stats.ID, &external}
	for i := range counts {
		dest = append(dest, &counts[i])
	}
	dest = append(dest, &stats.CreatedAt, &stats.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return model.WasteStatistics{}, err
	}

	stats.User = model.UserIdentity(external)
	stats.Counters = make(model.StatCounters, len(counts))
	for i, c := range model.KnownCategories {
		stats.Counters[c] = counts[i]
	}
	return stats, nil
}

func (svc *sqlService) Stats(ctx context.Context, user model.UserIdentity) (model.WasteStatistics, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	query := svc.statsSelect() + fmt.Sprintf(" WHERE u.external_id = %s", svc.ph(1))
	stats, err := scanStats(svc.conn.QueryRowContext(ctx, query, string(user)))
	if errors.Is(err, sql.ErrNoRows) {
		return model.WasteStatistics{}, ErrStatsNotFound
	}
	return stats, err
}

func (svc *sqlService) ListStats(ctx context.Context) ([]model.WasteStatistics, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	rows, err := svc.conn.QueryContext(ctx, svc.statsSelect()+" ORDER BY u.external_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all := []model.WasteStatistics{}
	for rows.Next() {
		stats, err := scanStats(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, stats)
	}
	return all, rows.Err()
}

func (svc *sqlService) DeleteStats(ctx context.Context, user model.UserIdentity) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	query := fmt.Sprintf("DELETE FROM waste_statistics WHERE user_id = (SELECT id FROM users WHERE external_id = %s)", svc.ph(1))
	res, err := svc.conn.ExecContext(ctx, query, string(user))
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStatsNotFound
	}
	return nil
}

func (svc *sqlService) CreateUser(ctx context.Context, user model.UserIdentity, email string) (model.User, error) {
	if user.Anonymous() {
		return model.User{}, errors.New("user identity is required")
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if _, err := svc.userID(ctx, user); err == nil {
		return model.User{}, ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return model.User{}, err
	}

	created := model.User{
		ExternalID: user,
		Email:      email,
		CreatedAt:  time.Now().UTC(),
	}
	query := fmt.Sprintf("INSERT INTO users (external_id, email, created_at) VALUES (%s, %s, %s) RETURNING id",
		svc.ph(1), svc.ph(2), svc.ph(3))
	if err := svc.conn.QueryRowContext(ctx, query, string(user), email, created.CreatedAt).Scan(&created.ID); err != nil {
		return model.User{}, fmt.Errorf("failed to create user %s: %w", user, err)
	}

	return created, nil
}

func (svc *sqlService) ListUsers(ctx context.Context) ([]model.User, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	rows, err := svc.conn.QueryContext(ctx, "SELECT id, external_id, email, created_at FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var (
			u        model.User
			external string
		)
		if err := rows.Scan(&u.ID, &external, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.ExternalID = model.UserIdentity(external)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (svc *sqlService) Close() error {
	return svc.conn.Close()
}
