// Пакет pgstore — адаптер хранилища File Tracker для PostgreSQL.
// История файла хранится в JSONB-колонке и дополняется оператором ||,
// поэтому изменение состояния и новая запись истории пишутся одним UPDATE.
// Схема применяется миграциями golang-migrate из embedded FS.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/filetracker/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Имена ограничений уникальности и поля, которые они защищают.
const (
	constraintFileID       = "files_file_id_key"
	constraintSerialNumber = "files_serial_number_key"
	indexUniqueFileNumber  = "files_file_number_uniq"
	constraintSettingKey   = "settings_pkey"
)

var constraintFields = map[string]string{
	constraintFileID:       store.FieldFileID,
	constraintSerialNumber: store.FieldSerialNumber,
	indexUniqueFileNumber:  store.FieldFileNumber,
	constraintSettingKey:   store.FieldSettingKey,
}

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется *pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store — хранилище поверх PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	db     DBTX
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Connect создаёт пул подключений и проверяет доступность через ping.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("host", poolCfg.ConnConfig.Host),
		slog.Int("port", int(poolCfg.ConnConfig.Port)),
		slog.String("database", poolCfg.ConnConfig.Database),
	)
	return pool, nil
}

// MigrationURL приводит postgres:// URL к схеме драйвера golang-migrate (pgx5://).
func MigrationURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

// Migrate применяет SQL-миграции из embedded FS.
func Migrate(dsn string, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, MigrationURL(dsn))
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Миграции применены",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// New создаёт хранилище поверх пула.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{
		pool:   pool,
		db:     pool,
		logger: logger.With(slog.String("component", "pgstore")),
	}
}

// Ping проверяет подключение к PostgreSQL.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Close закрывает пул.
func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

// classify приводит ошибку pgx к ошибкам пакета store.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		field, ok := constraintFields[pgErr.ConstraintName]
		if !ok {
			field = store.FieldUnknown
		}
		return &store.UniqueConstraintViolation{Field: field, Err: err}
	}

	if isUnavailable(err) {
		return store.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
