package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/Renal37/orderbridge/internal/logger"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const pingTimeout = 2 * time.Second

// Database хранит заказы, каталог и операторов поверх пула pgx.
type Database struct {
	db  *pgxpool.Pool
	dsn string
}

// DBExecutor это общее подмножество пула и транзакции, которым пользуются запросы чтения.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

func checkConnection(ctx context.Context, db *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	return nil
}

// New открывает пул подключений и проверяет, что база отвечает.
func New(ctx context.Context, dsn string) (*Database, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании пула подключений: %w", err)
	}

	if err := checkConnection(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db, dsn: dsn}, nil
}

// RunMigrations применяет встроенные миграции.
func (d *Database) RunMigrations() error {
	driver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("не удалось создать источник миграций: %w", err)
	}

	migrations, err := migrate.NewWithSourceInstance("iofs", driver, d.dsn)
	if err != nil {
		return fmt.Errorf("не удалось инициализировать миграции: %w", err)
	}
	defer migrations.Close()

	if err := migrations.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Log.Info("no new migrations")
			return nil
		}
		return fmt.Errorf("ошибка при выполнении миграций: %w", err)
	}

	version, _, _ := migrations.Version()
	logger.Log.Info("migrations applied", zap.Uint("version", version))

	return nil
}

func (d *Database) Close() {
	if d.db != nil {
		d.db.Close()
	}
}

func isUniqueViolation(err error) bool {
	var e *pgconn.PgError
	return errors.As(err, &e) && e.Code == pgerrcode.UniqueViolation
}
