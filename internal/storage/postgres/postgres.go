// Package postgres is the PostgreSQL record store, for deployments that
// outgrow the embedded SQLite file.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"green/internal/core"
	"green/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var dialect = storage.Dialect{
	Placeholder:  sq.Dollar,
	WeightColumn: "weight_kg::text",
	EncodeTime:   func(t time.Time) any { return t.UTC() },
	EncodeWeight: func(r core.WasteRecord) any { return r.WeightKg.StringFixed(core.WeightScale) },
}

type Repository struct {
	pool *pgxpool.Pool
	q    storage.RecordQueries
}

var _ storage.Store = (*Repository)(nil)

// New connects to databaseURL and applies migrations.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := RunMigrations(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Repository{pool: pool, q: storage.NewRecordQueries(dialect)}, nil
}

// RunMigrations applies the embedded schema through a database/sql view of
// the pool.
func RunMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("create pgx driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Releases the connection the driver pinned; the pool stays open.
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) InsertRecords(ctx context.Context, records []core.WasteRecord) ([]int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, len(records))
	for i, rec := range records {
		query, args, err := r.q.Insert(rec).Suffix("RETURNING id").ToSql()
		if err != nil {
			return nil, fmt.Errorf("build insert: %w", err)
		}
		var id int64
		if err := tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			return nil, fmt.Errorf("insert record %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Waste records saved to Postgres", "count", len(ids))
	return ids, nil
}

func (r *Repository) ListRecords(ctx context.Context, from, to time.Time) ([]core.WasteRecord, error) {
	return r.query(ctx, r.q.ListRange(from, to))
}

func (r *Repository) DeleteRecord(ctx context.Context, id int64) error {
	query, args, err := r.q.Delete(id).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) ListBatch(ctx context.Context, batchID string) ([]core.WasteRecord, error) {
	return r.query(ctx, r.q.ByBatch(batchID))
}

func (r *Repository) PendingSync(ctx context.Context, limit int) ([]core.WasteRecord, error) {
	return r.query(ctx, r.q.Pending(limit))
}

func (r *Repository) MarkSynced(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := r.q.MarkSynced(ids, at).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

func (r *Repository) query(ctx context.Context, b sq.SelectBuilder) ([]core.WasteRecord, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	return pgx.CollectRows(rows, scanRecord)
}

func scanRecord(row pgx.CollectableRow) (core.WasteRecord, error) {
	var (
		rec          core.WasteRecord
		area, status string
		weight       string
	)
	if err := row.Scan(&rec.ID, &rec.BatchID, &rec.AreaLabel, &area, &rec.ItemLabel, &status,
		&weight, &rec.PetugasName, &rec.RecordedAt, &rec.UploadedAt); err != nil {
		return rec, fmt.Errorf("scan record: %w", err)
	}
	rec.Area = core.Area(area)
	rec.Status = core.Status(status)
	w, err := decimal.NewFromString(weight)
	if err != nil {
		return rec, fmt.Errorf("record %d: weight %q: %w", rec.ID, weight, err)
	}
	rec.WeightKg = w
	return rec, nil
}
