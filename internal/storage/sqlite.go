package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"green/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout keeps stored timestamps fixed-width in UTC.
const timeLayout = "2006-01-02 15:04:05.000000"

var sqliteDialect = Dialect{
	Placeholder:  sq.Question,
	WeightColumn: "weight_kg",
	EncodeTime:   func(t time.Time) any { return t.UTC().Format(timeLayout) },
	EncodeWeight: func(r core.WasteRecord) any { return r.WeightKg.StringFixed(core.WeightScale) },
}

type SQLiteRepository struct {
	db *sql.DB
	q  RecordQueries
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps ingest transactions from tripping SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, q: NewRecordQueries(sqliteDialect)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) InsertRecords(ctx context.Context, records []core.WasteRecord) ([]int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(records))
	for i, rec := range records {
		res, err := r.q.Insert(rec).RunWith(tx).ExecContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("insert record %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert record %d: %w", i, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Waste records saved to SQLite", "count", len(ids))
	return ids, nil
}

func (r *SQLiteRepository) ListRecords(ctx context.Context, from, to time.Time) ([]core.WasteRecord, error) {
	return r.query(ctx, r.q.ListRange(from, to))
}

func (r *SQLiteRepository) DeleteRecord(ctx context.Context, id int64) error {
	res, err := r.q.Delete(id).RunWith(r.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n == 0 {
		return core.ErrRecordNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListBatch(ctx context.Context, batchID string) ([]core.WasteRecord, error) {
	return r.query(ctx, r.q.ByBatch(batchID))
}

func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]core.WasteRecord, error) {
	return r.query(ctx, r.q.Pending(limit))
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.q.MarkSynced(ids, at).RunWith(r.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, b sq.SelectBuilder) ([]core.WasteRecord, error) {
	rows, err := b.RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []core.WasteRecord
	for rows.Next() {
		var (
			rec                    core.WasteRecord
			area, status, weight   string
			recordedAt, uploadedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.BatchID, &rec.AreaLabel, &area, &rec.ItemLabel, &status,
			&weight, &rec.PetugasName, &recordedAt, &uploadedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Area = core.Area(area)
		rec.Status = core.Status(status)
		if rec.WeightKg, err = decimal.NewFromString(weight); err != nil {
			return nil, fmt.Errorf("record %d: weight %q: %w", rec.ID, weight, err)
		}
		if rec.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, fmt.Errorf("record %d: %w", rec.ID, err)
		}
		if rec.UploadedAt, err = parseTime(uploadedAt); err != nil {
			return nil, fmt.Errorf("record %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
