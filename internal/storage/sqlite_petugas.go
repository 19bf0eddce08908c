package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"green/internal/core"
)

func (r *SQLiteRepository) ListPetugas(ctx context.Context) ([]core.Petugas, error) {
	rows, err := r.q.ListPetugas().RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query petugas: %w", err)
	}
	defer rows.Close()

	var out []core.Petugas
	for rows.Next() {
		var (
			p         core.Petugas
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.Username, &createdAt); err != nil {
			return nil, fmt.Errorf("scan petugas: %w", err)
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("petugas %d: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreatePetugas(ctx context.Context, username string, at time.Time) (core.Petugas, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Petugas{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := usernameFree(ctx, tx, r.q.PetugasTaken(username, 0)); err != nil {
		return core.Petugas{}, err
	}
	res, err := r.q.InsertPetugas(username, at).RunWith(tx).ExecContext(ctx)
	if err != nil {
		return core.Petugas{}, fmt.Errorf("insert petugas: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Petugas{}, fmt.Errorf("insert petugas: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Petugas{}, fmt.Errorf("commit transaction: %w", err)
	}
	return core.Petugas{ID: id, Username: username, CreatedAt: at.UTC().Truncate(time.Microsecond)}, nil
}

func (r *SQLiteRepository) RenamePetugas(ctx context.Context, id int64, username string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := petugasUsername(ctx, tx, r.q.PetugasUsername(id)); err != nil {
		return err
	}
	if err := usernameFree(ctx, tx, r.q.PetugasTaken(username, id)); err != nil {
		return err
	}
	if _, err := r.q.RenamePetugas(id, username).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("update petugas: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeletePetugas(ctx context.Context, id int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	username, err := petugasUsername(ctx, tx, r.q.PetugasUsername(id))
	if err != nil {
		return 0, err
	}
	res, err := r.q.DeleteByPetugas(username).RunWith(tx).ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete petugas records: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete petugas records: %w", err)
	}
	if _, err := r.q.DeletePetugas(id).RunWith(tx).ExecContext(ctx); err != nil {
		return 0, fmt.Errorf("delete petugas: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Petugas deleted from SQLite", "petugas_id", id, "records_removed", removed)
	return removed, nil
}

func petugasUsername(ctx context.Context, tx *sql.Tx, b sq.SelectBuilder) (string, error) {
	var username string
	err := b.RunWith(tx).QueryRowContext(ctx).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrPetugasNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query petugas: %w", err)
	}
	return username, nil
}

func usernameFree(ctx context.Context, tx *sql.Tx, b sq.SelectBuilder) error {
	var id int64
	err := b.RunWith(tx).QueryRowContext(ctx).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("query petugas: %w", err)
	}
	return core.ErrPetugasExists
}
