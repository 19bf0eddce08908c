package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"green/internal/core"
)

const uniqueViolation = "23505"

func (r *Repository) ListPetugas(ctx context.Context) ([]core.Petugas, error) {
	query, args, err := r.q.ListPetugas().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query petugas: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Petugas, error) {
		var p core.Petugas
		err := row.Scan(&p.ID, &p.Username, &p.CreatedAt)
		return p, err
	})
}

func (r *Repository) CreatePetugas(ctx context.Context, username string, at time.Time) (core.Petugas, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return core.Petugas{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := usernameFree(ctx, tx, r.q.PetugasTaken(username, 0)); err != nil {
		return core.Petugas{}, err
	}
	query, args, err := r.q.InsertPetugas(username, at).Suffix("RETURNING id, created_at").ToSql()
	if err != nil {
		return core.Petugas{}, fmt.Errorf("build insert: %w", err)
	}
	p := core.Petugas{Username: username}
	if err := tx.QueryRow(ctx, query, args...).Scan(&p.ID, &p.CreatedAt); err != nil {
		return core.Petugas{}, mapUnique(fmt.Errorf("insert petugas: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return core.Petugas{}, mapUnique(fmt.Errorf("commit transaction: %w", err))
	}
	return p, nil
}

func (r *Repository) RenamePetugas(ctx context.Context, id int64, username string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := petugasUsername(ctx, tx, r.q.PetugasUsername(id)); err != nil {
		return err
	}
	if err := usernameFree(ctx, tx, r.q.PetugasTaken(username, id)); err != nil {
		return err
	}
	query, args, err := r.q.RenamePetugas(id, username).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return mapUnique(fmt.Errorf("update petugas: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) DeletePetugas(ctx context.Context, id int64) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	username, err := petugasUsername(ctx, tx, r.q.PetugasUsername(id))
	if err != nil {
		return 0, err
	}
	query, args, err := r.q.DeleteByPetugas(username).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete petugas records: %w", err)
	}
	if query, args, err = r.q.DeletePetugas(id).ToSql(); err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("delete petugas: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Petugas deleted from Postgres", "petugas_id", id, "records_removed", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

func petugasUsername(ctx context.Context, tx pgx.Tx, b sq.SelectBuilder) (string, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return "", fmt.Errorf("build select: %w", err)
	}
	var username string
	err = tx.QueryRow(ctx, query, args...).Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", core.ErrPetugasNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query petugas: %w", err)
	}
	return username, nil
}

func usernameFree(ctx context.Context, tx pgx.Tx, b sq.SelectBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build select: %w", err)
	}
	var id int64
	err = tx.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("query petugas: %w", err)
	}
	return core.ErrPetugasExists
}

// mapUnique turns a concurrent insert of the same username into
// core.ErrPetugasExists.
func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return core.ErrPetugasExists
	}
	return err
}
