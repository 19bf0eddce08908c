package storage

import (
	"context"
	"time"

	"green/internal/core"
)

// RecordStore is the queryable record store consumed by reporting and ingest.
type RecordStore interface {
	// InsertRecords stores a batch atomically and returns the new ids in order.
	InsertRecords(ctx context.Context, records []core.WasteRecord) ([]int64, error)
	// ListRecords returns records with from <= recorded_at < to, ascending.
	ListRecords(ctx context.Context, from, to time.Time) ([]core.WasteRecord, error)
	// DeleteRecord returns core.ErrRecordNotFound when id does not exist.
	DeleteRecord(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
	Close() error
}

// SyncStore tracks which records have been mirrored to Google Sheets.
type SyncStore interface {
	// ListBatch returns the not yet mirrored records of one upload batch.
	ListBatch(ctx context.Context, batchID string) ([]core.WasteRecord, error)
	PendingSync(ctx context.Context, limit int) ([]core.WasteRecord, error)
	MarkSynced(ctx context.Context, ids []int64, at time.Time) error
}

// PetugasStore manages field staff accounts.
type PetugasStore interface {
	// ListPetugas returns staff newest first.
	ListPetugas(ctx context.Context) ([]core.Petugas, error)
	// CreatePetugas returns core.ErrPetugasExists for a taken username.
	CreatePetugas(ctx context.Context, username string, at time.Time) (core.Petugas, error)
	// RenamePetugas returns core.ErrPetugasNotFound or core.ErrPetugasExists.
	RenamePetugas(ctx context.Context, id int64, username string) error
	// DeletePetugas removes the staff member and every record whose
	// petugas_name is their username in one transaction, returning the
	// number of records removed.
	DeletePetugas(ctx context.Context, id int64) (int64, error)
}

type Store interface {
	RecordStore
	SyncStore
	PetugasStore
}
