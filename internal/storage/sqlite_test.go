package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"green/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "green.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func civil(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, core.Civil())
}

func sample(item, weight string, at time.Time) core.WasteRecord {
	return core.WasteRecord{
		BatchID:     "batch-1",
		AreaLabel:   "Area Kantor",
		Area:        core.AreaOffice,
		ItemLabel:   item,
		Status:      core.StatusInorganicSorted,
		WeightKg:    decimal.RequireFromString(weight),
		PetugasName: "Budi",
		RecordedAt:  at,
		UploadedAt:  civil(2024, 3, 31, 12),
	}
}

func TestInsertAndListRecords(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	ids, err := repo.InsertRecords(ctx, []core.WasteRecord{
		sample("kertas", "1.25", civil(2024, 3, 5, 9)),
		sample("plastik", "0.5", civil(2024, 3, 1, 0)),
		sample("kardus", "7", civil(2024, 4, 1, 0)),
		// 2024-02-29 23:00 WIB is still February.
		sample("drum", "3", civil(2024, 2, 29, 23)),
	})
	if err != nil {
		t.Fatalf("InsertRecords: %v", err)
	}
	if len(ids) != 4 || ids[0] >= ids[1] {
		t.Fatalf("ids = %v", ids)
	}

	got, err := repo.ListRecords(ctx, civil(2024, 3, 1, 0), civil(2024, 4, 1, 0))
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	if got[0].ItemLabel != "plastik" || got[1].ItemLabel != "kertas" {
		t.Fatalf("order = %q, %q", got[0].ItemLabel, got[1].ItemLabel)
	}
	r := got[1]
	if !r.WeightKg.Equal(decimal.RequireFromString("1.25")) || r.Area != core.AreaOffice || r.Status != core.StatusInorganicSorted {
		t.Fatalf("record = %+v", r)
	}
	if !r.RecordedAt.Equal(civil(2024, 3, 5, 9)) || r.PetugasName != "Budi" || r.BatchID != "batch-1" {
		t.Fatalf("record = %+v", r)
	}
}

func TestDeleteRecord(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	ids, err := repo.InsertRecords(ctx, []core.WasteRecord{sample("kertas", "1", civil(2024, 3, 5, 9))})
	if err != nil {
		t.Fatalf("InsertRecords: %v", err)
	}
	if err := repo.DeleteRecord(ctx, ids[0]); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if err := repo.DeleteRecord(ctx, ids[0]); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestInsertRecordsIsAtomic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := newTestRepo(t)
	cancel()
	if _, err := repo.InsertRecords(ctx, []core.WasteRecord{sample("kertas", "1", civil(2024, 3, 5, 9))}); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
	got, err := repo.ListRecords(context.Background(), civil(2024, 1, 1, 0), civil(2025, 1, 1, 0))
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
}

func TestSyncBookkeeping(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	first := []core.WasteRecord{sample("a", "1", civil(2024, 3, 5, 9)), sample("b", "2", civil(2024, 3, 5, 10))}
	second := sample("c", "3", civil(2024, 3, 6, 9))
	second.BatchID = "batch-2"

	ids, err := repo.InsertRecords(ctx, append(first, second))
	if err != nil {
		t.Fatalf("InsertRecords: %v", err)
	}

	batch, err := repo.ListBatch(ctx, "batch-1")
	if err != nil || len(batch) != 2 {
		t.Fatalf("ListBatch = %d, %v", len(batch), err)
	}

	pending, err := repo.PendingSync(ctx, 10)
	if err != nil || len(pending) != 3 {
		t.Fatalf("PendingSync = %d, %v", len(pending), err)
	}
	if err := repo.MarkSynced(ctx, ids[:2], time.Now()); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	pending, err = repo.PendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("PendingSync: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != ids[2] {
		t.Fatalf("pending after sync = %+v", pending)
	}
	if batch, _ := repo.ListBatch(ctx, "batch-1"); len(batch) != 0 {
		t.Fatalf("synced batch should list nothing, got %d", len(batch))
	}

	limited, err := repo.PendingSync(ctx, 0)
	if err != nil {
		t.Fatalf("PendingSync(0): %v", err)
	}
	if len(limited) != 0 {
		t.Fatalf("limit 0 returned %d rows", len(limited))
	}
}

func TestPing(t *testing.T) {
	if err := newTestRepo(t).Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
