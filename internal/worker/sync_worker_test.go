package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"green/internal/amqp"
	"green/internal/core"
	"green/internal/metrics"
	"green/internal/report"
)

var testNow = time.Date(2024, 3, 17, 3, 0, 0, 0, time.UTC)

func records(batch string, firstID, n int) []core.WasteRecord {
	out := make([]core.WasteRecord, n)
	for i := range out {
		out[i] = core.WasteRecord{
			ID:         int64(firstID + i),
			BatchID:    batch,
			ItemLabel:  fmt.Sprintf("item-%d", i),
			WeightKg:   decimal.NewFromInt(1),
			RecordedAt: testNow,
		}
	}
	return out
}

func TestSyncWorker_HandleRecordsIngested(t *testing.T) {
	store := newFakeSyncStore(append(records("b1", 1, 5), records("b2", 6, 2)...)...)
	out := &fakeSheets{}
	w := NewSyncWorker(store, fixedTables{now: testNow}, out, 2, metrics.New())

	if err := w.HandleRecordsIngested(context.Background(), amqp.NewRecordsIngestedMessage("b1", 5)); err != nil {
		t.Fatalf("HandleRecordsIngested() error = %v", err)
	}
	if len(out.appends) != 3 {
		t.Errorf("append calls = %d, want 3 chunks of at most 2", len(out.appends))
	}
	if out.appended() != 5 || store.syncedCount() != 5 {
		t.Errorf("appended %d, synced %d; want 5", out.appended(), store.syncedCount())
	}

	// Redelivery of the same batch writes nothing.
	if err := w.HandleRecordsIngested(context.Background(), amqp.NewRecordsIngestedMessage("b1", 5)); err != nil {
		t.Fatalf("redelivery error = %v", err)
	}
	if out.appended() != 5 {
		t.Errorf("redelivery appended rows again: %d", out.appended())
	}
}

func TestSyncWorker_HandleRecordsIngested_Errors(t *testing.T) {
	t.Run("sheets failure leaves records pending", func(t *testing.T) {
		store := newFakeSyncStore(records("b1", 1, 2)...)
		w := NewSyncWorker(store, fixedTables{now: testNow}, &fakeSheets{failWith: errors.New("quota exceeded")}, 10, nil)
		if err := w.HandleRecordsIngested(context.Background(), amqp.NewRecordsIngestedMessage("b1", 2)); err == nil {
			t.Fatal("expected error so the message is requeued")
		}
		if store.syncedCount() != 0 {
			t.Error("nothing should be marked synced")
		}
	})

	t.Run("store failure", func(t *testing.T) {
		store := newFakeSyncStore(records("b1", 1, 2)...)
		store.failAt = "list"
		w := NewSyncWorker(store, fixedTables{now: testNow}, &fakeSheets{}, 10, nil)
		if err := w.HandleRecordsIngested(context.Background(), amqp.NewRecordsIngestedMessage("b1", 2)); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("mark failure does not requeue", func(t *testing.T) {
		store := newFakeSyncStore(records("b1", 1, 2)...)
		store.failAt = "mark"
		out := &fakeSheets{}
		w := NewSyncWorker(store, fixedTables{now: testNow}, out, 10, nil)
		if err := w.HandleRecordsIngested(context.Background(), amqp.NewRecordsIngestedMessage("b1", 2)); err != nil {
			t.Fatalf("error = %v", err)
		}
		if out.appended() != 2 {
			t.Errorf("appended = %d", out.appended())
		}
	})
}

func TestSyncWorker_HandleReportPublish(t *testing.T) {
	out := &fakeSheets{}
	w := NewSyncWorker(newFakeSyncStore(), fixedTables{now: testNow}, out, 10, nil)

	msg := amqp.NewReportPublishMessage(report.RangeQuery{Kind: report.RangeMonth, Year: 2024, Month: 2})
	if err := w.HandleReportPublish(context.Background(), msg); err != nil {
		t.Fatalf("HandleReportPublish() error = %v", err)
	}
	if len(out.tables) != 1 || out.tables[0] != "Laporan 2-2024" {
		t.Errorf("tables = %v", out.tables)
	}

	bad := amqp.NewReportPublishMessage(report.RangeQuery{Kind: "fortnight"})
	if err := w.HandleReportPublish(context.Background(), bad); !errors.Is(err, report.ErrInvalidRange) {
		t.Errorf("error = %v, want ErrInvalidRange", err)
	}
}

func TestSyncWorker_ProcessPendingAndStartup(t *testing.T) {
	store := newFakeSyncStore(records("b1", 1, 12)...)
	out := &fakeSheets{}
	w := NewSyncWorker(store, fixedTables{now: testNow}, out, 4, nil)

	n, err := w.ProcessPending(context.Background())
	if err != nil || n != 4 {
		t.Fatalf("ProcessPending() = %d, %v; want 4", n, err)
	}
	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("StartupSyncCheck() error = %v", err)
	}
	if store.syncedCount() != 12 {
		t.Errorf("synced = %d, want 12", store.syncedCount())
	}
	if n, _ := w.ProcessPending(context.Background()); n != 0 {
		t.Errorf("ProcessPending() after full sync = %d", n)
	}
}

func TestSyncWorker_Handlers(t *testing.T) {
	w := NewSyncWorker(newFakeSyncStore(), fixedTables{now: testNow}, &fakeSheets{}, 0, nil)
	h := w.Handlers()
	if h.RecordsIngested == nil || h.ReportPublish == nil {
		t.Fatal("both handlers should be wired")
	}
	if w.batchSize != 50 {
		t.Errorf("default batch size = %d, want 50", w.batchSize)
	}
}
