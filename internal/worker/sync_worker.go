package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"green/internal/amqp"
	"green/internal/core"
	"green/internal/metrics"
	"green/internal/report"
	"green/internal/sheets"
	"green/internal/storage"
)

// TableSource builds report tables for a range query.
type TableSource interface {
	Table(ctx context.Context, q report.RangeQuery) (*report.Table, error)
}

// SyncWorker mirrors stored records and publishes report tables to the
// spreadsheet.
type SyncWorker struct {
	store     storage.SyncStore
	tables    TableSource
	mirror    sheets.RecordMirror
	publisher sheets.ReportPublisher
	batchSize int
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewSyncWorker(store storage.SyncStore, tables TableSource, out sheets.Publisher, batchSize int, m *metrics.Metrics) *SyncWorker {
	if batchSize < 1 {
		batchSize = 50
	}
	return &SyncWorker{
		store:     store,
		tables:    tables,
		mirror:    out,
		publisher: out,
		batchSize: batchSize,
		metrics:   m,
		now:       time.Now,
	}
}

// Handlers wires the worker into an AMQP consumer.
func (w *SyncWorker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		RecordsIngested: w.HandleRecordsIngested,
		ReportPublish:   w.HandleReportPublish,
	}
}

// HandleRecordsIngested mirrors the unsynced records of one batch. A batch
// that was already mirrored is a no-op, so redelivery is safe.
func (w *SyncWorker) HandleRecordsIngested(ctx context.Context, msg *amqp.RecordsIngestedMessage) error {
	slog.InfoContext(ctx, "Processing records ingested message",
		"batch_id", msg.BatchID,
		"count", msg.Count)

	recs, err := w.store.ListBatch(ctx, msg.BatchID)
	if err != nil {
		return fmt.Errorf("list batch %s: %w", msg.BatchID, err)
	}
	if len(recs) == 0 {
		slog.InfoContext(ctx, "Batch already mirrored", "batch_id", msg.BatchID)
		return nil
	}
	for start := 0; start < len(recs); start += w.batchSize {
		end := min(start+w.batchSize, len(recs))
		if err := w.mirrorRecords(ctx, recs[start:end]); err != nil {
			return fmt.Errorf("mirror batch %s: %w", msg.BatchID, err)
		}
	}
	return nil
}

// HandleReportPublish renders the requested period and replaces its sheet.
func (w *SyncWorker) HandleReportPublish(ctx context.Context, msg *amqp.ReportPublishMessage) error {
	t, err := w.tables.Table(ctx, msg.Query)
	if err != nil {
		return fmt.Errorf("build table: %w", err)
	}
	ref, err := w.publisher.PublishTable(ctx, t)
	w.metrics.SheetsSync("report", err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", t.Period.Key(), err)
	}
	slog.InfoContext(ctx, "Published report to Google Sheets",
		"period", t.Period.Key(),
		"sheets_ref", ref)
	return nil
}

// ProcessPending mirrors up to one batch of records that no message
// covered, for example when the broker was down at upload time.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.sweep(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger sweep once when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.sweep(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if n == 0 {
		slog.InfoContext(ctx, "No pending records found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Mirrored pending records on startup", "count", n)
	return nil
}

func (w *SyncWorker) sweep(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.PendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending records: %w", err)
	}
	w.metrics.PendingRecords(len(pending))
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending records", "count", len(pending))
	done := 0
	for start := 0; start < len(pending); start += w.batchSize {
		end := min(start+w.batchSize, len(pending))
		if err := w.mirrorRecords(ctx, pending[start:end]); err != nil {
			return done, err
		}
		done += end - start
	}
	return done, nil
}

func (w *SyncWorker) mirrorRecords(ctx context.Context, recs []core.WasteRecord) error {
	n, err := w.mirror.AppendRecords(ctx, recs)
	w.metrics.SheetsSync("records", err)
	if err != nil {
		return fmt.Errorf("append records: %w", err)
	}

	ids := make([]int64, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	if err := w.store.MarkSynced(ctx, ids, w.now().UTC()); err != nil {
		// Rows are in the sheet; a retry would duplicate them.
		slog.WarnContext(ctx, "Failed to mark records as synced", "count", len(ids), "error", err)
		return nil
	}

	slog.InfoContext(ctx, "Mirrored records to Google Sheets", "count", n, "first_id", ids[0])
	return nil
}
