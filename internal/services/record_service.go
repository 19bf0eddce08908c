package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"green/internal/ingest"
	"green/internal/log"
	"green/internal/metrics"
	"green/internal/storage"
)

// Per-file outcomes reported back to the uploader.
const (
	FileSuccess = "success"
	FileError   = "error"
)

const maxParallelFiles = 4

var ErrNoFiles = errors.New("no files uploaded")

// IngestPublisher announces stored batches to the sheets worker.
type IngestPublisher interface {
	PublishRecordsIngested(ctx context.Context, batchID string, count int) error
}

// Invalidator drops derived report state after records change.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// UploadFile is one CSV source. Open is called once, from its own goroutine.
type UploadFile struct {
	Name string
	Open func() (io.ReadCloser, error)
}

type FileResult struct {
	File    string `json:"file"`
	Status  string `json:"status"`
	Count   int    `json:"count"`
	Skipped int    `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type IngestResult struct {
	BatchID string       `json:"batch_id"`
	Stored  int          `json:"stored"`
	Files   []FileResult `json:"results"`
}

// RecordService stores uploaded records and keeps dependents informed.
type RecordService struct {
	store     storage.RecordStore
	parser    *ingest.Parser
	publisher IngestPublisher
	reports   Invalidator
	metrics   *metrics.Metrics
	loc       *time.Location
	now       func() time.Time
}

type RecordServiceOption func(*RecordService)

func WithIngestPublisher(p IngestPublisher) RecordServiceOption {
	return func(s *RecordService) { s.publisher = p }
}

func WithInvalidator(i Invalidator) RecordServiceOption {
	return func(s *RecordService) { s.reports = i }
}

func WithRecordMetrics(m *metrics.Metrics) RecordServiceOption {
	return func(s *RecordService) { s.metrics = m }
}

func WithClock(now func() time.Time) RecordServiceOption {
	return func(s *RecordService) { s.now = now }
}

func NewRecordService(store storage.RecordStore, parser *ingest.Parser, loc *time.Location, opts ...RecordServiceOption) *RecordService {
	s := &RecordService{
		store:  store,
		parser: parser,
		loc:    loc,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest parses and stores every file under one batch id. Each file is its
// own transaction, so one bad file never discards the others. manualDate,
// when set, overrides the event time of every row.
func (s *RecordService) Ingest(ctx context.Context, files []UploadFile, manualDate string) (IngestResult, error) {
	if len(files) == 0 {
		return IngestResult{}, ErrNoFiles
	}

	opts := ingest.Options{Now: s.now().UTC(), BatchID: uuid.NewString(), Location: s.loc}
	if manualDate != "" {
		at, err := ingest.ParseManualDate(manualDate, s.loc)
		if err != nil {
			return IngestResult{}, err
		}
		opts.RecordedAt = at
	}

	results := make([]FileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFiles)
	for i, f := range files {
		g.Go(func() error {
			results[i] = s.ingestFile(gctx, f, opts)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return IngestResult{}, fmt.Errorf("ingest batch %s: %w", opts.BatchID, err)
	}

	res := IngestResult{BatchID: opts.BatchID, Files: results}
	for _, r := range results {
		res.Stored += r.Count
	}
	if res.Stored == 0 {
		return res, nil
	}

	log.NewStructuredLogger(log.FromContext(ctx)).LogRecordsIngested(ctx, res.BatchID, len(files), res.Stored)
	s.metrics.RecordsIngested(res.Stored)
	if s.reports != nil {
		s.reports.Invalidate(ctx)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRecordsIngested(ctx, res.BatchID, res.Stored); err != nil {
			// Records are persisted; the worker sweep picks them up later.
			slog.ErrorContext(ctx, "Failed to publish records ingested message", "batch_id", res.BatchID, "error", err)
		}
	}
	return res, nil
}

func (s *RecordService) ingestFile(ctx context.Context, f UploadFile, opts ingest.Options) FileResult {
	fail := func(err error) FileResult {
		s.metrics.FileRejected()
		slog.WarnContext(ctx, "Upload file rejected", "file_name", f.Name, "error", err)
		return FileResult{File: f.Name, Status: FileError, Reason: reasonFor(err)}
	}

	rc, err := f.Open()
	if err != nil {
		return fail(fmt.Errorf("open: %w", err))
	}
	defer rc.Close()

	parsed, err := s.parser.Parse(rc, opts)
	if err != nil {
		return fail(err)
	}

	records := parsed[:0]
	skipped := 0
	for _, r := range parsed {
		if err := r.Validate(); err != nil {
			skipped++
			continue
		}
		records = append(records, r)
	}
	if len(records) == 0 {
		return fail(ingest.ErrEmptyFile)
	}

	if _, err := s.store.InsertRecords(ctx, records); err != nil {
		return fail(fmt.Errorf("store records: %w", err))
	}
	return FileResult{File: f.Name, Status: FileSuccess, Count: len(records), Skipped: skipped}
}

// reasonFor maps ingest failures onto the short messages shown to staff.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, ingest.ErrEmptyFile):
		return "File kosong"
	case errors.Is(err, ingest.ErrMissingColumn):
		return "Kolom wajib tidak ada" + strings.TrimPrefix(err.Error(), ingest.ErrMissingColumn.Error())
	}
	return err.Error()
}

// Delete removes one record. Unknown ids yield core.ErrRecordNotFound.
func (s *RecordService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Record deleted", "record_id", id)
	if s.reports != nil {
		s.reports.Invalidate(ctx)
	}
	return nil
}

// IsIngestError reports whether err is a client mistake in an upload.
func IsIngestError(err error) bool {
	return errors.Is(err, ErrNoFiles) ||
		errors.Is(err, ingest.ErrInvalidDate) ||
		errors.Is(err, ingest.ErrEmptyFile) ||
		errors.Is(err, ingest.ErrMissingColumn)
}
