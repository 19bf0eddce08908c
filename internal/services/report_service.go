package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"green/internal/cache"
	"green/internal/core"
	"green/internal/log"
	"green/internal/metrics"
	"green/internal/report"
	"green/internal/report/pdf"
	"green/internal/report/xlsx"
	"green/internal/storage"
)

// ErrMessagingDisabled is returned for operations that need the broker
// when no AMQP URL is configured.
var ErrMessagingDisabled = errors.New("messaging disabled")

// ReportRequester hands a publication request to the sheets worker.
type ReportRequester interface {
	PublishReportRequest(ctx context.Context, q report.RangeQuery) error
}

// Document is a rendered export ready to be served.
type Document struct {
	Name        string
	ContentType string
	Body        []byte
}

// ReportService resolves periods, builds grids once per period and hands
// them to the emitters.
type ReportService struct {
	store     storage.RecordStore
	schema    report.Schema
	loc       *time.Location
	now       func() time.Time
	grids     cache.Cache[*report.Grid]
	requester ReportRequester
	metrics   *metrics.Metrics
}

type ReportServiceOption func(*ReportService)

func WithGridCache(c cache.Cache[*report.Grid]) ReportServiceOption {
	return func(s *ReportService) { s.grids = c }
}

func WithReportRequester(r ReportRequester) ReportServiceOption {
	return func(s *ReportService) { s.requester = r }
}

func WithReportMetrics(m *metrics.Metrics) ReportServiceOption {
	return func(s *ReportService) { s.metrics = m }
}

func WithReportClock(now func() time.Time) ReportServiceOption {
	return func(s *ReportService) { s.now = now }
}

func NewReportService(store storage.RecordStore, schema report.Schema, loc *time.Location, opts ...ReportServiceOption) *ReportService {
	s := &ReportService{
		store:  store,
		schema: schema,
		loc:    loc,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ReportService) Schema() report.Schema { return s.schema }

// Period resolves q against the current civil time.
func (s *ReportService) Period(q report.RangeQuery) (report.Period, error) {
	return report.ResolveRange(q, s.now(), s.loc)
}

// Records returns the stored records of the period, ascending.
func (s *ReportService) Records(ctx context.Context, q report.RangeQuery) ([]core.WasteRecord, report.Period, error) {
	p, err := s.Period(q)
	if err != nil {
		return nil, report.Period{}, err
	}
	recs, err := s.store.ListRecords(ctx, p.Start, p.End)
	if err != nil {
		return nil, p, fmt.Errorf("list records %s: %w", p.Key(), err)
	}
	return recs, p, nil
}

// Summary returns the managed and unmanaged weight of the period.
func (s *ReportService) Summary(ctx context.Context, q report.RangeQuery) (report.Summary, report.Period, error) {
	recs, p, err := s.Records(ctx, q)
	if err != nil {
		return nil, p, err
	}
	return report.Summarize(s.schema, p, recs), p, nil
}

// Grid builds, or reuses, the cross-tab of the period.
func (s *ReportService) Grid(ctx context.Context, q report.RangeQuery) (*report.Grid, error) {
	p, err := s.Period(q)
	if err != nil {
		return nil, err
	}
	key := p.Key()
	if s.grids != nil {
		if g, ok := s.grids.Get(key); ok {
			s.metrics.CacheLookup(true)
			return g, nil
		}
		s.metrics.CacheLookup(false)
	}

	recs, err := s.store.ListRecords(ctx, p.Start, p.End)
	if err != nil {
		return nil, fmt.Errorf("list records %s: %w", key, err)
	}
	g := report.BuildGrid(s.schema, p, recs)
	s.metrics.ReportBuilt(string(p.Kind))
	if g.Skipped > 0 {
		slog.WarnContext(ctx, "Records without a known area left out of report",
			"period", key,
			"skipped", g.Skipped,
			"skipped_kg", g.SkippedWeight.StringFixed(core.WeightScale))
	}
	if s.grids != nil {
		s.grids.Set(key, g)
	}
	return g, nil
}

// Table lays the period's grid out for emitters.
func (s *ReportService) Table(ctx context.Context, q report.RangeQuery) (*report.Table, error) {
	g, err := s.Grid(ctx, q)
	if err != nil {
		return nil, err
	}
	return report.NewTable(g), nil
}

// Export renders the period with r.
func (s *ReportService) Export(ctx context.Context, q report.RangeQuery, r report.Renderer) (Document, error) {
	t, err := s.Table(ctx, q)
	if err != nil {
		return Document{}, err
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, t); err != nil {
		return Document{}, fmt.Errorf("render %s: %w", t.Period.Key(), err)
	}

	doc := Document{ContentType: r.ContentType(), Body: buf.Bytes()}
	format := "pdf"
	doc.Name = t.DocumentName()
	if doc.ContentType == report.ContentTypeSpreadsheet {
		format = "xlsx"
		doc.Name = t.SpreadsheetName()
	}
	s.metrics.Exported(format)
	log.NewStructuredLogger(log.FromContext(ctx)).LogExport(ctx, string(t.Period.Kind), t.Period.Key(), format, len(doc.Body))
	return doc, nil
}

// ExportMonthly renders a month as a spreadsheet.
func (s *ReportService) ExportMonthly(ctx context.Context, year, month int) (Document, error) {
	return s.Export(ctx, report.RangeQuery{Kind: report.RangeMonth, Year: year, Month: month}, xlsx.Renderer{})
}

// ExportYearly renders a year as a spreadsheet with one row per month.
func (s *ReportService) ExportYearly(ctx context.Context, year int) (Document, error) {
	return s.Export(ctx, report.RangeQuery{Kind: report.RangeYear, Year: year}, xlsx.Renderer{})
}

// ExportMonthlyDocument renders a month as a paginated document.
func (s *ReportService) ExportMonthlyDocument(ctx context.Context, year, month int) (Document, error) {
	return s.Export(ctx, report.RangeQuery{Kind: report.RangeMonth, Year: year, Month: month}, pdf.Renderer{})
}

// RequestSheetsPublish validates q and queues its publication.
func (s *ReportService) RequestSheetsPublish(ctx context.Context, q report.RangeQuery) (report.Period, error) {
	p, err := s.Period(q)
	if err != nil {
		return report.Period{}, err
	}
	if s.requester == nil {
		return p, ErrMessagingDisabled
	}
	// The worker receives the resolved period, never a relative query.
	pinned := report.RangeQuery{Kind: p.Kind, Year: p.Year, Month: int(p.Month), Week: p.Week}
	if p.Kind == report.RangeDay {
		pinned = report.RangeQuery{Kind: p.Kind, Date: p.Start.Format(time.DateOnly)}
	}
	if err := s.requester.PublishReportRequest(ctx, pinned); err != nil {
		return p, fmt.Errorf("queue sheets publish: %w", err)
	}
	return p, nil
}

// Invalidate drops every cached grid.
func (s *ReportService) Invalidate(ctx context.Context) {
	if s.grids == nil {
		return
	}
	if n := s.grids.Purge(); n > 0 {
		slog.DebugContext(ctx, "Report cache purged", "entries", n)
	}
}

// CachedGrids reports the number of cached grids, for readiness output.
func (s *ReportService) CachedGrids() int {
	if s.grids == nil {
		return 0
	}
	return s.grids.Size()
}

// GridCacheStats reports grid cache hits, misses and evictions.
func (s *ReportService) GridCacheStats() cache.Stats {
	if s.grids == nil {
		return cache.Stats{}
	}
	return s.grids.Stats()
}
