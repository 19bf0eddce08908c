package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"

	"green/internal/cache"
	"green/internal/core"
	"green/internal/log"
	"green/internal/metrics"
	"green/internal/middleware/ratelimit"
	"green/internal/middleware/security"
	"green/internal/middleware/trace"
	"green/internal/report"
	"green/internal/services"
)

const (
	defaultUploadMaxBytes = 32 << 20
	multipartMemory       = 8 << 20
	readyTimeout          = 5 * time.Second
)

// RecordIngester stores uploads and deletes records.
type RecordIngester interface {
	Ingest(ctx context.Context, files []services.UploadFile, manualDate string) (services.IngestResult, error)
	Delete(ctx context.Context, id int64) error
}

// ReportProvider answers statistics, listing and export queries.
type ReportProvider interface {
	Summary(ctx context.Context, q report.RangeQuery) (report.Summary, report.Period, error)
	Records(ctx context.Context, q report.RangeQuery) ([]core.WasteRecord, report.Period, error)
	Table(ctx context.Context, q report.RangeQuery) (*report.Table, error)
	ExportMonthly(ctx context.Context, year, month int) (services.Document, error)
	ExportYearly(ctx context.Context, year int) (services.Document, error)
	ExportMonthlyDocument(ctx context.Context, year, month int) (services.Document, error)
	RequestSheetsPublish(ctx context.Context, q report.RangeQuery) (report.Period, error)
	CachedGrids() int
	GridCacheStats() cache.Stats
}

// StaffManager administers field staff accounts.
type StaffManager interface {
	List(ctx context.Context) ([]core.Petugas, error)
	Create(ctx context.Context, username string) (core.Petugas, error)
	Rename(ctx context.Context, id int64, username string) error
	Delete(ctx context.Context, id int64) (int64, error)
}

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the server. Zero values select defaults.
type Options struct {
	Addr               string
	UploadMaxBytes     int64
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	Logger             *log.Logger
	Metrics            *metrics.Metrics
}

type Server struct {
	http.Server

	records RecordIngester
	reports ReportProvider
	staff   StaffManager
	store   Pinger
	metrics *metrics.Metrics

	rateLimiter     *ratelimit.Limiter
	detector        *security.Detector
	traceMiddleware *trace.Middleware

	uploadMaxBytes int64
	started        time.Time
	shutdownOnce   sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// The staff routes are only mounted when staff is non-nil.
func NewServer(opts Options, records RecordIngester, reports ReportProvider, staff StaffManager, store Pinger) *Server {
	if opts.UploadMaxBytes <= 0 {
		opts.UploadMaxBytes = defaultUploadMaxBytes
	}
	if len(opts.CORSAllowedOrigins) == 0 {
		opts.CORSAllowedOrigins = []string{"*"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}

	s := &Server{
		records:        records,
		reports:        reports,
		staff:          staff,
		store:          store,
		metrics:        opts.Metrics,
		uploadMaxBytes: opts.UploadMaxBytes,
		started:        time.Now(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
	}
	s.detector = security.NewDetector(s.metrics.SuspiciousRequest)
	s.traceMiddleware = trace.NewMiddleware(s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	limit := s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)
	route := func(pattern, label string, h http.HandlerFunc, limited bool) {
		var handler http.Handler = h
		if limited {
			handler = limit(handler)
		}
		mux.Handle(pattern, s.metrics.Instrument(label, handler))
	}

	route("GET /healthz", "/healthz", s.handleHealth, false)
	route("GET /readyz", "/readyz", s.handleReady, false)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	route("GET /api/stats", "/api/stats", s.handleStats, false)
	route("GET /api/records", "/api/records", s.handleListRecords, false)
	route("DELETE /api/records/{id}", "/api/records/{id}", s.handleDeleteRecord, true)
	route("GET /api/report", "/api/report", s.handleReport, false)
	route("POST /api/upload", "/api/upload", s.handleUpload, true)
	route("GET /api/export/monthly", "/api/export/monthly", s.handleExportMonthly, false)
	route("GET /api/export/yearly", "/api/export/yearly", s.handleExportYearly, false)
	route("GET /api/export/pdf-monthly", "/api/export/pdf-monthly", s.handleExportPDFMonthly, false)
	route("POST /api/export/sheets", "/api/export/sheets", s.handleExportSheets, true)
	if staff != nil {
		route("GET /api/petugas", "/api/petugas", s.handleListPetugas, false)
		route("POST /api/petugas", "/api/petugas", s.handleCreatePetugas, true)
		route("PUT /api/petugas/{id}", "/api/petugas/{id}", s.handleUpdatePetugas, true)
		route("DELETE /api/petugas/{id}", "/api/petugas/{id}", s.handleDeletePetugas, true)
	}

	var h http.Handler = mux
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.traceMiddleware.Middleware(h)
	h = log.Middleware(logger.WithComponent(log.ComponentHTTP))(h)
	h = handlers.CORS(
		handlers.AllowedOrigins(opts.CORSAllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.ExposedHeaders([]string{"Content-Disposition", trace.HeaderRequestID}),
	)(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger}),
		handlers.PrintRecoveryStack(false),
	)(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError(msgRateLimited).Write(w)
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// recoveryLogger routes panics caught by gorilla/handlers into slog.
type recoveryLogger struct {
	logger *log.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("Panic recovered in HTTP handler",
		log.FieldComponent, log.ComponentHTTP,
		log.FieldError, fmt.Sprint(v...))
}
