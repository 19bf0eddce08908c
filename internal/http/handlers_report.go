package http

import (
	"net/http"

	"green/internal/services"
)

// handleStats returns the managed/unmanaged breakdown for pie charts.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q, err := ParseRangeQuery(r.URL.Query())
	if err != nil {
		s.respondError(w, r, err, msgStatsError)
		return
	}
	summary, _, err := s.reports.Summary(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err, msgStatsError)
		return
	}
	NewJSONResponse().Data(newSummaryView(summary)).Write(w)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q, err := ParseRangeQuery(r.URL.Query())
	if err != nil {
		s.respondError(w, r, err, msgRecordsError)
		return
	}
	recs, _, err := s.reports.Records(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err, msgRecordsError)
		return
	}
	NewJSONResponse().Data(newRecordViews(recs)).Write(w)
}

// handleReport returns the cross-tab in the layout the exports use.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q, err := ParseRangeQuery(r.URL.Query())
	if err != nil {
		s.respondError(w, r, err, msgReportError)
		return
	}
	t, err := s.reports.Table(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err, msgReportError)
		return
	}
	NewJSONResponse().Data(newTableView(t)).Write(w)
}

func (s *Server) handleExportMonthly(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, msgExportExcelError, func(p MonthParams) (services.Document, error) {
		return s.reports.ExportMonthly(r.Context(), p.Year, p.Month)
	})
}

func (s *Server) handleExportYearly(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, msgExportYearlyError, func(p MonthParams) (services.Document, error) {
		return s.reports.ExportYearly(r.Context(), p.Year)
	})
}

func (s *Server) handleExportPDFMonthly(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, msgExportPDFError, func(p MonthParams) (services.Document, error) {
		return s.reports.ExportMonthlyDocument(r.Context(), p.Year, p.Month)
	})
}

func (s *Server) export(w http.ResponseWriter, r *http.Request, fallback string, render func(MonthParams) (services.Document, error)) {
	p, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		s.respondError(w, r, err, fallback)
		return
	}
	doc, err := render(p)
	if err != nil {
		s.respondError(w, r, err, fallback)
		return
	}
	writeAttachment(w, doc.Name, doc.ContentType, doc.Body)
}

// handleExportSheets queues publication of the period's cross-tab.
func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	q, err := ParseRangeQuery(r.URL.Query())
	if err != nil {
		s.respondError(w, r, err, msgSheetsError)
		return
	}
	p, err := s.reports.RequestSheetsPublish(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err, msgSheetsError)
		return
	}
	NewJSONResponse().Status(http.StatusAccepted).Data(map[string]any{
		"message": msgSheetsQueued,
		"period":  newPeriodView(p),
	}).Write(w)
}
