package http

import (
	"errors"
	"net/http"

	"green/internal/log"
)

// handleUpload ingests the CSV files of a multipart form. Per-file failures
// are reported in the body; the request itself still succeeds.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadMaxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			PayloadTooLargeError(msgUploadTooLarge).Write(w)
		case errors.Is(err, http.ErrNotMultipart):
			BadRequestError(msgNoFiles).Write(w)
		default:
			BadRequestError(msgInvalidUpload).Write(w)
		}
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := uploadFiles(r.MultipartForm)
	res, err := s.records.Ingest(r.Context(), files, sanitizeInput(r.FormValue("date")))
	if err != nil {
		s.respondError(w, r, err, msgSystemError)
		return
	}

	NewJSONResponse().Data(map[string]any{
		"message":  msgUploaded,
		"batch_id": res.BatchID,
		"stored":   res.Stored,
		"results":  res.Files,
	}).Write(w)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := ParseRecordID(r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err, msgDeleteError)
		return
	}
	if err := s.records.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err, msgDeleteError)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Record deleted via API",
		log.FieldOperation, log.OpDelete,
		log.FieldRecordID, id)
	NewJSONResponse().Message(msgDeleted).Write(w)
}
