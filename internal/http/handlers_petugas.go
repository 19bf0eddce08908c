package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"green/internal/core"
	"green/internal/log"
)

const maxPetugasBody = 4 << 10

var errInvalidBody = errors.New("invalid request body")

type petugasView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func newPetugasView(p core.Petugas) petugasView {
	return petugasView{ID: p.ID, Username: p.Username, CreatedAt: p.CreatedAt}
}

// petugasRequest is the body of create and update calls. Any password the
// dashboard sends along is ignored.
type petugasRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleListPetugas(w http.ResponseWriter, r *http.Request) {
	list, err := s.staff.List(r.Context())
	if err != nil {
		s.respondError(w, r, err, msgPetugasListError)
		return
	}
	views := make([]petugasView, len(list))
	for i, p := range list {
		views[i] = newPetugasView(p)
	}
	NewJSONResponse().Data(views).Write(w)
}

func (s *Server) handleCreatePetugas(w http.ResponseWriter, r *http.Request) {
	req, err := decodePetugasRequest(w, r)
	if err != nil {
		s.respondError(w, r, err, msgPetugasAddError)
		return
	}
	p, err := s.staff.Create(r.Context(), req.Username)
	if err != nil {
		s.respondError(w, r, err, msgPetugasAddError)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(map[string]any{
		"message": msgPetugasCreated,
		"petugas": newPetugasView(p),
	}).Write(w)
}

func (s *Server) handleUpdatePetugas(w http.ResponseWriter, r *http.Request) {
	id, err := ParseRecordID(r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err, msgPetugasSaveError)
		return
	}
	req, err := decodePetugasRequest(w, r)
	if err != nil {
		s.respondError(w, r, err, msgPetugasSaveError)
		return
	}
	if err := s.staff.Rename(r.Context(), id, req.Username); err != nil {
		s.respondError(w, r, err, msgPetugasSaveError)
		return
	}
	NewJSONResponse().Message(msgPetugasUpdated).Write(w)
}

func (s *Server) handleDeletePetugas(w http.ResponseWriter, r *http.Request) {
	id, err := ParseRecordID(r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err, msgDeleteError)
		return
	}
	removed, err := s.staff.Delete(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, msgDeleteError)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Petugas deleted via API",
		log.FieldOperation, log.OpDelete,
		"petugas_id", id,
		"records_removed", removed)
	NewJSONResponse().Data(map[string]any{
		"message":         msgPetugasDeleted,
		"records_removed": removed,
	}).Write(w)
}

func decodePetugasRequest(w http.ResponseWriter, r *http.Request) (petugasRequest, error) {
	var req petugasRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPetugasBody))
	if err := dec.Decode(&req); err != nil {
		return petugasRequest{}, errInvalidBody
	}
	req.Username = sanitizeInput(req.Username)
	return req, nil
}
