package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"green/internal/core"
	"green/internal/storage"
)

// PetugasService manages field staff. Removing a staff member removes the
// records they uploaded, so reports are invalidated afterwards.
type PetugasService struct {
	store   storage.PetugasStore
	reports Invalidator
	now     func() time.Time
}

type PetugasServiceOption func(*PetugasService)

func WithPetugasInvalidator(i Invalidator) PetugasServiceOption {
	return func(s *PetugasService) { s.reports = i }
}

func WithPetugasClock(now func() time.Time) PetugasServiceOption {
	return func(s *PetugasService) { s.now = now }
}

func NewPetugasService(store storage.PetugasStore, opts ...PetugasServiceOption) *PetugasService {
	s := &PetugasService{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PetugasService) List(ctx context.Context) ([]core.Petugas, error) {
	list, err := s.store.ListPetugas(ctx)
	if err != nil {
		return nil, fmt.Errorf("list petugas: %w", err)
	}
	return list, nil
}

func (s *PetugasService) Create(ctx context.Context, username string) (core.Petugas, error) {
	name, err := core.NormalizeUsername(username)
	if err != nil {
		return core.Petugas{}, err
	}
	p, err := s.store.CreatePetugas(ctx, name, s.now().UTC())
	if err != nil {
		return core.Petugas{}, fmt.Errorf("create petugas %q: %w", name, err)
	}
	slog.InfoContext(ctx, "Petugas created", "petugas_id", p.ID, "username", p.Username)
	return p, nil
}

// Rename changes a username. Records keep the name they were uploaded with.
func (s *PetugasService) Rename(ctx context.Context, id int64, username string) error {
	name, err := core.NormalizeUsername(username)
	if err != nil {
		return err
	}
	if err := s.store.RenamePetugas(ctx, id, name); err != nil {
		return fmt.Errorf("rename petugas %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Petugas renamed", "petugas_id", id, "username", name)
	return nil
}

// Delete removes the staff member and their records, returning how many
// records went with them.
func (s *PetugasService) Delete(ctx context.Context, id int64) (int64, error) {
	removed, err := s.store.DeletePetugas(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("delete petugas %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Petugas deleted", "petugas_id", id, "records_removed", removed)
	if removed > 0 && s.reports != nil {
		s.reports.Invalidate(ctx)
	}
	return removed, nil
}
