package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"green/internal/core"
	"green/internal/report"
)

type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	records []core.WasteRecord
	lists   int
	failAdd error
}

func (s *fakeStore) InsertRecords(_ context.Context, recs []core.WasteRecord) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAdd != nil {
		return nil, s.failAdd
	}
	ids := make([]int64, len(recs))
	for i, r := range recs {
		s.nextID++
		r.ID = s.nextID
		ids[i] = r.ID
		s.records = append(s.records, r)
	}
	return ids, nil
}

func (s *fakeStore) ListRecords(_ context.Context, from, to time.Time) ([]core.WasteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	var out []core.WasteRecord
	for _, r := range s.records {
		if !r.RecordedAt.Before(from) && r.RecordedAt.Before(to) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (s *fakeStore) DeleteRecord(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return core.ErrRecordNotFound
}

func (s *fakeStore) Ping(context.Context) error { return nil }
func (s *fakeStore) Close() error               { return nil }

func (s *fakeStore) all() []core.WasteRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.WasteRecord(nil), s.records...)
}

type fakePublisher struct {
	mu       sync.Mutex
	batches  []string
	counts   []int
	queries  []report.RangeQuery
	failWith error
}

func (p *fakePublisher) PublishRecordsIngested(_ context.Context, batchID string, count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, batchID)
	p.counts = append(p.counts, count)
	return p.failWith
}

func (p *fakePublisher) PublishReportRequest(_ context.Context, q report.RangeQuery) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, q)
	return p.failWith
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) { c.calls++ }

func csvFile(name, body string) UploadFile {
	return UploadFile{Name: name, Open: func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	}}
}

func brokenFile(name string) UploadFile {
	return UploadFile{Name: name, Open: func() (io.ReadCloser, error) {
		return nil, errors.New("disk gone")
	}}
}

// fakePetugasStore cascades deletes into the record fake it wraps.
type fakePetugasStore struct {
	records *fakeStore
	nextID  int64
	staff   []core.Petugas
}

func (s *fakePetugasStore) ListPetugas(context.Context) ([]core.Petugas, error) {
	out := make([]core.Petugas, 0, len(s.staff))
	for i := len(s.staff) - 1; i >= 0; i-- {
		out = append(out, s.staff[i])
	}
	return out, nil
}

func (s *fakePetugasStore) CreatePetugas(_ context.Context, username string, at time.Time) (core.Petugas, error) {
	for _, p := range s.staff {
		if p.Username == username {
			return core.Petugas{}, core.ErrPetugasExists
		}
	}
	s.nextID++
	p := core.Petugas{ID: s.nextID, Username: username, CreatedAt: at}
	s.staff = append(s.staff, p)
	return p, nil
}

func (s *fakePetugasStore) RenamePetugas(_ context.Context, id int64, username string) error {
	idx := -1
	for i, p := range s.staff {
		if p.ID == id {
			idx = i
		} else if p.Username == username {
			return core.ErrPetugasExists
		}
	}
	if idx < 0 {
		return core.ErrPetugasNotFound
	}
	s.staff[idx].Username = username
	return nil
}

func (s *fakePetugasStore) DeletePetugas(_ context.Context, id int64) (int64, error) {
	for i, p := range s.staff {
		if p.ID != id {
			continue
		}
		s.staff = append(s.staff[:i], s.staff[i+1:]...)
		s.records.mu.Lock()
		defer s.records.mu.Unlock()
		kept := s.records.records[:0]
		var removed int64
		for _, r := range s.records.records {
			if r.PetugasName == p.Username {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		s.records.records = kept
		return removed, nil
	}
	return 0, core.ErrPetugasNotFound
}
