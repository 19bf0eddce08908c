package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"green/internal/core"
	"green/internal/report"
)

type fakeSyncStore struct {
	mu      sync.Mutex
	records []core.WasteRecord
	synced  map[int64]time.Time
	failAt  string
}

func newFakeSyncStore(recs ...core.WasteRecord) *fakeSyncStore {
	return &fakeSyncStore{records: recs, synced: map[int64]time.Time{}}
}

func (s *fakeSyncStore) ListBatch(_ context.Context, batchID string) ([]core.WasteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt == "list" {
		return nil, errors.New("database is locked")
	}
	var out []core.WasteRecord
	for _, r := range s.records {
		if _, done := s.synced[r.ID]; r.BatchID == batchID && !done {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeSyncStore) PendingSync(_ context.Context, limit int) ([]core.WasteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.WasteRecord
	for _, r := range s.records {
		if len(out) == limit {
			break
		}
		if _, done := s.synced[r.ID]; !done {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeSyncStore) MarkSynced(_ context.Context, ids []int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt == "mark" {
		return errors.New("disk full")
	}
	for _, id := range ids {
		s.synced[id] = at
	}
	return nil
}

func (s *fakeSyncStore) syncedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.synced)
}

type fakeSheets struct {
	mu       sync.Mutex
	appends  [][]core.WasteRecord
	tables   []string
	failWith error
}

func (f *fakeSheets) AppendRecords(_ context.Context, recs []core.WasteRecord) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	f.appends = append(f.appends, append([]core.WasteRecord(nil), recs...))
	return len(recs), nil
}

func (f *fakeSheets) PublishTable(_ context.Context, t *report.Table) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	f.tables = append(f.tables, t.SheetName())
	return "ref:" + t.SheetName(), nil
}

func (f *fakeSheets) appended() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.appends {
		n += len(a)
	}
	return n
}

type fixedTables struct {
	now time.Time
}

func (f fixedTables) Table(_ context.Context, q report.RangeQuery) (*report.Table, error) {
	p, err := report.ResolveRange(q, f.now, core.Civil())
	if err != nil {
		return nil, err
	}
	return report.NewTable(report.BuildGrid(report.DefaultSchema(), p, nil)), nil
}
