package memory

import (
	"context"
	"fmt"
	"sync"

	"green/internal/core"
	"green/internal/report"
	ports "green/internal/sheets"
)

// Store keeps mirrored rows and published tables in process. It stands in
// for the spreadsheet when no spreadsheet id is configured.
type Store struct {
	mu      sync.Mutex
	records []core.WasteRecord
	tables  map[string][][]any
}

var _ ports.Publisher = (*Store)(nil)

func New() *Store {
	return &Store{tables: make(map[string][][]any)}
}

// AppendRecords stores copies of recs.
func (s *Store) AppendRecords(_ context.Context, recs []core.WasteRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, recs...)
	return len(recs), nil
}

// PublishTable replaces the named table and returns a synthetic reference.
func (s *Store) PublishTable(_ context.Context, t *report.Table) (string, error) {
	values := ports.TableValues(t)
	s.mu.Lock()
	defer s.mu.Unlock()
	name := t.SheetName()
	s.tables[name] = values
	return fmt.Sprintf("mem:%s:%d", name, len(values)), nil
}

// Records returns the mirrored records in append order.
func (s *Store) Records() []core.WasteRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.WasteRecord(nil), s.records...)
}

// Table returns the last values published under name.
func (s *Store) Table(name string) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.tables[name]
	return v, ok
}
