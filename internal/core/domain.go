package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AreaOffice      Area = "kantor"
	AreaParking     Area = "parkir"
	AreaDining      Area = "makan"
	AreaWaitingRoom Area = "tunggu"
)

const (
	StatusOrganicSorted   Status = "Organik Terpilah"
	StatusInorganicSorted Status = "Anorganik Terpilah"
	StatusUnmanaged       Status = "Tidak Terkelola"
)

type (
	// Area is the tag resolved from a record's free-text area label.
	// The empty Area means the label matched no known area.
	Area string

	// Status is the coarse classification typed by field staff.
	Status string

	WasteRecord struct {
		ID          int64
		BatchID     string
		AreaLabel   string
		Area        Area
		ItemLabel   string
		Status      Status
		WeightKg    decimal.Decimal
		PetugasName string
		RecordedAt  time.Time
		UploadedAt  time.Time
	}
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrNegativeWeight = errors.New("negative weight")
	ErrMissingTime    = errors.New("missing recorded_at")
)

// Areas lists the known area tags in matching order.
func Areas() []Area {
	return []Area{AreaOffice, AreaParking, AreaDining, AreaWaitingRoom}
}

// Known reports whether a is one of the fixed area tags.
func (a Area) Known() bool {
	switch a {
	case AreaOffice, AreaParking, AreaDining, AreaWaitingRoom:
		return true
	}
	return false
}

// ParseStatus maps free text onto a Status, ignoring case and surrounding
// whitespace. Unrecognised input is returned as typed so the detail listing
// keeps what staff entered.
func ParseStatus(s string) Status {
	trimmed := strings.TrimSpace(s)
	for _, st := range []Status{StatusOrganicSorted, StatusInorganicSorted, StatusUnmanaged} {
		if strings.EqualFold(trimmed, string(st)) {
			return st
		}
	}
	return Status(trimmed)
}

// Managed reports whether the status counts as sorted waste.
func (s Status) Managed() bool {
	return s == StatusOrganicSorted || s == StatusInorganicSorted
}

// Validate accepts a blank item label; the category resolver files it under
// the fallback column.
func (r WasteRecord) Validate() error {
	if r.WeightKg.IsNegative() {
		return ErrNegativeWeight
	}
	if r.RecordedAt.IsZero() {
		return ErrMissingTime
	}
	return nil
}
