package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const maxUsernameLen = 64

var (
	ErrPetugasNotFound = errors.New("petugas not found")
	ErrPetugasExists   = errors.New("petugas username already exists")
	ErrInvalidUsername = errors.New("invalid petugas username")
)

// Petugas is a field staff member. Records reference staff by username
// through WasteRecord.PetugasName; login credentials are kept elsewhere.
type Petugas struct {
	ID        int64
	Username  string
	CreatedAt time.Time
}

// NormalizeUsername trims s and checks it is usable as a staff username.
func NormalizeUsername(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > maxUsernameLen {
		return "", ErrInvalidUsername
	}
	return s, nil
}
