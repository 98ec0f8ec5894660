// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxParticipantIDLen = 64
	MaxDisplayNameLen   = 36
	MaxRoomIDLen        = 64
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrRoomIDInvalid      = errors.New("invalid room id")
)

type ParticipantID string

// NewParticipantID issues an opaque identity for a client that the
// authentication layer did not name.
func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.NewString())
}

// NormalizeDisplayName trims the name and checks its length in runes.
func NormalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrDisplayNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return "", ErrDisplayNameTooLong
	}
	return name, nil
}

// ValidateRoomID accepts ids made of letters, digits, '-', '_' and '.'.
func ValidateRoomID(id RoomID) error {
	if id == "" || len(id) > MaxRoomIDLen {
		return ErrRoomIDInvalid
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return ErrRoomIDInvalid
		}
	}
	return nil
}
