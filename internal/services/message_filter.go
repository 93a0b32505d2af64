package services

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"messaging-core/internal/domain/message"
	"messaging-core/internal/repository"
	core_errors "messaging-core/pkg/errors"

	"github.com/google/uuid"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// MessageFilter narrows GetMessages. Every set field must match.
type MessageFilter struct {
	Status    message.Status
	Kind      message.Kind
	Priority  message.Priority
	Category  string
	SenderID  uuid.NullUUID
	ThreadID  uuid.NullUUID
	Search    string
	LastCheck sql.NullTime
	Limit     int
	Offset    int
}

func (f MessageFilter) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", core_errors.ErrValidation, f.Status)
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", core_errors.ErrValidation, f.Kind)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", core_errors.ErrValidation, f.Priority)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return fmt.Errorf("%w: limit and offset must not be negative", core_errors.ErrValidation)
	}
	return nil
}

func (f MessageFilter) query(userID uuid.UUID) repository.MessageQuery {
	limit := f.Limit
	switch {
	case limit == 0:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}
	return repository.MessageQuery{
		UserID:   userID,
		Status:   f.Status,
		Kind:     f.Kind,
		Priority: f.Priority,
		Category: strings.TrimSpace(f.Category),
		SenderID: f.SenderID,
		ThreadID: f.ThreadID,
		Search:   strings.TrimSpace(f.Search),
		Limit:    limit,
		Offset:   f.Offset,
	}
}

// ParseCursor accepts RFC 3339 timestamps (with or without fractional
// seconds) or integer Unix milliseconds.
func ParseCursor(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, invalidCursor(raw)
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms >= 0 {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, invalidCursor(raw)
}

// FormatCursor renders a cursor the way ParseCursor reads it back.
func FormatCursor(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func invalidCursor(raw string) error {
	return fmt.Errorf("%w: %w: last_check %q is not a timestamp", core_errors.ErrValidation, core_errors.ErrInvalidCursor, raw)
}
