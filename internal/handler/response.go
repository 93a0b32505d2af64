package handler

import (
	"strings"

	"messaging-core/internal/transport/httpdto"
	core_errors "messaging-core/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError writes the error envelope and records err on the context so
// the error middleware can log internal failures.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(httpdto.FromError(err))
}

func invalid(c *gin.Context, message string) {
	respondError(c, &requestError{message: message})
}

// requestError is a malformed request detected before reaching a service.
type requestError struct {
	message string
}

func (e *requestError) Error() string { return e.message }
func (e *requestError) Unwrap() error { return core_errors.ErrValidation }

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// parseOptionalUUID treats an empty string as absent.
func parseOptionalUUID(value string) (uuid.NullUUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}
