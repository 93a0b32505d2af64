package httpdto

import core_errors "messaging-core/pkg/errors"

// Response is the envelope every JSON endpoint answers with.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// FromError picks the status and envelope for a core error. Upstream
// failures get a generic message.
func FromError(err error) (int, Response[any]) {
	return core_errors.HTTPStatus(err), NewErrorResponse(core_errors.PublicMessage(err), core_errors.Code(err))
}
