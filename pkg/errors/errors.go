package errors

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrBadRequest           = errors.New("bad request")
	ErrInternalServer       = errors.New("internal server error")
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomClosed           = errors.New("room is closed")
	ErrDuplicateRoom        = errors.New("active room already exists for this pair")
	ErrForbiddenParticipant = errors.New("participant is not a member of this room")
	ErrForbiddenSender      = errors.New("sender is not a member of this room")
	ErrInvalidTransition    = errors.New("invalid state transition")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrRateLimited          = errors.New("too many requests")
)

type APIError struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(message string, code int) *APIError {
	return &APIError{
		Message: message,
		Code:    code,
	}
}

func HTTPStatusFromError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbiddenParticipant), errors.Is(err, ErrForbiddenSender):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrRoomClosed), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrDuplicateRoom):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
