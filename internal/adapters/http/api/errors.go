package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/scorestat/internal/adapters/repository"
	service "github.com/okian/scorestat/internal/app"
	"github.com/okian/scorestat/internal/domain/score"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
)

// Error tags an error with the handler operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// NewKind returns an Error of the given sentinel kind.
func NewKind(op string, kind error) error { return &Error{Op: op, Err: kind} }

// Wrap annotates err with op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// badRequest reports a client input problem with a readable message.
func badRequest(op, msg string) error {
	return &Error{Op: op, Err: fmt.Errorf("%w: %s", ErrBadRequest, msg)}
}

// statusFor maps domain and repository errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, score.ErrValidation),
		errors.Is(err, repository.ErrInvalidRecord),
		errors.Is(err, repository.ErrInvalidPageArg):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound),
		errors.Is(err, score.ErrNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage strips the handler operation prefix.
func clientMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Err.Error()
	}
	return err.Error()
}
