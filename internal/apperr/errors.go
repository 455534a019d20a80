// internal/apperr/errors.go
package apperr

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by the session, lobby and word packages.
// Call sites wrap them with fmt.Errorf("...: %w", ErrX) so the message
// carries context while errors.Is still matches the category.
var (
	// ErrInvalidState is returned when an operation is attempted against the wrong lobby or session state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidMove is returned for malformed combination requests.
	ErrInvalidMove = errors.New("invalid move")

	// ErrInvalidArgument is returned for malformed lobby settings or request bodies.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned for unknown lobby codes, players or words.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when a request carries no valid player token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when joining a lobby that is not accepting players, or when a
	// non-owner attempts an owner-only action.
	ErrForbidden = errors.New("forbidden")

	// ErrGeneratorFailure marks a failed external word generation. It is recovered locally and
	// never reaches a client.
	ErrGeneratorFailure = errors.New("generator failure")

	// ErrInternal marks mode instantiation or configuration errors.
	ErrInternal = errors.New("internal failure")
)

// HTTPStatus maps an error to the status code the HTTP adapter should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidMove), errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
