package services

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to the transport layer. Handlers map them to status
// codes with errors.Is; anything else is treated as ErrSystem.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrBadRequest      = errors.New("bad request")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrSystem          = errors.New("system error")
)

var (
	ErrAlreadyQueued   = fmt.Errorf("%w: player already queued", ErrConflict)
	ErrAlreadyFinished = fmt.Errorf("%w: game already finished", ErrConflict)
	ErrNotPlayable     = fmt.Errorf("%w: game is not waiting", ErrConflict)

	ErrNotQueued    = fmt.Errorf("%w: player is not in the queue", ErrNotFound)
	ErrUserNotFound = fmt.Errorf("%w: user does not exist", ErrNotFound)
	ErrGameNotFound = fmt.Errorf("%w: game does not exist", ErrNotFound)
	ErrNotAPlayer   = fmt.Errorf("%w: caller is not a participant", ErrForbidden)
	ErrBanned       = fmt.Errorf("%w: account is suspended", ErrForbidden)
)

// expected reports whether err is a steady-state outcome of concurrent use
// rather than a fault.
func expected(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrBadRequest) ||
		errors.Is(err, ErrUnauthenticated)
}
