package common

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest      = errors.New("bad request")
	ErrNotFound        = errors.New("not found")
	ErrInternalStorage = errors.New("internal storage error")

	// Fewer than 2 live DataNodes for an upload. Reported as a bad request.
	ErrInsufficientCapacity = fmt.Errorf("%w: fewer than 2 live data nodes", ErrBadRequest)

	// The named node could not be reached. Never retried here.
	ErrUnavailable = errors.New("node unavailable")
)

func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	case errors.Is(err, ErrBadRequest):
		return StatusBadRequest
	default:
		return StatusInternalError
	}
}

// Err turns a reply status back into one of the sentinels above.
func (self Status) Err() error {
	switch self {
	case StatusOK:
		return nil
	case StatusBadRequest:
		return ErrBadRequest
	case StatusNotFound:
		return ErrNotFound
	case StatusInternalError:
		return ErrInternalStorage
	default:
		return fmt.Errorf("unknown status %d", int(self))
	}
}
