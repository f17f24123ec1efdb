package server

import (
	"errors"
	"fmt"

	"github.com/ironsheep/smartfilter/internal/protocol"
)

// Execution failures. Every one of them is reported to the client as
// protocol.StatusFailure.
var (
	ErrImageLoad = errors.New("image load failed")
	ErrTransform = errors.New("transformation failed")
	ErrImageSave = errors.New("image save failed")
)

// ConnectionError is an accept, read or write failure. It only ever affects
// the connection it happened on.
type ConnectionError struct {
	Op     string // "accept", "read" or "write"
	Remote string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Remote == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Remote, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StartupError is returned when the server cannot start listening.
type StartupError struct {
	Addr string
	Err  error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("failed to listen on %s: %v", e.Addr, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// errorKind classifies a session error for metrics and logs.
func errorKind(err error) string {
	var connErr *ConnectionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &connErr):
		return connErr.Op
	case errors.Is(err, protocol.ErrMalformedRequest):
		return "protocol"
	case errors.Is(err, ErrImageLoad):
		return "load"
	case errors.Is(err, ErrImageSave):
		return "save"
	case errors.Is(err, ErrTransform):
		return "transform"
	default:
		return "internal"
	}
}
