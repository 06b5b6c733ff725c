package render

import (
	"errors"
	"fmt"
)

var (
	// ErrSurfaceStale is returned when the surface no longer matches the swapchain.
	ErrSurfaceStale = errors.New("render: surface out of date")
	// ErrSuboptimal is returned when presentation still works but the swapchain should be rebuilt.
	ErrSuboptimal    = errors.New("render: surface suboptimal")
	ErrTimeout       = errors.New("render: wait timed out")
	ErrNoDepthFormat = errors.New("render: no supported depth format")
	ErrPassOrder     = errors.New("render: pass order")
	ErrClosed        = errors.New("render: scheduler closed")
)

// FatalError is an unrecoverable device or driver failure. The render loop
// stops and tears everything down when it sees one.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("render: fatal %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(op string, err error) error {
	var f *FatalError
	if errors.As(err, &f) {
		return err
	}
	return &FatalError{Op: op, Err: err}
}

// IsStale reports whether err asks for the swapchain to be rebuilt.
func IsStale(err error) bool {
	return errors.Is(err, ErrSurfaceStale) || errors.Is(err, ErrSuboptimal)
}

// IsFatal reports whether err is a FatalError.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
