package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoActiveSession      = errors.New("no active session")
	ErrSessionAlreadyActive = errors.New("a session is already active")
	ErrSessionStopped       = errors.New("session stopped")
	ErrNotFound             = errors.New("not found")
	ErrInvalidRequest       = errors.New("invalid request")
)

// DeviceError is a capture permission or device failure. It is terminal for
// the failing source only.
type DeviceError struct {
	Source string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Source, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// InferenceError is a failed or unparseable inference call.
type InferenceError struct {
	Op  string
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference %s: %v", e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// PersistenceError is a failed store write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
