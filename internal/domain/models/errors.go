package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEndpoint = errors.New("invalid feed endpoint")
	ErrClientClosed    = errors.New("alert stream client closed")
)

// TransportError is a connection-level failure. Recovered by reconnecting.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError describes a frame or entry that could not be decoded.
// Index is -1 when the whole frame was rejected.
type DecodeError struct {
	Index  int
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Index < 0 {
		if e.Err != nil {
			return fmt.Sprintf("decode frame: %s: %v", e.Reason, e.Err)
		}
		return "decode frame: " + e.Reason
	}
	if e.Err != nil {
		return fmt.Sprintf("decode alert %d: %s: %v", e.Index, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode alert %d: %s", e.Index, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ConfigurationError is returned from Enable when the client cannot be started.
type ConfigurationError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
