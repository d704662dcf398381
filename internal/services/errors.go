// internal/services/errors.go
package services

import "errors"

var (
	// ErrNotFound is returned when the referenced request, license, or
	// document does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTransition is a validation failure: the requested transition
	// is not allowed from the current status. Nothing is mutated.
	ErrInvalidTransition = errors.New("transition not allowed from current status")

	// ErrStatusConflict is a compare-and-swap mismatch: the request status
	// changed between read and write. The caller must re-fetch and retry.
	ErrStatusConflict = errors.New("request status changed concurrently")

	// ErrTerminalStatus rejects status-changing operations on done/closed
	// requests. Notes and audit reads remain allowed.
	ErrTerminalStatus = errors.New("request is in a terminal status")

	// ErrUnrecognizedEvent rejects provider status strings outside the closed
	// internal enumeration. Untrusted input never passes through.
	ErrUnrecognizedEvent = errors.New("unrecognized provider event")

	// ErrDuplicateArtifact guards executed-document immutability: a second
	// executed archival for the same request is refused, never overwritten.
	ErrDuplicateArtifact = errors.New("executed document already archived")

	// ErrDispatchFailed surfaces provider errors during execution dispatch.
	// The request remains in its prior state; retry is an explicit admin
	// action, never a silent background loop.
	ErrDispatchFailed = errors.New("execution dispatch failed")
)
