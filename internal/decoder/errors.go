package decoder

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateRegistration is returned when two registrations claim the
	// same arbitration ID.
	ErrDuplicateRegistration = errors.New("duplicate decoder registration")
	// ErrInvalidRegistration is returned for a registration with no decode
	// function or an impossible payload length.
	ErrInvalidRegistration = errors.New("invalid decoder registration")
	// ErrPayloadLengthMismatch reports a frame whose payload length differs
	// from what its decoder expects. The frame is dropped.
	ErrPayloadLengthMismatch = errors.New("payload length mismatch")
)

// DuplicateRegistrationError names the ID registered twice.
type DuplicateRegistrationError struct {
	ID uint32
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("%v: id 0x%03x", ErrDuplicateRegistration, e.ID)
}

func (e *DuplicateRegistrationError) Unwrap() error { return ErrDuplicateRegistration }

// PayloadLengthMismatchError carries the expected and actual lengths of a
// dropped frame.
type PayloadLengthMismatchError struct {
	ID   uint32
	Want int
	Got  int
}

func (e *PayloadLengthMismatchError) Error() string {
	return fmt.Sprintf("%v: id 0x%03x want %d bytes, got %d", ErrPayloadLengthMismatch, e.ID, e.Want, e.Got)
}

func (e *PayloadLengthMismatchError) Unwrap() error { return ErrPayloadLengthMismatch }
