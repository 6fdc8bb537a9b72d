package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrStale indicates a guarded patch lost its precondition to a
	// concurrent writer. Callers refetch instead of retrying blindly.
	ErrStale = errors.New("stale write")

	// ErrEmptyCart indicates checkout was attempted on an empty cart.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrSessionNotFound indicates an unknown or expired checkout session.
	ErrSessionNotFound = errors.New("checkout session not found")

	// ErrInvalidTransition indicates a lifecycle command that would move an
	// order backwards or act on the wrong stage.
	ErrInvalidTransition = errors.New("invalid status transition")
)
