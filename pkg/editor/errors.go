package editor

import "errors"

// Errors surfaced by the editor controller. Store failures are wrapped with
// the name of the operation that hit them; cancellation is never surfaced.
var (
	// ErrInvalidFlowID is returned when an operation is given a missing or
	// sentinel-invalid flow id. Rejected before any network call.
	ErrInvalidFlowID = errors.New("invalid flow id")

	// ErrUnusableFlow means the store returned a flow without a usable id.
	ErrUnusableFlow = errors.New("store returned flow without usable id")
)
