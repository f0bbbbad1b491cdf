package shared

import "errors"

var (
	// ErrValidation indicates malformed or out-of-range input; the operation was never attempted.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition indicates a workflow guard rejected the status change.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrInsufficientStock indicates a decrement larger than the current quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicateSKU indicates the SKU is already registered, active or not.
	ErrDuplicateSKU = errors.New("duplicate sku")
	// ErrDuplicateIdentifier indicates a generated or supplied identifier is already taken.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	// ErrStoreUnavailable indicates a transient storage failure; safe to retry after re-querying state.
	ErrStoreUnavailable = errors.New("store unavailable")
)
