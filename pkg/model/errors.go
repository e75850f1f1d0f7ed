package model

import "errors"

// Sentinel errors shared across the core. Handlers map these onto HTTP
// status codes; everything else surfaces as a 500.
var (
	// ErrNotFound indicates the requested product or vendor id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates a caller-supplied value that violates an
	// invariant (non-positive frequency, non-positive window, ...).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPropagationConflict indicates an apply-to-products pass whose scope
	// overlaps one already in flight. The caller may retry once it completes.
	ErrPropagationConflict = errors.New("propagation already in progress for scope")

	// ErrVendorHasProducts indicates a vendor delete was rejected because
	// products still reference it.
	ErrVendorHasProducts = errors.New("vendor has products")

	// ErrNoPrice indicates a fetch succeeded but no price could be extracted
	// from the page, so there is no observation to record.
	ErrNoPrice = errors.New("no price extracted")
)
