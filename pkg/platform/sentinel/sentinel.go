package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so handlers can translate them into domain errors.
//
//   - ErrNotFound: record does not exist in store
//   - ErrConflict: a concurrent request already holds the resource
//   - ErrUnavailable: store or broker temporarily unavailable (includes an open breaker)
//   - ErrInvalidInput: a store rejected an argument before touching storage
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidInput = errors.New("invalid input")
)
