package usecase

import "errors"

// Engine error taxonomy. Everything here degrades to "skip this unit of
// work and continue"; only startup configuration errors are fatal.
var (
	ErrQuoteUnavailable  = errors.New("quote unavailable")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrOrderFailed       = errors.New("order failed")
	ErrConnectionFailure = errors.New("venue connection failure")
)
