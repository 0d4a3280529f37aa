// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across the client layers.
var (
	// ErrMissingEventID indicates a vote or lookup was attempted without an event id.
	ErrMissingEventID = errors.New("missing event id")

	// ErrMissingPlayerID indicates a vote was attempted without a player id.
	ErrMissingPlayerID = errors.New("missing player id")

	// ErrEmptySignals indicates the deterministic signal bundle carried no data.
	ErrEmptySignals = errors.New("empty signal bundle")

	// ErrMalformedResponse indicates the server reply could not be decoded.
	ErrMalformedResponse = errors.New("malformed server response")
)
