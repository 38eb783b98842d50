package models

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Transient upstream problems surface as wrapped errors
// from the fetch/generation clients and are retried on the next invocation;
// the sentinels below mark the unrecoverable generation outcomes.
var (
	// ErrNoQuotes means every asset class came back empty, so there is
	// nothing for Betty to pick from.
	ErrNoQuotes = errors.New("no quotes available for any asset class")

	// ErrNotEnoughPicks means fewer than the required number of proposals
	// survived parsing and normalization.
	ErrNotEnoughPicks = errors.New("fewer than 3 valid proposals survived")
)

// ValidationError marks a single malformed proposal. It is isolated to that
// proposal and never aborts its siblings on its own.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid proposal: %s: %s", e.Field, e.Reason)
}

// UnknownClassError reports an asset class outside the three tracked ones.
type UnknownClassError struct {
	Class AssetClass
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("unknown asset class: %q", e.Class)
}
