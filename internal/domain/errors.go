package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, with no infrastructure dependency.

var (
	// Ledger errors
	ErrInvalidPoints      = errors.New("points amount must be a positive integer")
	ErrInsufficientPoints = errors.New("insufficient points for this spend")

	// Event errors
	ErrInvalidEvent    = errors.New("invalid activity event")
	ErrUnknownActivity = errors.New("unknown activity type")

	// Badge errors
	ErrInvalidCriteria = errors.New("invalid badge criteria")
	ErrInvalidBadge    = errors.New("invalid badge definition")
	ErrBadgeNotFound   = errors.New("badge not found")
	ErrBadgeExists     = errors.New("badge already exists")

	// Challenge errors
	ErrInvalidChallenge  = errors.New("invalid challenge definition")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeClosed   = errors.New("challenge is not open for joining")
	ErrAlreadyJoined     = errors.New("already joined this challenge")
)
