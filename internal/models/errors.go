package models

import "errors"

// Error taxonomy of the acquisition pipeline. Failures are scoped to the
// smallest unit possible: chapter-level errors are logged and skipped by the
// enclosing loop, session-level errors get exactly one recovery attempt.
var (
	// ErrNetworkExhausted is returned by the request executor after every
	// retry attempt failed at the network level.
	ErrNetworkExhausted = errors.New("network attempts exhausted")

	// ErrAuthFailure covers rejected credentials and non-success login
	// responses.
	ErrAuthFailure = errors.New("authentication failed")

	// ErrCredentialsMissing aborts a run before any network call is made.
	ErrCredentialsMissing = errors.New("no credentials or stored session")

	// ErrTokenNotFound marks a ticket payload with no extractable content
	// token. The affected chapter is skipped, never the run.
	ErrTokenNotFound = errors.New("content token not found")

	// ErrContentGated marks a chapter whose body could not be extracted.
	ErrContentGated = errors.New("content gated or missing")

	// ErrStructuralMismatch signals that the listing surface does not match
	// the expected shape; Strategy A abandons and the walker takes over.
	ErrStructuralMismatch = errors.New("listing structure mismatch")

	// ErrSessionLost signals a second consecutive session failure after a
	// recovery attempt already ran.
	ErrSessionLost = errors.New("session lost after recovery attempt")
)
