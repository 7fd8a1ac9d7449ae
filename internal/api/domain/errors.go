package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFileNotFound   = errors.New("file not found")
	ErrForbidden      = errors.New("file not owned by caller")
	ErrObjectNotFound = errors.New("object not found")
	ErrFileNotReady   = errors.New("file is not complete")

	// ErrManifestChanged is returned when a file was re-registered between
	// chunk verification and the complete transition.
	ErrManifestChanged = errors.New("file manifest changed during finalization")
)

// ValidationError reports a malformed request. It is returned before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// TokenFailure classifies a rejected token without describing why it was rejected.
type TokenFailure string

const (
	TokenInvalid TokenFailure = "invalid"
	TokenExpired TokenFailure = "expired"
)

// TokenError is returned for any token that cannot be consumed.
type TokenError struct {
	Reason TokenFailure
}

func (e *TokenError) Error() string {
	if e.Reason == TokenExpired {
		return "transfer token expired"
	}
	return "transfer token invalid"
}

// ErrTokenInvalid is the shared fail-closed token rejection.
var ErrTokenInvalid = &TokenError{Reason: TokenInvalid}

// ErrTokenExpired is returned when a matching token has passed its expiry.
var ErrTokenExpired = &TokenError{Reason: TokenExpired}

// NodeUnavailableError is returned when no active storage node can take a placement.
type NodeUnavailableError struct {
	NodeID string
}

func (e *NodeUnavailableError) Error() string {
	if e.NodeID == "" {
		return "no storage nodes available"
	}
	return fmt.Sprintf("storage node %s unavailable", e.NodeID)
}

// IncompleteTransferError lists the chunks that are still absent at finalization.
type IncompleteTransferError struct {
	FileID        string
	MissingHashes []string
}

func (e *IncompleteTransferError) Error() string {
	return fmt.Sprintf("file %s incomplete: missing chunks [%s]", e.FileID, strings.Join(e.MissingHashes, ", "))
}

// BackendIOError wraps an object backend failure. These are retriable.
type BackendIOError struct {
	NodeID string
	Op     string
	Key    string
	Err    error
}

func (e *BackendIOError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage node %s %s failed: %v", e.NodeID, e.Op, e.Err)
	}
	return fmt.Sprintf("storage node %s %s %s failed: %v", e.NodeID, e.Op, e.Key, e.Err)
}

func (e *BackendIOError) Unwrap() error {
	return e.Err
}

// IntegrityError signals metadata that references state which no longer exists,
// such as a file assigned to an unknown storage node.
type IntegrityError struct {
	FileID string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("data integrity violation for file %s: %s", e.FileID, e.Detail)
}

// ChecksumMismatchError is returned when uploaded bytes do not hash to the declared chunk hash.
type ChecksumMismatchError struct {
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("chunk hash mismatch: expected %s, got %s", e.Expected, e.Actual)
}
