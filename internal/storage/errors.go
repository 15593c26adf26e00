package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the object store. Callers match them with errors.Is.
var (
	// ErrNotFound is permanent: the object is absent.
	ErrNotFound = errors.New("object not found")
	// ErrAuthFailure is permanent: credentials or configuration are wrong. Never retried.
	ErrAuthFailure = errors.New("object storage authentication failed")
	// ErrTempUnavailable is returned once the retry budget is exhausted.
	ErrTempUnavailable = errors.New("object storage temporarily unavailable")
	// ErrInvalidPath is returned for paths outside the canonical shape.
	ErrInvalidPath = errors.New("invalid storage path")
	// ErrGrantExpired is returned when a signed grant is used after its validity window.
	ErrGrantExpired = errors.New("grant has expired")
	// ErrGrantInvalid is returned when a signed grant does not verify.
	ErrGrantInvalid = errors.New("grant signature is invalid")
)

// Error is returned by ObjectStore operations. Kind is one of the sentinel errors above;
// Err is the last underlying backend error.
type Error struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("storage %s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// PathError explains why a path was rejected.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("invalid storage path %q: %s", e.Path, e.Reason)
}

func (e *PathError) Unwrap() error {
	return ErrInvalidPath
}

// markNotFound and markAuth tag backend errors with their permanent kind.
func markNotFound(err error) error {
	return fmt.Errorf("%w: %w", ErrNotFound, err)
}

func markAuth(err error) error {
	return fmt.Errorf("%w: %w", ErrAuthFailure, err)
}

// classifyCode maps S3 error codes and HTTP status codes to permanent kinds.
// Unknown codes are left unmarked and therefore retried.
func classifyCode(err error, code string, status int) error {
	switch code {
	case "NoSuchKey", "NotFound", "NoSuchBucket", "NoSuchUpload":
		return markNotFound(err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "InvalidToken",
		"ExpiredToken", "AccountProblem", "AllAccessDisabled", "InvalidSecurity", "MissingSecurityHeader":
		return markAuth(err)
	}
	switch status {
	case 404:
		return markNotFound(err)
	case 401, 403:
		return markAuth(err)
	}
	if isCredentialError(err) {
		return markAuth(err)
	}
	return err
}

// isCredentialError catches SDK-side credential faults that never reach the server.
func isCredentialError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "failed to retrieve credentials") ||
		strings.Contains(msg, "no valid credential") ||
		strings.Contains(msg, "static credentials are empty")
}

// isPermanent reports whether an error must not be retried.
func isPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAuthFailure) ||
		errors.Is(err, ErrInvalidPath) ||
		errors.Is(err, context.Canceled)
}

// kindOf returns the sentinel kind for a final error.
func kindOf(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrAuthFailure):
		return ErrAuthFailure
	case errors.Is(err, ErrInvalidPath):
		return ErrInvalidPath
	default:
		return ErrTempUnavailable
	}
}

// kindLabel is the metrics label of a kind.
func kindLabel(kind error) string {
	switch kind {
	case ErrNotFound:
		return "not_found"
	case ErrAuthFailure:
		return "auth_failure"
	case ErrInvalidPath:
		return "invalid_path"
	default:
		return "temp_unavailable"
	}
}
