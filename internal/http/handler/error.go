package handler

import (
	"errors"
	"hash/fnv"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"docvault/internal/errmsg"
	"docvault/internal/http/middleware"
	"docvault/internal/quota"
	"docvault/internal/service"
	"docvault/internal/storage"
)

// retryAfterSeconds is sent with every retryable failure.
const retryAfterSeconds = 5

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Hint      string `json:"hint,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

var messages = errmsg.Default()

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeMessage writes a rendered registry message.
func writeMessage(c *fiber.Ctx, m errmsg.Message) error {
	if m.Retryable {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds))
	}
	return c.Status(m.Status).JSON(errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:      m.Code,
			Message:   m.Message,
			Hint:      m.Hint,
			Retryable: m.Retryable,
		},
	})
}

// writeServiceError translates a service error into its user-facing message. The variant
// is chosen by the request id so a retried request reads the same.
func writeServiceError(c *fiber.Ctx, err error) error {
	kind, args := classify(err)
	switch kind {
	case errmsg.KindInternal, errmsg.KindAuthFailure, errmsg.KindTempUnavailable:
		zerolog.Ctx(c.UserContext()).Error().Err(err).
			Str("kind", string(kind)).
			Str("path", c.Path()).
			Msg("request_failed")
	}
	return writeMessage(c, messages.Render(kind, seedOf(requestIDFromCtx(c)), args))
}

func classify(err error) (errmsg.Kind, errmsg.Args) {
	var exceeded *quota.ExceededError
	switch {
	case errors.As(err, &exceeded):
		if exceeded.Resource == quota.ResourceDocuments {
			return errmsg.KindDocumentQuotaExceeded, errmsg.Args{
				"limit": strconv.FormatUint(exceeded.Limit, 10),
				"count": strconv.FormatUint(exceeded.Current, 10),
			}
		}
		return errmsg.KindStorageQuotaExceeded, errmsg.Args{
			"overage": humanize.IBytes(exceeded.Overage),
			"used":    humanize.IBytes(exceeded.Current),
			"limit":   humanize.IBytes(exceeded.Limit),
		}
	case errors.Is(err, service.ErrNotFound):
		return errmsg.KindNotFound, nil
	case errors.Is(err, service.ErrTenantRequired):
		return errmsg.KindUnauthenticated, nil
	case errors.Is(err, service.ErrIDRequired),
		errors.Is(err, service.ErrReaderNil),
		errors.Is(err, service.ErrSizeRequired),
		errors.Is(err, service.ErrInvalidName),
		errors.Is(err, service.ErrInvalidStatus):
		return errmsg.KindInvalidInput, errmsg.Args{"reason": reasonOf(err)}
	case errors.Is(err, service.ErrCorruptPath), errors.Is(err, storage.ErrInvalidPath):
		return errmsg.KindInvalidPath, errmsg.Args{"reason": reasonOf(err)}
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrUploadMissing):
		return errmsg.KindInvalidState, errmsg.Args{"reason": err.Error()}
	case errors.Is(err, storage.ErrAuthFailure):
		return errmsg.KindAuthFailure, nil
	case errors.Is(err, storage.ErrTempUnavailable):
		return errmsg.KindTempUnavailable, nil
	default:
		return errmsg.KindInternal, nil
	}
}

// reasonOf prefers the path rule that was broken over the wrapped error text.
func reasonOf(err error) string {
	var pe *storage.PathError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return err.Error()
}

func seedOf(requestID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(requestID))
	return h.Sum64()
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			return writeServiceError(c, err)
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", fe.Message)
		case fiber.StatusForbidden:
			return writeError(c, status, "FORBIDDEN", fe.Message)
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body is too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
