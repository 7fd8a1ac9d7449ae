package http_handler

import (
	"errors"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/pkg/resilience"
	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeTokenInvalid     = "TOKEN_INVALID"
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeNodeUnavailable  = "NODE_UNAVAILABLE"
	CodeIncomplete       = "INCOMPLETE"
	CodeNotReady         = "FILE_NOT_READY"
	CodeStorage          = "STORAGE_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeForbidden        = "FORBIDDEN"
	CodeIntegrity        = "INTEGRITY_ERROR"
	CodeRangeUnsatisfied = "RANGE_NOT_SATISFIABLE"
	CodeInternal         = "INTERNAL_ERROR"
)

// errorBody maps a service error to its HTTP status and JSON body.
func errorBody(err error) (int, fiber.Map) {
	var (
		validation *domain.ValidationError
		checksum   *domain.ChecksumMismatchError
		tokenErr   *domain.TokenError
		noNode     *domain.NodeUnavailableError
		incomplete *domain.IncompleteTransferError
		integrity  *domain.IntegrityError
		backend    *domain.BackendIOError
		fiberErr   *fiber.Error
	)

	switch {
	case errors.As(err, &validation):
		return fiber.StatusBadRequest, fiber.Map{"error": err.Error(), "code": CodeValidation, "field": validation.Field}
	case errors.As(err, &checksum):
		return fiber.StatusBadRequest, fiber.Map{"error": err.Error(), "code": CodeValidation, "field": "body"}
	case errors.As(err, &tokenErr):
		code := CodeTokenInvalid
		if tokenErr.Reason == domain.TokenExpired {
			code = CodeTokenExpired
		}
		return fiber.StatusUnauthorized, fiber.Map{"error": err.Error(), "code": code}
	case errors.As(err, &noNode):
		return fiber.StatusServiceUnavailable, fiber.Map{"error": err.Error(), "code": CodeNodeUnavailable}
	case errors.As(err, &incomplete):
		return fiber.StatusConflict, fiber.Map{"error": err.Error(), "code": CodeIncomplete, "missingChunks": incomplete.MissingHashes}
	case errors.Is(err, domain.ErrManifestChanged):
		return fiber.StatusConflict, fiber.Map{"error": err.Error(), "code": CodeIncomplete}
	case errors.Is(err, domain.ErrFileNotReady):
		return fiber.StatusConflict, fiber.Map{"error": err.Error(), "code": CodeNotReady}
	case errors.Is(err, domain.ErrFileNotFound), errors.Is(err, domain.ErrObjectNotFound):
		return fiber.StatusNotFound, fiber.Map{"error": err.Error(), "code": CodeNotFound}
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, fiber.Map{"error": err.Error(), "code": CodeForbidden}
	case errors.Is(err, domain.ErrRangeNotSatisfiable):
		return fiber.StatusRequestedRangeNotSatisfiable, fiber.Map{"error": err.Error(), "code": CodeRangeUnsatisfied}
	case errors.As(err, &integrity):
		return fiber.StatusInternalServerError, fiber.Map{"error": err.Error(), "code": CodeIntegrity}
	case errors.As(err, &backend):
		body := fiber.Map{"error": err.Error(), "code": CodeStorage, "node": backend.NodeID}
		if after, ok := resilience.CircuitOpenRetryAfter(err); ok {
			body["retryAfterMs"] = after.Milliseconds()
		}
		return fiber.StatusBadGateway, body
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiber.Map{"error": fiberErr.Message, "code": codeForStatus(fiberErr.Code)}
	default:
		return fiber.StatusInternalServerError, fiber.Map{"error": "internal server error", "code": CodeInternal}
	}
}

func statusOf(err error) int {
	status, _ := errorBody(err)
	return status
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return CodeNotFound
	case fiber.StatusForbidden:
		return CodeForbidden
	case fiber.StatusRequestEntityTooLarge, fiber.StatusBadRequest, fiber.StatusMethodNotAllowed:
		return CodeValidation
	default:
		return CodeInternal
	}
}

// errorHandler is the single place service errors become responses.
func errorHandler(c *fiber.Ctx, err error) error {
	status, body := errorBody(err)
	if status >= fiber.StatusInternalServerError {
		sdklogger.Errorw("Request failed", "method", c.Method(), "path", c.Path(), "status", status, "error", err.Error())
	} else {
		sdklogger.Debugw("Request rejected", "method", c.Method(), "path", c.Path(), "status", status, "error", err.Error())
	}
	return c.Status(status).JSON(body)
}
