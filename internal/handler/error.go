package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/DukeRupert/convertly/internal/middleware"
)

// statusByCode maps domain error codes to HTTP statuses. Unknown codes
// are internal errors.
var statusByCode = map[string]int{
	domain.EINVALID:   http.StatusBadRequest,
	domain.EPAYMENT:   http.StatusPaymentRequired,
	domain.EFORBIDDEN: http.StatusForbidden,
	domain.ENOTFOUND:  http.StatusNotFound,
	domain.ETOOLARGE:  http.StatusRequestEntityTooLarge,
	domain.ECODEC:     http.StatusUnprocessableEntity,
	domain.ERATELIMIT: http.StatusTooManyRequests,
	domain.EGATEWAY:   http.StatusBadGateway,
}

// ErrorCodeToHTTPStatus maps a domain error code to an HTTP status.
func ErrorCodeToHTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorResponse logs err and writes its user-visible message. Wrapped
// causes (codec diagnostics, SQL errors) only reach the log.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)

	attrs := []any{
		"error", err.Error(),
		"code", code,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
	}
	if op := domain.ErrorOp(err); op != "" {
		attrs = append(attrs, "op", op)
	}
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("server error", attrs...)
	case code == domain.EPAYMENT || code == domain.EFORBIDDEN:
		// Tampered signatures and forged forms are worth noticing.
		logger.Warn("client error", attrs...)
	default:
		logger.Info("client error", attrs...)
	}

	middleware.WriteError(w, r, status, code, domain.ErrorMessage(err))
}

// NotFoundResponse writes a 404.
func NotFoundResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, domain.NotFound("", "The requested page was not found"))
}

// InternalErrorResponse wraps err as internal and writes a generic 500.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ErrorResponse(w, r, logger, domain.Internal(err, "", "An unexpected error occurred"))
}
