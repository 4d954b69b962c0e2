package domain

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// Application error codes
const (
	EINVALID   = "invalid"    // Invalid client input (missing file, unknown conversion kind)
	ECODEC     = "codec"      // Image could not be decoded or encoded
	EGATEWAY   = "gateway"    // Payment gateway call failed
	EPAYMENT   = "payment"    // Payment could not be verified
	EFORBIDDEN = "forbidden"  // Request rejected (missing or bad CSRF token)
	ENOTFOUND  = "not_found"  // Resource not found
	ETOOLARGE  = "too_large"  // Request entity too large
	ERATELIMIT = "rate_limit" // Rate limit exceeded
	EINTERNAL  = "internal"   // Internal server error
)

// User-visible messages that clients and tests rely on verbatim.
const (
	MsgInvalidConversionType     = "Invalid conversion type"
	MsgPaymentVerificationFailed = "Payment verification failed"
	MsgNoFilePart                = "No file part"
	MsgNoSelectedFile            = "No selected file"
	MsgUnreadableImage           = "The file could not be read as an image"
	MsgConversionFailed          = "Conversion failed"
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "conversion.convert")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		// For internal errors, return generic message
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Convenience constructors for common error types

// Invalid creates a client input error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Codec creates an error for an image the imaging library could not process.
// The message is shown to the user; err keeps the library's diagnostic.
func Codec(err error, op, message string) *Error {
	return &Error{
		Code:    ECODEC,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Gateway creates an error for a failed payment gateway call.
func Gateway(err error, op, message string) *Error {
	return &Error{
		Code:    EGATEWAY,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// PaymentFailed creates a payment verification error.
func PaymentFailed(err error, op string) *Error {
	return &Error{
		Code:    EPAYMENT,
		Op:      op,
		Message: MsgPaymentVerificationFailed,
		Err:     err,
	}
}

// TooLarge creates an error for an upload over the size limit.
func TooLarge(op string, limit int64) *Error {
	return &Error{
		Code:    ETOOLARGE,
		Op:      op,
		Message: fmt.Sprintf("File is too large. The limit is %s.", humanize.IBytes(uint64(limit))),
	}
}

// Forbidden creates an error for a request that failed an authenticity check.
func Forbidden(op, message string) *Error {
	return &Error{
		Code:    EFORBIDDEN,
		Op:      op,
		Message: message,
	}
}

// NotFound creates a not found error.
func NotFound(op, message string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// RateLimit creates a rate limit error.
func RateLimit(op string) *Error {
	return &Error{
		Code:    ERATELIMIT,
		Op:      op,
		Message: "Too many requests. Please try again later.",
	}
}
