package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"boxshop-api/internal/model"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
	// RetryAfter is sent as the Retry-After header when positive.
	RetryAfter time.Duration `json:"-"`
	// Data carries extra machine-readable fields (e.g. remaining quota).
	Data map[string]interface{} `json:"-"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// ToJSON converts the error to JSON bytes.
func (e *Error) ToJSON() []byte {
	response := map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"code":    e.Code,
			"message": e.Message,
		},
	}

	if len(e.Details) > 0 {
		response["error"].(map[string]interface{})["details"] = e.Details
	}
	for k, v := range e.Data {
		response["error"].(map[string]interface{})[k] = v
	}

	data, _ := json.Marshal(response)
	return data
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
	}
}

// ValidationError creates a 400 error with validation details.
func ValidationError(message string, details ...FieldError) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
		Message:    message,
		Details:    details,
	}
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

// Forbidden creates a 403 Forbidden error.
func Forbidden(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return &Error{
		StatusCode: http.StatusForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
	}
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    message,
	}
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds.
func (e *Error) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int((e.RetryAfter + time.Second - 1) / time.Second)
}

// ShopClosed creates a 403 error for purchases while the gate is closed.
func ShopClosed(message string) *Error {
	if message == "" {
		message = "The shop is currently closed"
	}
	return &Error{
		StatusCode: http.StatusForbidden,
		Code:       "SHOP_CLOSED",
		Message:    message,
	}
}

// QuotaExceeded creates a 429 error carrying the remaining quota and cooldown.
func QuotaExceeded(message string, remaining int, retryAfter time.Duration) *Error {
	e := &Error{
		StatusCode: http.StatusTooManyRequests,
		Code:       "QUOTA_EXCEEDED",
		Message:    message,
		RetryAfter: retryAfter,
	}
	e.Data = map[string]interface{}{
		"remaining":           remaining,
		"retry_after_seconds": e.RetryAfterSeconds(),
	}
	return e
}

// TooManyRequests creates a 429 error for request throttling.
func TooManyRequests(message string) *Error {
	if message == "" {
		message = "Too many requests"
	}
	return &Error{
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMITED",
		Message:    message,
		RetryAfter: time.Second,
	}
}

// OutOfStock creates a 409 error for purchases exceeding on-hand stock.
func OutOfStock(message string) *Error {
	if message == "" {
		message = "Not enough stock"
	}
	return &Error{
		StatusCode: http.StatusConflict,
		Code:       "OUT_OF_STOCK",
		Message:    message,
	}
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
	}
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return &Error{
		StatusCode: http.StatusServiceUnavailable,
		Code:       "SERVICE_UNAVAILABLE",
		Message:    message,
	}
}

// FromOutcome converts a rejected purchase into an API error.
func FromOutcome(o model.PurchaseOutcome) *Error {
	switch o.Reason {
	case model.ReasonShopClosed:
		return ShopClosed(o.Detail)
	case model.ReasonQuotaExceeded:
		return QuotaExceeded(o.Detail, o.Remaining, o.RetryAfter)
	case model.ReasonOutOfStock:
		return OutOfStock(o.Detail)
	default:
		return BadRequest(o.Detail)
	}
}

// FromError maps service errors onto API errors.
func FromError(err error) *Error {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, model.ErrInvalidRequest):
		return BadRequest(err.Error())
	case errors.Is(err, model.ErrShopClosed):
		return ShopClosed("")
	case errors.Is(err, model.ErrOutOfStock):
		return OutOfStock("")
	case errors.Is(err, model.ErrStorageUnavailable):
		return ServiceUnavailable("Inventory storage is unavailable")
	default:
		return InternalError("")
	}
}
