package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the closed taxonomy every transport failure maps into.
type ErrorKind string

const (
	ErrInvalidRequestFormat ErrorKind = "invalid_request_format"
	ErrUnauthorized         ErrorKind = "unauthorized"
	ErrForbidden            ErrorKind = "forbidden"
	ErrBadRequest           ErrorKind = "bad_request"
	ErrNotFound             ErrorKind = "not_found"
	ErrConflict             ErrorKind = "conflict"
	ErrRateLimitExceeded    ErrorKind = "rate_limit_exceeded"
	ErrInternalServerError  ErrorKind = "internal_server_error"
	ErrDecoding             ErrorKind = "decoding_error"
	ErrNoNetworkConnection  ErrorKind = "no_network_connection"
	ErrOnConnection         ErrorKind = "on_connection"
	ErrUnknown              ErrorKind = "unknown"
)

// ServiceError is a classified transport failure. Errors are surfaced to
// callers unmodified; the only locally recovered case is the single
// forced-refresh retry on the auth kinds.
type ServiceError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int // 0 when the failure never reached HTTP
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("service error: %s", e.Kind)
	}
	return fmt.Sprintf("service error: %s: %s", e.Kind, e.Message)
}

// IsAuthExpired reports whether the error should trigger the one
// forced-refresh retry.
func (e *ServiceError) IsAuthExpired() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// errorBody is the structured error payload the backend attaches to 400 and
// 5xx responses.
type errorBody struct {
	Message string `json:"message"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func extractMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if eb.Error.Message != "" {
		return eb.Error.Message
	}
	return eb.Message
}

// ClassifyStatus maps an HTTP status code and response body into the closed
// taxonomy. Status codes, not bodies, drive classification; the body only
// contributes a message where the taxonomy carries one.
func ClassifyStatus(status int, body []byte) *ServiceError {
	switch {
	case status == http.StatusBadRequest:
		return &ServiceError{Kind: ErrBadRequest, Message: extractMessage(body), StatusCode: status}
	case status == http.StatusUnauthorized:
		return &ServiceError{Kind: ErrUnauthorized, StatusCode: status}
	case status == http.StatusForbidden:
		return &ServiceError{Kind: ErrForbidden, StatusCode: status}
	case status == http.StatusNotFound:
		return &ServiceError{Kind: ErrNotFound, StatusCode: status}
	case status == http.StatusConflict:
		return &ServiceError{Kind: ErrConflict, Message: extractMessage(body), StatusCode: status}
	case status == http.StatusFailedDependency:
		// Upstream session token rejected by a dependent service.
		return &ServiceError{Kind: ErrUnauthorized, Message: "upstream token invalid", StatusCode: status}
	case status == http.StatusTooManyRequests:
		return &ServiceError{Kind: ErrRateLimitExceeded, StatusCode: status}
	case status >= 500 && status <= 599:
		return &ServiceError{Kind: ErrInternalServerError, Message: extractMessage(body), StatusCode: status}
	default:
		return &ServiceError{Kind: ErrUnknown, Message: http.StatusText(status), StatusCode: status}
	}
}

// DecodingError wraps a payload decode failure. Fatal to the one request,
// never to the process.
func DecodingError(err error) *ServiceError {
	return &ServiceError{Kind: ErrDecoding, Message: err.Error()}
}

// NetworkError wraps a failure to reach the backend at all.
func NetworkError(err error) *ServiceError {
	return &ServiceError{Kind: ErrNoNetworkConnection, Message: err.Error()}
}

// NotConnectedError reports an operation attempted without a live connection.
func NotConnectedError() *ServiceError {
	return &ServiceError{Kind: ErrOnConnection, Message: "not connected"}
}

// InvalidRequestError reports a request that could not be built.
func InvalidRequestError(msg string) *ServiceError {
	return &ServiceError{Kind: ErrInvalidRequestFormat, Message: msg}
}

// AsServiceError unwraps err into the taxonomy, classifying unknown errors
// as ErrUnknown.
func AsServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return &ServiceError{Kind: ErrUnknown, Message: err.Error()}
}
