package model

import "time"

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	// FailedItems lists ids of records that were skipped as invalid.
	FailedItems []string `json:"failed_items,omitempty"`
	// Warnings carries configuration problems the engine worked around.
	Warnings []string `json:"warnings,omitempty"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeUnavailable   = "UNAVAILABLE"
)

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Limiter  string `json:"limiter"`
	Uptime   int64  `json:"uptime_seconds"`
}

// QualityRefreshRequest is the body of POST /v1/admin/quality/refresh.
// A zero Limit uses the server's configured batch size.
type QualityRefreshRequest struct {
	Limit int `json:"limit" validate:"gte=0,lte=100000"`
}

// QualityRefreshResponse reports a quality write-back pass.
type QualityRefreshResponse struct {
	Scored  int   `json:"scored"`
	Updated int64 `json:"updated"`
	Failed  int   `json:"failed"`
}

// EvaluateNotificationsRequest is the body of
// POST /v1/agents/{id}/notifications/evaluate.
type EvaluateNotificationsRequest struct {
	Notifications []Notification `json:"notifications" validate:"required,max=500"`
	// Dispatch sends queued notifications through the configured transports.
	Dispatch bool `json:"dispatch"`
}
