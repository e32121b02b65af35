package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"inboxinspire/internal/types"
)

// maxRequestBodySize caps schedule and task payloads.
const maxRequestBodySize = 1 << 20

// Envelope wraps every successful body. Single-object endpoints leave Meta nil.
type Envelope struct {
	Data any       `json:"data"`
	Meta *ListMeta `json:"meta,omitempty"`
}

// ListMeta describes a list body. Limit is the cap the store applied and
// Truncated reports that the cap was reached, so more rows may exist.
// Status echoes the send-status filter of pending listings.
type ListMeta struct {
	Count     int      `json:"count"`
	Limit     int      `json:"limit,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
	Status    string   `json:"status,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// APIErrorResponse is the body of every failed request.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the client-visible part of an error.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// OK writes data in an Envelope with status 200.
func OK(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, r, http.StatusOK, Envelope{Data: data})
}

// List writes items with their ListMeta. A nil slice is written as [] and
// Count is always taken from items. When meta.Limit is set, Truncated is
// derived from whether the store returned a full page.
func List[T any](w http.ResponseWriter, r *http.Request, items []T, meta ListMeta) {
	if items == nil {
		items = []T{}
	}
	meta.Count = len(items)
	if meta.Limit > 0 && meta.Count >= meta.Limit {
		meta.Truncated = true
	}
	JSON(w, r, http.StatusOK, Envelope{Data: items, Meta: &meta})
}

// JSON marshals v and writes it with status. A value that cannot be
// marshalled is replaced by a 500 internal_unexpected_error body.
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = writeJSON(w, internalError(r))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as an APIErrorResponse. An *types.AppError anywhere in the
// chain supplies the code, message and status; anything else becomes a 500
// with a generic message. Wrapped causes are never written to the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		if logger := types.LoggerFromContext(r.Context()); logger != nil {
			logger.Error("unhandled request error", "error", err, "request_id", types.GetRequestID(r.Context()))
		}
		JSON(w, r, http.StatusInternalServerError, internalError(r))
		return
	}

	JSON(w, r, appErr.HTTPStatus(), APIErrorResponse{Error: ErrorDetail{
		Code:      string(appErr.Code),
		Message:   appErr.Message,
		Details:   appErr.Details,
		RequestID: types.GetRequestID(r.Context()),
	}})
}

func internalError(r *http.Request) APIErrorResponse {
	return APIErrorResponse{Error: ErrorDetail{
		Code:      string(types.ErrCodeInternalUnexpected),
		Message:   "an unexpected error occurred",
		RequestID: types.GetRequestID(r.Context()),
	}}
}

// DecodeJSON reads a single JSON object from the request body into dst.
// Bodies over 1 MB, unknown fields, empty bodies and trailing values are
// rejected with a validation_invalid_request_body error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return bodyError(err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidationInvalidBody,
			"request body must contain a single JSON object", nil)
	}
	return nil
}

// bodyError maps a decoder failure to a client-facing message.
func bodyError(err error) *types.AppError {
	var (
		tooLarge *http.MaxBytesError
		syntax   *json.SyntaxError
		mismatch *json.UnmarshalTypeError
	)
	msg := "invalid JSON in request body"
	var details map[string]any

	switch {
	case errors.As(err, &tooLarge):
		msg = "request body must not exceed 1MB"
	case errors.As(err, &syntax):
		msg = "malformed JSON in request body"
	case errors.As(err, &mismatch):
		msg = "invalid value for field"
		details = map[string]any{"field": mismatch.Field, "expected": mismatch.Type.String()}
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		msg = "unknown field in request body: " + strings.TrimPrefix(err.Error(), "json: unknown field ")
	case errors.Is(err, io.EOF):
		msg = "request body must not be empty"
	}

	appErr := types.NewAppError(types.ErrCodeValidationInvalidBody, msg, err)
	if details != nil {
		appErr = appErr.WithDetails(details)
	}
	return appErr
}
