package handler

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/binder"
)

// ErrorBody is the envelope of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithJSONStatus overrides the status code.
func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) { r.status = status }
}

// JSON renders v as the response body with status 200.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: v}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err inside the error envelope. The status follows
// Classify.
func JSONError(err error, opts ...JSONOption) Response {
	status, detail := Classify(err)
	r := &jsonResponse{status: status, body: ErrorBody{Error: detail}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Classify maps an error onto a status code and the detail shown to the
// client. Unknown errors become an opaque 500.
func Classify(err error) (int, ErrorDetail) {
	var verr ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity, ErrorDetail{
			Code: ErrUnprocessableEntity.Key, Message: "Validation failed", Details: maps.Clone(map[string][]string(verr)),
		}
	}

	if fields := binder.FieldErrors(err); fields != nil {
		return http.StatusUnprocessableEntity, ErrorDetail{
			Code: ErrUnprocessableEntity.Key, Message: "Validation failed", Details: fields,
		}
	}

	var herr HTTPError
	if errors.As(err, &herr) {
		msg := herr.Message
		if msg == "" {
			msg = http.StatusText(herr.Code)
		}
		return herr.Code, ErrorDetail{Code: herr.Key, Message: msg}
	}

	switch {
	case errors.Is(err, binder.ErrMissingContentType), errors.Is(err, binder.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, ErrorDetail{Code: ErrUnsupportedMediaType.Key, Message: "Expected application/json"}
	case errors.Is(err, binder.ErrFailedToParseJSON), errors.Is(err, binder.ErrFailedToParsePath):
		return http.StatusBadRequest, ErrorDetail{Code: ErrBadRequest.Key, Message: "Malformed request"}
	}

	return http.StatusInternalServerError, ErrorDetail{Code: ErrInternalServerError.Key, Message: "An error occurred processing your request"}
}
