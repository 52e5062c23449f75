package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"chatbot-backend/internal/usecase"
)

var validate = validator.New()

type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps a usecase error onto the HTTP status taxonomy. Internal
// details stay in the logs; clients get the code and a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := usecase.CodeOf(err)
	status := statusForCode(code)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "code", string(code), "error", err)
	} else {
		slog.WarnContext(r.Context(), "request rejected",
			"method", r.Method, "path", r.URL.Path, "code", string(code))
	}
	writeJSON(w, status, errorBody{Error: http.StatusText(status), Code: string(code)})
}

func statusForCode(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorForbidden:
		return http.StatusForbidden
	case usecase.ErrorAlreadyExists, usecase.ErrorConflict:
		return http.StatusConflict
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	case usecase.ErrorUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody parses and validates a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "bad_json", Err: err}
	}
	if err := validate.Struct(dst); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "validation", Err: verr}
		}
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "validation", Err: err}
	}
	return nil
}

// requesterID identifies the end user a trusted caller is acting for.
// Authentication of the caller itself happens in the auth middleware.
func requesterID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}
