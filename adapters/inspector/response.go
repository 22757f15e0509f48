package inspector

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Error is one entry of an error response, in the JSON:API error shape.
type Error struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Errors []Error `json:"errors"`
}

func newError(status int, code, title, detail string) Error {
	return Error{Status: strconv.Itoa(status), Code: code, Title: title, Detail: detail}
}

func errBadRequest(detail string) Error {
	return newError(http.StatusBadRequest, "bad_request", "Bad Request", detail)
}

func errNotFound(detail string) Error {
	return newError(http.StatusNotFound, "not_found", "Not Found", detail)
}

func errConflict(detail string) Error {
	return newError(http.StatusConflict, "stopped", "Conflict", detail)
}

func errUnprocessable(detail string) Error {
	return newError(http.StatusUnprocessableEntity, "interaction_failed", "Unprocessable Entity", detail)
}

func errInternal(detail string) Error {
	return newError(http.StatusInternalServerError, "internal_error", "Internal Server Error", detail)
}

func writeError(w http.ResponseWriter, e Error) {
	status, err := strconv.Atoi(e.Status)
	if err != nil || status == 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, ErrorResponse{Errors: []Error{e}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
