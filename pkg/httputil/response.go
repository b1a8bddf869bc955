package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aravindb26/middleware-sub022/pkg/resource"
)

// ErrorResponse is the JSON shape of every error response. Kind carries
// the machine-readable validation kind when applicable.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteInternalError writes an internal server error response (500)
func WriteInternalError(w http.ResponseWriter) {
	WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteDomainError maps domain errors to HTTP status codes: validation
// failures become 400 with their kind, missing entities 404, ambiguous
// lookups 409, and everything else 500 without leaking detail.
func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *resource.ValidationError
	if errors.As(err, &verr) {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Message, Kind: string(verr.Kind)})
		return
	}
	if resource.IsNotFound(err) {
		WriteErrorMessage(w, http.StatusNotFound, err.Error())
		return
	}
	if resource.IsConflict(err) {
		WriteErrorMessage(w, http.StatusConflict, err.Error())
		return
	}
	WriteInternalError(w)
}
