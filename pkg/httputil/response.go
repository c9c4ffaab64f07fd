// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/meshfoundry/idhub/pkg/fault"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// WriteNotFound writes a not found error (404)
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteConflict writes a conflict error (409)
func WriteConflict(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusConflict, message)
}

// WriteInternalError writes an internal server error response (500)
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, err)
}

// WriteCreated writes a successful creation response (201) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteFault maps a provisioning or reconciliation error onto the
// corresponding HTTP status. Unclassified errors become a 500.
func WriteFault(w http.ResponseWriter, err error) {
	switch {
	case fault.IsValidation(err) || fault.IsRowFormat(err):
		WriteError(w, http.StatusBadRequest, err)
	case fault.IsUnauthorized(err):
		WriteError(w, http.StatusForbidden, err)
	case fault.IsNotFound(err):
		WriteError(w, http.StatusNotFound, err)
	case fault.IsConflict(err):
		WriteError(w, http.StatusConflict, err)
	case fault.IsExternalSystem(err):
		WriteError(w, http.StatusBadGateway, err)
	default:
		WriteInternalError(w, err)
	}
}
