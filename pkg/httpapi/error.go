package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pactline/pactline/pkg/serrors"
)

// ErrorEnvelope standardizes JSON error responses for API namespaces.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}

// WriteDomainError maps a typed domain error onto the wire. Codes like
// TOKEN_EXPIRED and TOKEN_VERSION_MISMATCH stay distinguishable so public
// pages can tell an expired link from a superseded one.
func WriteDomainError(w http.ResponseWriter, err error) error {
	var base *serrors.BaseError
	if errors.As(err, &base) {
		return WriteError(w, serrors.HTTPStatus(base.Code), base.Code, base.Message, base.TemplateData)
	}
	return WriteError(w, http.StatusInternalServerError, serrors.CodeInternal, "internal error", nil)
}
