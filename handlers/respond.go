package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/CrowderSoup/admin-panel/kanban"
	"github.com/CrowderSoup/admin-panel/services"
)

type errorBody struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{kanban.ErrNotFound, http.StatusNotFound, "not_found"},
	{kanban.ErrDuplicateName, http.StatusConflict, "duplicate_section_name"},
	{kanban.ErrSectionProjectMismatch, http.StatusBadRequest, "section_project_mismatch"},
	{kanban.ErrValidation, http.StatusBadRequest, "validation_error"},
	{kanban.ErrSchemaCapabilityMissing, http.StatusConflict, "schema_capability_missing"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{services.ErrBadName, http.StatusBadRequest, "bad_name"},
	{services.ErrFileNotFound, http.StatusNotFound, "not_found"},
	{services.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},
	{services.ErrUnsupportedMedia, http.StatusUnsupportedMediaType, "unsupported"},
	{services.ErrMissingCustomer, http.StatusBadRequest, "missing_customer"},
	{services.ErrQuoteNotFound, http.StatusNotFound, "not_found"},
}

// classify maps an error to its HTTP status and stable error code.
func classify(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "server_error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// writeError reports err as the JSON error envelope. Server errors are logged
// and their message is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	body := errorBody{Error: code, Message: err.Error()}
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		body.Message = ""
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation_error", Message: message})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
