package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/CrowderSoup/admin-panel/services"
)

// AuditRecorder appends audit log rows.
type AuditRecorder interface {
	RecordAudit(ctx context.Context, userID *int64, action string, detail any, ip string) error
}

// UploadHandler serves the file inventory
type UploadHandler struct {
	uploads *services.UploadStore
	audit   AuditRecorder
	hub     *services.Hub
}

func NewUploadHandler(uploads *services.UploadStore, audit AuditRecorder, hub *services.Hub) *UploadHandler {
	return &UploadHandler{
		uploads: uploads,
		audit:   audit,
		hub:     hub,
	}
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Multipart overhead on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxBytes()+1<<20)
	reader, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "no_file"})
		return
	}
	for {
		part, err := reader.NextPart()
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, r, services.ErrFileTooLarge)
				return
			}
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "no_file"})
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}

		item, err := h.uploads.Save(part.FileName(), part)
		part.Close()
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = services.ErrFileTooLarge
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.record(r, "upload", []map[string]any{{"name": item.Name, "size": item.Size}})
		h.hub.Notify(services.EventUploadsChanged)
		writeOK(w, map[string]any{"file": map[string]any{"name": item.Name, "size": item.Size}})
		return
	}
}

func (h *UploadHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.uploads.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"items": items})
}

func (h *UploadHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	full, info, err := h.uploads.Open(name)
	if err != nil {
		writePlainError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(name, `"`, "")+`"`)
	http.ServeFile(w, r, full)
}

func (h *UploadHandler) View(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	full, info, err := h.uploads.Open(name)
	if err != nil {
		writePlainError(w, err)
		return
	}
	mode, contentType, err := services.ViewModeOf(name, info.Size())
	if err != nil {
		writePlainError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", contentType)
	if mode == services.ViewInline {
		w.Header().Set("Content-Disposition", `inline; filename="`+strings.ReplaceAll(name, `"`, "")+`"`)
		http.ServeFile(w, r, full)
		return
	}
	text, err := services.ReadTextPreview(full)
	if err != nil {
		writePlainError(w, services.ErrFileNotFound)
		return
	}
	w.Write(text)
}

func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing"})
		return
	}
	size, err := h.uploads.Delete(req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record(r, "delete", map[string]any{"name": req.Name, "size": size})
	h.hub.Notify(services.EventUploadsChanged)
	writeOK(w, nil)
}

// record writes an audit row. Failures are logged and never fail the request.
func (h *UploadHandler) record(r *http.Request, action string, detail any) {
	var userID *int64
	if sess, ok := sessionFrom(r.Context()); ok {
		userID = &sess.UserID
	}
	if err := h.audit.RecordAudit(r.Context(), userID, action, detail, clientIP(r)); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("action", action).Msg("Audit entry not recorded")
	}
}

// writePlainError answers file endpoints with a plain status and code, since
// browsers open them directly.
func writePlainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if errors.Is(err, os.ErrNotExist) {
		status, code = http.StatusNotFound, "not_found"
	}
	http.Error(w, code, status)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
