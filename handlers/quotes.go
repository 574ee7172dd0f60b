package handlers

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/CrowderSoup/admin-panel/services"
)

// QuoteHandler serves quotes and their PDFs
type QuoteHandler struct {
	quotes *services.QuoteStore
	hub    *services.Hub
}

func NewQuoteHandler(quotes *services.QuoteStore, hub *services.Hub) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, hub: hub}
}

func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.quotes.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"items": items})
}

func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.QuoteInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid request format")
		return
	}
	var username string
	if sess, ok := sessionFrom(r.Context()); ok {
		username = sess.Username
	}
	q, err := h.quotes.Create(in, username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.hub.Notify(services.EventQuotesChanged)
	writeOK(w, map[string]any{"quote": q})
}

func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	q, err := h.quotes.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"quote": q})
}

func (h *QuoteHandler) PDF(w http.ResponseWriter, r *http.Request) {
	q, err := h.quotes.Get(mux.Vars(r)["id"])
	if err != nil {
		writePlainError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := services.RenderQuotePDF(&buf, q, time.Now()); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+services.PDFFilename(q)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}
