package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/CrowderSoup/admin-panel/services"
)

// StatusHandler reports process and host health
type StatusHandler struct {
	started time.Time
	system  *services.SystemInfo
}

func NewStatusHandler(started time.Time, system *services.SystemInfo) *StatusHandler {
	return &StatusHandler{started: started, system: system}
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	host := h.system.Summary(r.Context())

	writeOK(w, map[string]any{
		"now":             time.Now().UTC().Format(time.RFC3339),
		"hostname":        host.Hostname,
		"uptime_sec":      int64(time.Since(h.started).Seconds()),
		"host_uptime_sec": host.UptimeSec,
		"load":            host.Load,
		"host_mem":        host.Memory,
		"goroutines":      runtime.NumGoroutine(),
		"mem": map[string]uint64{
			"alloc":      mem.Alloc,
			"sys":        mem.Sys,
			"heap_inuse": mem.HeapInuse,
			"num_gc":     uint64(mem.NumGC),
		},
	})
}

// Overview is the read-only host dashboard.
func (h *StatusHandler) Overview(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"overview": h.system.Overview(r.Context())})
}
