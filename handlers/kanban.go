package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/rs/zerolog/hlog"
	"github.com/samber/lo"

	"github.com/CrowderSoup/admin-panel/kanban"
	"github.com/CrowderSoup/admin-panel/services"
)

const maxLogoForm = 13 << 20

// KanbanHandler serves the board, its projects, cards and sections
type KanbanHandler struct {
	kanban *services.KanbanService
	logos  *services.LogoStore
	hub    *services.Hub
}

func NewKanbanHandler(kanbanService *services.KanbanService, logos *services.LogoStore, hub *services.Hub) *KanbanHandler {
	return &KanbanHandler{
		kanban: kanbanService,
		logos:  logos,
		hub:    hub,
	}
}

type cardRequest struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Notes      string   `json:"notes"`
	ProjectID  *int64   `json:"project_id"`
	Board      string   `json:"board"`
	Status     string   `json:"status"`
	DueAt      *string  `json:"due_at"`
	Priority   *int     `json:"priority"`
	Labels     []string `json:"labels"`
	SectionID  *int64   `json:"section_id"`
	SectionIDs []int64  `json:"section_ids"`
}

// input merges section_id into section_ids the way older clients send it.
func (req cardRequest) input() (services.CardInput, error) {
	in := services.CardInput{
		Title:      req.Title,
		Notes:      req.Notes,
		ProjectID:  req.ProjectID,
		Board:      req.Board,
		Status:     req.Status,
		Priority:   req.Priority,
		Labels:     req.Labels,
		SectionIDs: req.SectionIDs,
	}
	if req.SectionID != nil && *req.SectionID != 0 {
		in.SectionIDs = lo.Uniq(append(in.SectionIDs, *req.SectionID))
	}
	if req.DueAt != nil && *req.DueAt != "" {
		due, err := time.Parse(time.RFC3339, *req.DueAt)
		if err != nil {
			return in, fmt.Errorf("%w: due_at must be RFC 3339", kanban.ErrValidation)
		}
		in.DueAt = &due
	}
	return in, nil
}

type moveRequest struct {
	ID        int64  `json:"id"`
	Board     string `json:"board"`
	Status    string `json:"status"`
	Container string `json:"container"`
	ProjectID *int64 `json:"project_id"`
	// Sort is the target index within the destination container.
	Sort       *int     `json:"sort"`
	SectionIDs *[]int64 `json:"section_ids"`
}

func (req moveRequest) input() (services.MoveInput, error) {
	in := services.MoveInput{MoveRequest: kanban.MoveRequest{
		CardID:    req.ID,
		Board:     kanban.Board(req.Board),
		Status:    req.Status,
		ProjectID: req.ProjectID,
		Index:     req.Sort,
	}}
	if req.Container != "" {
		key, err := kanban.ParseContainerID(req.Container)
		if err != nil {
			return in, err
		}
		in.Board, in.Status = key.Board, key.Status
		if key.Board != kanban.BoardKanban {
			in.ProjectID = &key.ProjectID
		}
	}
	if req.SectionIDs != nil {
		in.SectionIDs = lo.Ternary(*req.SectionIDs == nil, []int64{}, *req.SectionIDs)
	}
	return in, nil
}

func (h *KanbanHandler) changed() {
	h.hub.Notify(services.EventKanbanChanged)
}

func (h *KanbanHandler) State(w http.ResponseWriter, r *http.Request) {
	state, err := h.kanban.State(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"projects": state.Projects, "sections": state.Sections, "cards": state.Cards})
}

func (h *KanbanHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request format")
		return
	}
	p, err := h.kanban.CreateProject(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.changed()
	writeOK(w, map[string]any{"project": p})
}

func (h *KanbanHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request format")
		return
	}
	if err := h.kanban.UpdateProject(r.Context(), req.ID, req.Name, req.Description); err != nil {
		writeError(w, r, err)
		return
	}
	h.changed()
	writeOK(w, nil)
}

func (h *KanbanHandler) ArchiveProject(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(w, r, "id")
	if !ok {
		return
	}
	if err := h.kanban.ArchiveProject(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.changed()
	writeOK(w, nil)
}

func (h *KanbanHandler) DeleteProjectPermanently(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(w, r, "id")
	if !ok {
		return
	}
	if err := h.kanban.DeleteProjectPermanently(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.changed()
	writeOK(w, nil)
}

func (h *KanbanHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLogoForm)
	if err := r.ParseMultipartForm(maxLogoForm); err != nil {
		badRequest(w, "expected a multipart form with a logo")
		return
	}
	id, err := strconv.ParseInt(r.FormValue("project_id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "project_id is required")
		return
	}
	file, _, err := r.FormFile("logo")
	if err != nil {
		badRequest(w, "logo is required")
		return
	}
	defer file.Close()

	if _, err := h.kanban.Project(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	rel, err := h.logos.Save(id, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.kanban.SetProjectLogo(r.Context(), id, rel); err != nil {
		writeError(w, r, err)
		return
	}
	h.changed()
	writeOK(w, map[string]any{"filename": path.Base(rel), "path": rel})
}

func (h *KanbanHandler) Logo(w http.ResponseWriter, r *http.Request) {
	f, contentType, err := h.logos.Open(r.URL.Query().Get("name"))
	if err != nil {
		status, _ := classify(err)
		w.WriteHeader(status)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	if _, err := io.Copy(w, f); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Logo transfer interrupted")
	}
}

func (h *KanbanHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request format")
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	card, err := h.kanban.CreateCard(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.changed()
	writeOK(w, map[string]any{"card": card})
}

func (h *KanbanHandler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request format")
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	card, err := h.kanban.UpdateCard(r.Context(), req.ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.changed()
	writeOK(w, map[string]any{"card": card})
}

func (h *KanbanHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request format")
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	card, err := h.kanban.Move(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.changed()
	writeOK(w, map[string]any{"card": card})
}

func (h *KanbanHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(w, r, "id")
	if !ok {
		return
	}
	if err := h.kanban.DeleteCard(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.changed()
	writeOK(w, nil)
}

func (h *KanbanHandler) ListSections(w http.ResponseWriter, r *http.Request) {
	var projectID int64
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			badRequest(w, "project_id must be a positive integer")
			return
		}
		projectID = id
	}
	sections, err := h.kanban.ListSections(r.Context(), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"sections": sections})
}

type sectionRequest struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Icon      string `json:"icon"`
}

func (req sectionRequest) input() services.SectionInput {
	return services.SectionInput{ProjectID: req.ProjectID, Name: req.Name, Color: req.Color, Icon: req.Icon}
}

func (h *KanbanHandler) CreateSection(w http.ResponseWriter, r *http.Request) {
	var req sectionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request format")
		return
	}
	sec, err := h.kanban.CreateSection(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.changed()
	writeOK(w, map[string]any{"section": sec})
}

func (h *KanbanHandler) UpdateSection(w http.ResponseWriter, r *http.Request) {
	var req sectionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request format")
		return
	}
	sec, err := h.kanban.UpdateSection(r.Context(), req.ID, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.changed()
	writeOK(w, map[string]any{"section": sec})
}

func (h *KanbanHandler) ArchiveSection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request format")
		return
	}
	if err := h.kanban.ArchiveSection(r.Context(), req.ID); err != nil {
		writeError(w, r, err)
		return
	}
	h.changed()
	writeOK(w, nil)
}

func queryID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, key+" must be a positive integer")
		return 0, false
	}
	return id, true
}
