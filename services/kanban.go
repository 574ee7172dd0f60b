package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/CrowderSoup/admin-panel/database"
	"github.com/CrowderSoup/admin-panel/kanban"
)

// KanbanStore is the persistence the board needs. *database.DataService
// implements it.
type KanbanStore interface {
	ListProjects(ctx context.Context, includeArchived bool) ([]kanban.Project, error)
	GetProject(ctx context.Context, id int64) (kanban.Project, error)
	CreateProject(ctx context.Context, name string) (kanban.Project, error)
	UpdateProject(ctx context.Context, id int64, name, description string) error
	SetProjectLogo(ctx context.Context, id int64, logoPath string) error
	ArchiveProject(ctx context.Context, id int64) error
	DeleteProjectPermanently(ctx context.Context, id int64) error

	ListSections(ctx context.Context, projectID int64) ([]kanban.Section, error)
	SectionsByIDs(ctx context.Context, ids []int64) ([]kanban.Section, error)
	GetSection(ctx context.Context, id int64) (kanban.Section, error)
	SectionNameTaken(ctx context.Context, projectID int64, name string, excludeID int64) (bool, error)
	CreateSection(ctx context.Context, sec kanban.Section) (kanban.Section, error)
	UpdateSection(ctx context.Context, sec kanban.Section) error
	ArchiveSection(ctx context.Context, id int64) error

	ListCards(ctx context.Context) ([]kanban.StoredCard, error)
	GetCard(ctx context.Context, id int64) (kanban.StoredCard, error)
	CreateCard(ctx context.Context, c database.NewCard) (int64, error)
	UpdateCard(ctx context.Context, id int64, u database.CardUpdate) error
	SetCardSections(ctx context.Context, id int64, secs []kanban.Section) error
	ApplyPlacement(ctx context.Context, p kanban.Placement) error
	DeleteCard(ctx context.Context, id int64) error

	SupportsSectionIDs() bool
	EnsureSectionIDsColumn(ctx context.Context) error
}

// SectionInput carries the editable fields of a section.
type SectionInput struct {
	ProjectID int64
	Name      string
	Color     string
	Icon      string
}

// CardInput is a create or full update of a card. On update a nil (or zero)
// ProjectID makes the card projectless.
type CardInput struct {
	Title      string
	Notes      string
	ProjectID  *int64
	Board      string
	Status     string
	DueAt      *time.Time
	Priority   *int
	Labels     []string
	SectionIDs []int64
}

// MoveInput places a card in a container. SectionIDs nil leaves the card's
// sections to the move rules; a non-nil list replaces them afterwards.
type MoveInput struct {
	kanban.MoveRequest
	SectionIDs []int64
}

type KanbanService struct {
	store    KanbanStore
	autoHeal bool
}

func NewKanbanService(store KanbanStore, autoHeal bool) *KanbanService {
	return &KanbanService{store: store, autoHeal: autoHeal}
}

// State returns the full board: active projects, active sections and every
// card annotated with its resolved sections.
func (s *KanbanService) State(ctx context.Context) (kanban.State, error) {
	projects, err := s.store.ListProjects(ctx, false)
	if err != nil {
		return kanban.State{}, err
	}
	sections, err := s.store.ListSections(ctx, 0)
	if err != nil {
		return kanban.State{}, err
	}
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return kanban.State{}, err
	}
	return kanban.BuildState(projects, sections, cards), nil
}

func (s *KanbanService) Card(ctx context.Context, id int64) (kanban.CardView, error) {
	stored, err := s.store.GetCard(ctx, id)
	if err != nil {
		return kanban.CardView{}, err
	}
	projects, err := s.store.ListProjects(ctx, false)
	if err != nil {
		return kanban.CardView{}, err
	}
	sections, err := s.store.ListSections(ctx, 0)
	if err != nil {
		return kanban.CardView{}, err
	}
	card := kanban.NewResolver(sections).ResolveCards([]kanban.StoredCard{stored})[0]
	names := lo.SliceToMap(projects, func(p kanban.Project) (int64, string) { return p.ID, p.Name })
	return kanban.NewCardView(card, names), nil
}

// Projects

func (s *KanbanService) CreateProject(ctx context.Context, name string) (kanban.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return kanban.Project{}, fmt.Errorf("%w: project name is required", kanban.ErrValidation)
	}
	return s.store.CreateProject(ctx, name)
}

func (s *KanbanService) UpdateProject(ctx context.Context, id int64, name, description string) error {
	name = strings.TrimSpace(name)
	if id <= 0 || name == "" {
		return fmt.Errorf("%w: project id and name are required", kanban.ErrValidation)
	}
	return s.store.UpdateProject(ctx, id, name, strings.TrimSpace(description))
}

func (s *KanbanService) SetProjectLogo(ctx context.Context, id int64, logoPath string) error {
	return s.store.SetProjectLogo(ctx, id, logoPath)
}

func (s *KanbanService) Project(ctx context.Context, id int64) (kanban.Project, error) {
	return s.store.GetProject(ctx, id)
}

func (s *KanbanService) ArchiveProject(ctx context.Context, id int64) error {
	return s.store.ArchiveProject(ctx, id)
}

func (s *KanbanService) DeleteProjectPermanently(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: project id is required", kanban.ErrValidation)
	}
	return s.store.DeleteProjectPermanently(ctx, id)
}

// Sections

func (s *KanbanService) ListSections(ctx context.Context, projectID int64) ([]kanban.Section, error) {
	return s.store.ListSections(ctx, projectID)
}

func (s *KanbanService) CreateSection(ctx context.Context, in SectionInput) (kanban.Section, error) {
	in = normalizeSection(in)
	if in.ProjectID <= 0 || in.Name == "" {
		return kanban.Section{}, fmt.Errorf("%w: project id and section name are required", kanban.ErrValidation)
	}
	if _, err := s.store.GetProject(ctx, in.ProjectID); err != nil {
		return kanban.Section{}, err
	}
	taken, err := s.store.SectionNameTaken(ctx, in.ProjectID, in.Name, 0)
	if err != nil {
		return kanban.Section{}, err
	}
	if taken {
		return kanban.Section{}, fmt.Errorf("%w: %q", kanban.ErrDuplicateName, in.Name)
	}
	return s.store.CreateSection(ctx, kanban.Section{
		ProjectID: in.ProjectID,
		Name:      in.Name,
		Color:     in.Color,
		Icon:      in.Icon,
	})
}

func (s *KanbanService) UpdateSection(ctx context.Context, id int64, in SectionInput) (kanban.Section, error) {
	in = normalizeSection(in)
	if id <= 0 || in.Name == "" {
		return kanban.Section{}, fmt.Errorf("%w: section id and name are required", kanban.ErrValidation)
	}
	sec, err := s.store.GetSection(ctx, id)
	if err != nil {
		return kanban.Section{}, err
	}
	taken, err := s.store.SectionNameTaken(ctx, sec.ProjectID, in.Name, id)
	if err != nil {
		return kanban.Section{}, err
	}
	if taken {
		return kanban.Section{}, fmt.Errorf("%w: %q", kanban.ErrDuplicateName, in.Name)
	}
	sec.Name, sec.Color, sec.Icon = in.Name, in.Color, in.Icon
	if err := s.store.UpdateSection(ctx, sec); err != nil {
		return kanban.Section{}, err
	}
	return sec, nil
}

func (s *KanbanService) ArchiveSection(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: section id is required", kanban.ErrValidation)
	}
	return s.store.ArchiveSection(ctx, id)
}

func normalizeSection(in SectionInput) SectionInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	in.Icon = strings.TrimSpace(in.Icon)
	if in.Color == "" {
		in.Color = kanban.DefaultSectionColor
	}
	if in.Icon == "" {
		in.Icon = kanban.DefaultSectionIcon
	}
	return in
}

// Cards

// CreateCard validates and inserts a card at the end of its container.
// Nothing is written when any section fails validation.
func (s *KanbanService) CreateCard(ctx context.Context, in CardInput) (kanban.CardView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return kanban.CardView{}, fmt.Errorf("%w: title is required", kanban.ErrValidation)
	}
	board := kanban.BoardIdeas
	if in.Board != "" {
		b, err := kanban.ParseBoard(in.Board)
		if err != nil {
			return kanban.CardView{}, err
		}
		board = b
	}
	status, err := kanban.NormalizeStatus(board, in.Status)
	if err != nil {
		return kanban.CardView{}, err
	}
	if err := kanban.ValidatePriority(in.Priority); err != nil {
		return kanban.CardView{}, err
	}
	projectID, err := s.targetProject(ctx, in.ProjectID)
	if err != nil {
		return kanban.CardView{}, err
	}
	sections, err := s.validateSections(ctx, projectID, in.SectionIDs)
	if err != nil {
		return kanban.CardView{}, err
	}

	stored, err := s.store.ListCards(ctx)
	if err != nil {
		return kanban.CardView{}, err
	}
	card := kanban.Card{ProjectID: projectID, Board: board, Status: status}
	sort := kanban.NextSort(kanban.ContainerKeyOf(card), plainCards(stored))

	id, err := s.store.CreateCard(ctx, database.NewCard{
		Title:     title,
		Notes:     in.Notes,
		ProjectID: projectID,
		Board:     board,
		Status:    status,
		Sort:      sort,
		DueAt:     in.DueAt,
		Priority:  in.Priority,
		Labels:    cleanLabels(in.Labels),
		Sections:  sections,
	})
	if err != nil {
		return kanban.CardView{}, err
	}
	log.Info().Int64("card_id", id).Str("board", string(board)).Msg("Card created")
	return s.Card(ctx, id)
}

// UpdateCard replaces the editable fields of a card. Board and status are
// not editable here. A project change goes
// through the move protocol first (card appended to its new container,
// sections cleared) and the requested sections are written afterwards.
func (s *KanbanService) UpdateCard(ctx context.Context, id int64, in CardInput) (kanban.CardView, error) {
	title := strings.TrimSpace(in.Title)
	if id <= 0 || title == "" {
		return kanban.CardView{}, fmt.Errorf("%w: card id and title are required", kanban.ErrValidation)
	}
	if err := kanban.ValidatePriority(in.Priority); err != nil {
		return kanban.CardView{}, err
	}
	current, err := s.store.GetCard(ctx, id)
	if err != nil {
		return kanban.CardView{}, err
	}
	// Board and status may be echoed back unchanged; changing them is a move.
	if in.Board != "" && kanban.Board(in.Board) != current.Board {
		return kanban.CardView{}, fmt.Errorf("%w: board %q cannot change on update, use move", kanban.ErrValidation, in.Board)
	}
	if in.Status != "" && in.Status != current.Status {
		return kanban.CardView{}, fmt.Errorf("%w: status %q cannot change on update, use move", kanban.ErrValidation, in.Status)
	}
	projectID, err := s.targetProject(ctx, in.ProjectID)
	if err != nil {
		return kanban.CardView{}, err
	}
	sections, err := s.validateSections(ctx, projectID, in.SectionIDs)
	if err != nil {
		return kanban.CardView{}, err
	}

	if !kanban.SameProject(current.ProjectID, projectID) {
		target := lo.FromPtr(projectID)
		err := s.applyMove(ctx, kanban.MoveRequest{
			CardID:    id,
			Board:     current.Board,
			Status:    current.Status,
			ProjectID: &target,
		})
		if err != nil {
			return kanban.CardView{}, err
		}
	}

	err = s.store.UpdateCard(ctx, id, database.CardUpdate{
		Title:    title,
		Notes:    in.Notes,
		DueAt:    in.DueAt,
		Priority: in.Priority,
		Labels:   cleanLabels(in.Labels),
		Sections: sections,
	})
	if err != nil {
		return kanban.CardView{}, err
	}
	return s.Card(ctx, id)
}

// Move places a card in a container and rewrites the sort of every card in
// the destination and then the source container. Writes are sequential and
// not rolled back; order is always re-derived from (sort, id) on read.
func (s *KanbanService) Move(ctx context.Context, in MoveInput) (kanban.CardView, error) {
	if in.CardID <= 0 {
		return kanban.CardView{}, fmt.Errorf("%w: card id is required", kanban.ErrValidation)
	}
	current, err := s.store.GetCard(ctx, in.CardID)
	if err != nil {
		return kanban.CardView{}, err
	}

	projectID := current.ProjectID
	if in.ProjectID != nil {
		if projectID, err = s.targetProject(ctx, in.ProjectID); err != nil {
			return kanban.CardView{}, err
		}
	}
	var sections []kanban.Section
	if in.SectionIDs != nil {
		if sections, err = s.validateSections(ctx, projectID, in.SectionIDs); err != nil {
			return kanban.CardView{}, err
		}
	}

	if err := s.applyMove(ctx, in.MoveRequest); err != nil {
		return kanban.CardView{}, err
	}
	if in.SectionIDs != nil {
		if err := s.store.SetCardSections(ctx, in.CardID, sections); err != nil {
			return kanban.CardView{}, err
		}
	}
	return s.Card(ctx, in.CardID)
}

func (s *KanbanService) applyMove(ctx context.Context, req kanban.MoveRequest) error {
	stored, err := s.store.ListCards(ctx)
	if err != nil {
		return err
	}
	plan, err := kanban.PlanMove(plainCards(stored), req)
	if err != nil {
		return err
	}
	for _, p := range plan.Writes() {
		if err := s.store.ApplyPlacement(ctx, p); err != nil {
			log.Error().Err(err).Int64("card_id", req.CardID).Int64("placed", p.CardID).
				Msg("Move interrupted, container order will self-heal on next rewrite")
			return err
		}
	}
	log.Info().
		Int64("card_id", req.CardID).
		Str("from", plan.From.String()).
		Str("to", plan.To.String()).
		Bool("project_changed", plan.ProjectChanged).
		Int("writes", len(plan.Destination)+len(plan.Source)).
		Msg("Card moved")
	return nil
}

func (s *KanbanService) DeleteCard(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: card id is required", kanban.ErrValidation)
	}
	return s.store.DeleteCard(ctx, id)
}

// targetProject resolves a requested project: nil or 0 means none, anything
// else must be an active project.
func (s *KanbanService) targetProject(ctx context.Context, id *int64) (*int64, error) {
	if id == nil || *id == 0 {
		return nil, nil
	}
	if *id < 0 {
		return nil, fmt.Errorf("%w: project id %d", kanban.ErrValidation, *id)
	}
	p, err := s.store.GetProject(ctx, *id)
	if err != nil {
		return nil, err
	}
	return &p.ID, nil
}

// validateSections checks ids against the target project and makes sure the
// schema can store the result.
func (s *KanbanService) validateSections(ctx context.Context, projectID *int64, ids []int64) ([]kanban.Section, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	known, err := s.store.SectionsByIDs(ctx, lo.Filter(ids, func(id int64, _ int) bool { return id > 0 }))
	if err != nil {
		return nil, err
	}
	sections, err := kanban.ValidateSections(projectID, ids, known)
	if err != nil {
		return nil, err
	}
	if len(sections) > 1 {
		if err := s.ensureMultiSection(ctx); err != nil {
			return nil, err
		}
	}
	return sections, nil
}

func (s *KanbanService) ensureMultiSection(ctx context.Context) error {
	if s.store.SupportsSectionIDs() {
		return nil
	}
	if !s.autoHeal {
		return fmt.Errorf("%w: run the migrate command to add section_ids_json", kanban.ErrSchemaCapabilityMissing)
	}
	return s.store.EnsureSectionIDsColumn(ctx)
}

func plainCards(stored []kanban.StoredCard) []kanban.Card {
	return lo.Map(stored, func(sc kanban.StoredCard, _ int) kanban.Card { return sc.Card })
}

func cleanLabels(labels []string) []string {
	trimmed := lo.Map(labels, func(l string, _ int) string { return strings.TrimSpace(l) })
	return lo.Uniq(lo.Compact(trimmed))
}
