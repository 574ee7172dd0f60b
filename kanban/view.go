package kanban

import (
	"cmp"
	"slices"
	"time"

	"github.com/samber/lo"
)

// SectionRefView is the compact section object attached to cards.
type SectionRefView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// CardView is the read contract for one card. section_id/section_name and
// friends describe the primary section for clients that predate
// multi-section cards.
type CardView struct {
	ID           int64            `json:"id"`
	Title        string           `json:"title"`
	Notes        string           `json:"notes"`
	ProjectID    *int64           `json:"project_id"`
	ProjectName  *string          `json:"project_name"`
	Board        Board            `json:"board"`
	Status       string           `json:"status"`
	Sort         int              `json:"sort"`
	DueAt        *string          `json:"due_at"`
	SectionID    *int64           `json:"section_id"`
	SectionName  *string          `json:"section_name"`
	SectionColor *string          `json:"section_color"`
	SectionIcon  *string          `json:"section_icon"`
	SectionIDs   []int64          `json:"section_ids"`
	Sections     []SectionRefView `json:"sections"`
	Priority     *int             `json:"priority"`
	Labels       []string         `json:"labels"`
}

// State is the full board state returned on every fetch.
type State struct {
	Projects []Project  `json:"projects"`
	Sections []Section  `json:"sections"`
	Cards    []CardView `json:"cards"`
}

// BuildState resolves cards against sections and annotates them for display.
// Archived projects and sections are left out; cards are ordered by board,
// status, sort and id.
func BuildState(projects []Project, sections []Section, stored []StoredCard) State {
	projects = lo.Reject(projects, func(p Project, _ int) bool { return p.Archived })
	sections = lo.Reject(sections, func(s Section, _ int) bool { return s.Archived })
	names := lo.SliceToMap(projects, func(p Project) (int64, string) { return p.ID, p.Name })

	cards := NewResolver(sections).ResolveCards(stored)
	slices.SortStableFunc(cards, func(a, b Card) int {
		if c := cmp.Compare(a.Board, b.Board); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Status, b.Status); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Sort, b.Sort); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	views := make([]CardView, len(cards))
	for i, c := range cards {
		views[i] = NewCardView(c, names)
	}
	return State{
		Projects: lo.Ternary(projects == nil, []Project{}, projects),
		Sections: lo.Ternary(sections == nil, []Section{}, sections),
		Cards:    views,
	}
}

func NewCardView(c Card, projectNames map[int64]string) CardView {
	v := CardView{
		ID:         c.ID,
		Title:      c.Title,
		Notes:      c.Notes,
		ProjectID:  c.ProjectID,
		Board:      c.Board,
		Status:     c.Status,
		Sort:       c.Sort,
		Priority:   c.Priority,
		Labels:     lo.Ternary(c.Labels == nil, []string{}, c.Labels),
		SectionIDs: SectionIDs(c.Sections),
		Sections: lo.Map(c.Sections, func(s Section, _ int) SectionRefView {
			return SectionRefView{ID: s.ID, Name: s.Name, Color: s.Color, Icon: s.Icon}
		}),
	}
	if c.ProjectID != nil {
		if name, ok := projectNames[*c.ProjectID]; ok {
			v.ProjectName = &name
		}
	}
	if c.DueAt != nil {
		due := c.DueAt.UTC().Format(time.RFC3339)
		v.DueAt = &due
	}
	if p := Primary(c.Sections); p != nil {
		v.SectionID = &p.ID
		v.SectionName = &p.Name
		v.SectionColor = &p.Color
		v.SectionIcon = &p.Icon
	}
	return v
}
