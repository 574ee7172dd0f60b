package kanban

import (
	"fmt"

	"github.com/samber/lo"
)

type projectName struct {
	projectID int64
	name      string
}

// Resolver turns stored section references into canonical section lists.
// Only non-archived sections are known to it.
type Resolver struct {
	byID   map[int64]Section
	byName map[projectName]Section
}

func NewResolver(sections []Section) *Resolver {
	r := &Resolver{
		byID:   make(map[int64]Section, len(sections)),
		byName: make(map[projectName]Section, len(sections)),
	}
	for _, s := range sections {
		if s.Archived {
			continue
		}
		r.byID[s.ID] = s
		key := projectName{s.ProjectID, nameKey(s.Name)}
		if _, dup := r.byName[key]; !dup {
			r.byName[key] = s
		}
	}
	return r
}

// Resolve returns the sections of a card in the given project. The first
// representation that yields a non-empty list wins: JSON ids, then legacy
// delimited names, then the legacy single id/name pair. A projectless card
// never has sections.
func (r *Resolver) Resolve(projectID *int64, raw RawSections) []Section {
	if projectID == nil {
		return nil
	}
	for _, ref := range raw.Refs() {
		if secs := r.resolveRef(*projectID, ref); len(secs) > 0 {
			return secs
		}
	}
	return nil
}

func (r *Resolver) resolveRef(projectID int64, ref SectionRef) []Section {
	var out []Section
	switch ref := ref.(type) {
	case IDsRef:
		for _, id := range ref {
			if s, ok := r.byID[id]; ok && s.ProjectID == projectID {
				out = append(out, s)
			}
		}
	case LegacyNamesRef:
		for _, name := range ref {
			if s, ok := r.byName[projectName{projectID, nameKey(name)}]; ok {
				out = append(out, s)
			}
		}
	case LegacySingleRef:
		if ref.ID != nil {
			if s, ok := r.byID[*ref.ID]; ok && s.ProjectID == projectID {
				return []Section{s}
			}
		}
		if ref.Name != "" {
			if s, ok := r.byName[projectName{projectID, nameKey(ref.Name)}]; ok {
				return []Section{s}
			}
		}
	}
	return lo.UniqBy(out, func(s Section) int64 { return s.ID })
}

// ResolveCards resolves every stored card.
func (r *Resolver) ResolveCards(stored []StoredCard) []Card {
	cards := make([]Card, len(stored))
	for i, sc := range stored {
		c := sc.Card
		c.Sections = r.Resolve(c.ProjectID, sc.Raw)
		cards[i] = c
	}
	return cards
}

// Primary is the section shown to consumers that only understand one.
func Primary(sections []Section) *Section {
	if len(sections) == 0 {
		return nil
	}
	s := sections[0]
	return &s
}

// ValidateSections checks that every requested id names a non-archived
// section of projectID. It is all-or-nothing: any miss fails the whole list.
// The returned sections keep the requested order with duplicates removed.
func ValidateSections(projectID *int64, ids []int64, known []Section) ([]Section, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("%w: section id %d", ErrValidation, id)
		}
	}
	if projectID == nil {
		return nil, fmt.Errorf("%w: card has no project", ErrSectionProjectMismatch)
	}
	byID := lo.SliceToMap(known, func(s Section) (int64, Section) { return s.ID, s })
	out := make([]Section, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok || s.Archived || s.ProjectID != *projectID {
			return nil, fmt.Errorf("%w: section %d, project %d", ErrSectionProjectMismatch, id, *projectID)
		}
		out = append(out, s)
	}
	return out, nil
}

func SectionIDs(sections []Section) []int64 {
	return lo.Map(sections, func(s Section, _ int) int64 { return s.ID })
}
