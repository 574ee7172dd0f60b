package kanban

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ContainerKey identifies one visual column. ProjectID 0 means "no project":
// kanban columns are shared by every project, and projectless cards on the
// ideas/archived boards share the null-project column.
type ContainerKey struct {
	Board     Board
	Status    string
	ProjectID int64
}

// ContainerKeyOf maps a card to the single column it is rendered in.
func ContainerKeyOf(c Card) ContainerKey {
	switch c.Board {
	case BoardIdeas, BoardArchived:
		return ContainerKey{Board: c.Board, Status: StatusNA, ProjectID: projectOrZero(c.ProjectID)}
	case BoardKanban:
		return ContainerKey{Board: BoardKanban, Status: c.Status}
	}
	return ContainerKey{Board: c.Board, Status: c.Status, ProjectID: projectOrZero(c.ProjectID)}
}

// String renders the textual container id used by the board UI.
func (k ContainerKey) String() string {
	switch k.Board {
	case BoardIdeas, BoardArchived:
		return fmt.Sprintf("%s:project:%d", k.Board, k.ProjectID)
	case BoardKanban:
		return "kanban:" + k.Status
	}
	return fmt.Sprintf("%s:%s:%d", k.Board, k.Status, k.ProjectID)
}

// ParseContainerID is the inverse of ContainerKey.String for known boards.
func ParseContainerID(id string) (ContainerKey, error) {
	for _, b := range []Board{BoardIdeas, BoardArchived} {
		prefix := string(b) + ":project:"
		if rest, ok := strings.CutPrefix(id, prefix); ok {
			pid, err := strconv.ParseInt(rest, 10, 64)
			if err != nil || pid < 0 {
				return ContainerKey{}, fmt.Errorf("%w: bad container id %q", ErrValidation, id)
			}
			return ContainerKey{Board: b, Status: StatusNA, ProjectID: pid}, nil
		}
	}
	if status, ok := strings.CutPrefix(id, "kanban:"); ok {
		if _, err := NormalizeStatus(BoardKanban, status); err != nil {
			return ContainerKey{}, err
		}
		return ContainerKey{Board: BoardKanban, Status: status}, nil
	}
	return ContainerKey{}, fmt.Errorf("%w: bad container id %q", ErrValidation, id)
}

// CardsIn returns the cards of one container, filtered and ordered by sort
// ascending with id as the tie-break. The input slice is not modified.
func CardsIn(key ContainerKey, cards []Card, filters ...Filter) []Card {
	match := All(filters...)
	out := make([]Card, 0)
	for _, c := range cards {
		if ContainerKeyOf(c) == key && match(c) {
			out = append(out, c)
		}
	}
	SortCards(out)
	return out
}

// SortCards orders cards in place by (sort, id).
func SortCards(cards []Card) {
	slices.SortStableFunc(cards, func(a, b Card) int {
		if c := cmp.Compare(a.Sort, b.Sort); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// NextSort returns the sort value that appends a card to the end of key.
func NextSort(key ContainerKey, cards []Card) int {
	next := 0
	for _, c := range cards {
		if ContainerKeyOf(c) == key && c.Sort >= next {
			next = c.Sort + 1
		}
	}
	return next
}

func projectOrZero(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
