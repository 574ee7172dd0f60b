package kanban

import (
	"fmt"
	"time"
)

type Board string

const (
	BoardIdeas    Board = "ideas"
	BoardKanban   Board = "kanban"
	BoardArchived Board = "archived"
)

const (
	StatusNA    = "n/a"
	StatusTodo  = "todo"
	StatusDoing = "doing"
	StatusDone  = "done"
)

// Priority bounds. 1 is the most urgent.
const (
	PriorityHigh   = 1
	PriorityMedium = 2
	PriorityLow    = 3
)

const (
	DefaultSectionColor = "#64748b"
	DefaultSectionIcon  = "Tag"
)

type Project struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Sort        int     `json:"sort"`
	Description string  `json:"description"`
	LogoPath    *string `json:"logo_path"`
	Archived    bool    `json:"-"`
}

type Section struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Icon      string `json:"icon"`
	Sort      int    `json:"sort"`
	Archived  bool   `json:"-"`
}

// Card is the canonical, resolved form of a card. Sections is always the
// output of the resolver, never the raw stored reference.
type Card struct {
	ID        int64
	Title     string
	Notes     string
	ProjectID *int64
	Board     Board
	Status    string
	Sort      int
	DueAt     *time.Time
	Priority  *int
	Labels    []string
	Sections  []Section
}

// StoredCard is a card as read from persistence, before section resolution.
type StoredCard struct {
	Card
	Raw RawSections
}

// ParseBoard accepts only the three known boards.
func ParseBoard(s string) (Board, error) {
	switch b := Board(s); b {
	case BoardIdeas, BoardKanban, BoardArchived:
		return b, nil
	}
	return "", fmt.Errorf("%w: unknown board %q", ErrValidation, s)
}

// NormalizeStatus checks a status against its board. Kanban cards need one of
// todo/doing/done; every other board only carries "n/a" (an empty status is
// normalized to it).
func NormalizeStatus(board Board, status string) (string, error) {
	if board == BoardKanban {
		switch status {
		case StatusTodo, StatusDoing, StatusDone:
			return status, nil
		}
		return "", fmt.Errorf("%w: unknown kanban status %q", ErrValidation, status)
	}
	if status == "" || status == StatusNA {
		return StatusNA, nil
	}
	return "", fmt.Errorf("%w: board %s does not take status %q", ErrValidation, board, status)
}

func ValidatePriority(p *int) error {
	if p == nil {
		return nil
	}
	if *p < PriorityHigh || *p > PriorityLow {
		return fmt.Errorf("%w: priority %d out of range %d-%d", ErrValidation, *p, PriorityHigh, PriorityLow)
	}
	return nil
}

// SameProject reports whether two nullable project references are equal.
func SameProject(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
