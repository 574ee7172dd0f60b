package kanban

import (
	"fmt"
	"slices"
)

// MoveRequest asks for a card to land in a container at a position.
type MoveRequest struct {
	CardID int64
	Board  Board
	Status string
	// ProjectID nil keeps the card's project; a pointer to 0 makes the card
	// projectless.
	ProjectID *int64
	// Index nil means "end of the destination" for cross-container moves and
	// "current position" for same-container moves.
	Index *int
}

// ProjectChange marks the placement of a card that leaves its project.
type ProjectChange struct {
	ProjectID *int64
}

// Placement is one row write: the card gets the container's board/status
// and its position as sort. Project is only set on the moved card when its
// project changes; stores must clear its section association in that case.
type Placement struct {
	CardID  int64
	Board   Board
	Status  string
	Sort    int
	Project *ProjectChange
}

// MovePlan is the ordered list of writes for one move. Destination writes
// must be persisted before Source writes so the moved card is never left
// without a container.
type MovePlan struct {
	From, To       ContainerKey
	Destination    []Placement
	Source         []Placement
	ProjectChanged bool
	TargetProject  *int64
}

func (p MovePlan) Writes() []Placement {
	out := make([]Placement, 0, len(p.Destination)+len(p.Source))
	out = append(out, p.Destination...)
	return append(out, p.Source...)
}

// PlanMove computes the full-container rewrites for req against the current
// cards. It performs no I/O.
func PlanMove(cards []Card, req MoveRequest) (MovePlan, error) {
	board, err := ParseBoard(string(req.Board))
	if err != nil {
		return MovePlan{}, err
	}
	status, err := NormalizeStatus(board, req.Status)
	if err != nil {
		return MovePlan{}, err
	}
	idx := slices.IndexFunc(cards, func(c Card) bool { return c.ID == req.CardID })
	if idx < 0 {
		return MovePlan{}, fmt.Errorf("%w: card %d", ErrNotFound, req.CardID)
	}
	card := cards[idx]

	target := card.ProjectID
	if req.ProjectID != nil {
		target = nil
		if *req.ProjectID != 0 {
			pid := *req.ProjectID
			target = &pid
		}
	}

	moved := card
	moved.Board = board
	moved.Status = status
	moved.ProjectID = target

	plan := MovePlan{
		From:           ContainerKeyOf(card),
		To:             ContainerKeyOf(moved),
		ProjectChanged: !SameProject(card.ProjectID, target),
		TargetProject:  target,
	}
	var change *ProjectChange
	if plan.ProjectChanged {
		change = &ProjectChange{ProjectID: target}
	}

	source := CardsIn(plan.From, cards)
	from := slices.IndexFunc(source, func(c Card) bool { return c.ID == card.ID })
	remaining := slices.Delete(slices.Clone(source), from, from+1)

	if plan.From == plan.To {
		at := from
		if req.Index != nil {
			at = *req.Index
		}
		order := slices.Insert(remaining, ClampIndex(at, len(remaining)), moved)
		plan.Destination = placements(plan.To, order, card.ID, change)
		return plan, nil
	}

	dest := CardsIn(plan.To, cards)
	at := len(dest)
	if req.Index != nil {
		at = *req.Index
	}
	order := slices.Insert(dest, ClampIndex(at, len(dest)), moved)
	plan.Destination = placements(plan.To, order, card.ID, change)
	plan.Source = placements(plan.From, remaining, 0, nil)
	return plan, nil
}

// Reorder moves the card at position from to position to and returns the new
// order. Both indexes are clamped to the list.
func Reorder(cards []Card, from, to int) []Card {
	if len(cards) == 0 {
		return nil
	}
	from = ClampIndex(from, len(cards)-1)
	c := cards[from]
	rest := slices.Delete(slices.Clone(cards), from, from+1)
	return slices.Insert(rest, ClampIndex(to, len(rest)), c)
}

// ClampIndex bounds i to [0, n].
func ClampIndex(i, n int) int {
	return max(0, min(i, n))
}

func placements(key ContainerKey, order []Card, movedID int64, change *ProjectChange) []Placement {
	out := make([]Placement, len(order))
	for i, c := range order {
		out[i] = Placement{CardID: c.ID, Board: key.Board, Status: key.Status, Sort: i}
		if c.ID == movedID {
			out[i].Project = change
		}
	}
	return out
}
