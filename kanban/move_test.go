package kanban

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idx(i int) *int { return &i }

func todo(id int64, sort int, project int64) Card {
	return Card{ID: id, Board: BoardKanban, Status: StatusTodo, Sort: sort, ProjectID: pid(project)}
}

func sorts(ps []Placement) map[int64]int {
	out := make(map[int64]int, len(ps))
	for _, p := range ps {
		out[p.CardID] = p.Sort
	}
	return out
}

func order(ps []Placement) []int64 {
	out := make([]int64, len(ps))
	for i, p := range ps {
		out[i] = p.CardID
	}
	return out
}

func TestPlanMoveSameContainerReorder(t *testing.T) {
	cards := []Card{todo(10, 0, 1), todo(11, 1, 1), todo(12, 2, 1), todo(13, 3, 1)}

	plan, err := PlanMove(cards, MoveRequest{CardID: 12, Board: BoardKanban, Status: StatusTodo, Index: idx(0)})
	require.NoError(t, err)

	assert.Empty(t, plan.Source)
	assert.Equal(t, []int64{12, 10, 11, 13}, order(plan.Destination))
	assert.Equal(t, map[int64]int{12: 0, 10: 1, 11: 2, 13: 3}, sorts(plan.Destination))
	assert.False(t, plan.ProjectChanged)
	for _, p := range plan.Destination {
		assert.Nil(t, p.Project)
	}
}

func TestPlanMoveSameContainerWithoutIndexKeepsPosition(t *testing.T) {
	// gapped and colliding sorts are rewritten densely
	cards := []Card{todo(1, 5, 1), todo(2, 5, 1), todo(3, 9, 1)}

	plan, err := PlanMove(cards, MoveRequest{CardID: 2, Board: BoardKanban, Status: StatusTodo})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, order(plan.Destination))
	assert.Equal(t, map[int64]int{1: 0, 2: 1, 3: 2}, sorts(plan.Destination))
}

func TestPlanMoveCrossContainer(t *testing.T) {
	cards := []Card{
		todo(1, 0, 1), todo(2, 1, 1), todo(3, 2, 1),
		{ID: 7, Board: BoardKanban, Status: StatusDoing, Sort: 0, ProjectID: pid(1)},
		{ID: 8, Board: BoardKanban, Status: StatusDoing, Sort: 1, ProjectID: pid(1)},
	}

	plan, err := PlanMove(cards, MoveRequest{CardID: 2, Board: BoardKanban, Status: StatusDoing, Index: idx(1)})
	require.NoError(t, err)

	assert.Equal(t, []int64{7, 2, 8}, order(plan.Destination))
	assert.Equal(t, []int64{1, 3}, order(plan.Source))
	assert.Equal(t, map[int64]int{1: 0, 3: 1}, sorts(plan.Source))

	writes := plan.Writes()
	require.Len(t, writes, 5)
	assert.Equal(t, StatusDoing, writes[0].Status, "destination is written first")
	assert.Equal(t, StatusTodo, writes[4].Status)
}

func TestPlanMoveDefaultsToEnd(t *testing.T) {
	cards := []Card{
		todo(1, 0, 1),
		{ID: 5, Board: BoardIdeas, Status: StatusNA, Sort: 0, ProjectID: pid(1)},
	}

	plan, err := PlanMove(cards, MoveRequest{CardID: 5, Board: BoardKanban, Status: StatusTodo})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 5}, order(plan.Destination))
	assert.Empty(t, plan.Source)
}

func TestPlanMoveClampsIndex(t *testing.T) {
	cards := []Card{todo(1, 0, 1), todo(2, 1, 1), {ID: 3, Board: BoardIdeas, ProjectID: pid(1)}}

	plan, err := PlanMove(cards, MoveRequest{CardID: 3, Board: BoardKanban, Status: StatusTodo, Index: idx(99)})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, order(plan.Destination))

	plan, err = PlanMove(cards, MoveRequest{CardID: 3, Board: BoardKanban, Status: StatusTodo, Index: idx(-4)})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, order(plan.Destination))
}

func TestPlanMoveAcrossProjects(t *testing.T) {
	cards := []Card{
		{ID: 1, Board: BoardIdeas, ProjectID: pid(1), Sort: 0, Sections: []Section{{ID: 9, ProjectID: 1}}},
		{ID: 2, Board: BoardIdeas, ProjectID: pid(2), Sort: 0},
	}

	plan, err := PlanMove(cards, MoveRequest{CardID: 1, Board: BoardIdeas, ProjectID: pid(2), Index: idx(0)})
	require.NoError(t, err)

	assert.True(t, plan.ProjectChanged)
	assert.Equal(t, ContainerKey{BoardIdeas, StatusNA, 2}, plan.To)
	require.Equal(t, []int64{1, 2}, order(plan.Destination))
	require.NotNil(t, plan.Destination[0].Project)
	assert.Equal(t, int64(2), *plan.Destination[0].Project.ProjectID)
	assert.Nil(t, plan.Destination[1].Project)
}

func TestPlanMoveKanbanProjectChangeStaysInColumn(t *testing.T) {
	cards := []Card{todo(1, 0, 1), todo(2, 1, 1)}

	plan, err := PlanMove(cards, MoveRequest{CardID: 2, Board: BoardKanban, Status: StatusTodo, ProjectID: pid(0)})
	require.NoError(t, err)
	assert.Equal(t, plan.From, plan.To)
	assert.True(t, plan.ProjectChanged)
	assert.Nil(t, plan.TargetProject)
	require.NotNil(t, plan.Destination[1].Project)
	assert.Nil(t, plan.Destination[1].Project.ProjectID)
}

func TestPlanMoveSameProjectIsNotAChange(t *testing.T) {
	cards := []Card{{ID: 1, Board: BoardIdeas, ProjectID: pid(1)}}

	plan, err := PlanMove(cards, MoveRequest{CardID: 1, Board: BoardArchived, ProjectID: pid(1)})
	require.NoError(t, err)
	assert.False(t, plan.ProjectChanged)
	assert.Nil(t, plan.Destination[0].Project)
}

func TestPlanMoveRejects(t *testing.T) {
	cards := []Card{todo(1, 0, 1)}

	_, err := PlanMove(cards, MoveRequest{CardID: 2, Board: BoardKanban, Status: StatusTodo})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = PlanMove(cards, MoveRequest{CardID: 1, Board: "backlog"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = PlanMove(cards, MoveRequest{CardID: 1, Board: BoardKanban, Status: "later"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReorder(t *testing.T) {
	cards := []Card{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	assert.Equal(t, []int64{3, 1, 2, 4}, ids(Reorder(cards, 2, 0)))
	assert.Equal(t, []int64{2, 3, 4, 1}, ids(Reorder(cards, 0, 10)))
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(cards))
	assert.Nil(t, Reorder(nil, 0, 0))
}
