package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CrowderSoup/admin-panel/kanban"
)

// cardColumns and scanCard must agree on withIDs. Callers read the capability
// flag once per query.
func cardColumns(withIDs bool) string {
	cols := `id, title, notes, project_id, board, status, sort, due_at, section_id, section_name, priority, labels_json`
	if withIDs {
		cols += `, section_ids_json`
	}
	return cols
}

func scanCard(row interface{ Scan(...any) error }, withIDs bool) (kanban.StoredCard, error) {
	var (
		c           kanban.StoredCard
		board       string
		projectID   sql.NullInt64
		dueAt       sql.NullTime
		sectionID   sql.NullInt64
		sectionName sql.NullString
		priority    sql.NullInt64
		labels      sql.NullString
		idsJSON     sql.NullString
	)
	dest := []any{&c.ID, &c.Title, &c.Notes, &projectID, &board, &c.Status, &c.Sort,
		&dueAt, &sectionID, &sectionName, &priority, &labels}
	if withIDs {
		dest = append(dest, &idsJSON)
	}
	if err := row.Scan(dest...); err != nil {
		return c, err
	}

	c.Board = kanban.Board(board)
	if projectID.Valid {
		c.ProjectID = &projectID.Int64
	}
	if dueAt.Valid {
		t := dueAt.Time.UTC()
		c.DueAt = &t
	}
	if priority.Valid {
		p := int(priority.Int64)
		c.Priority = &p
	}
	c.Labels = parseLabels(labels.String)
	if sectionID.Valid {
		c.Raw.LegacyID = &sectionID.Int64
	}
	if sectionName.Valid {
		c.Raw.LegacyName = &sectionName.String
	}
	if idsJSON.Valid {
		c.Raw.IDsJSON = &idsJSON.String
	}
	return c, nil
}

// ListCards returns every card with its raw section columns.
func (s *DataService) ListCards(ctx context.Context) ([]kanban.StoredCard, error) {
	withIDs := s.SupportsSectionIDs()
	rows, err := s.db.QueryContext(ctx, `SELECT `+cardColumns(withIDs)+` FROM kb_cards
		ORDER BY board ASC, status ASC, sort ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	cards := []kanban.StoredCard{}
	for rows.Next() {
		c, err := scanCard(rows, withIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (s *DataService) GetCard(ctx context.Context, id int64) (kanban.StoredCard, error) {
	withIDs := s.SupportsSectionIDs()
	row := s.db.QueryRowContext(ctx, `SELECT `+cardColumns(withIDs)+` FROM kb_cards WHERE id = ?`, id)
	c, err := scanCard(row, withIDs)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("%w: card %d", kanban.ErrNotFound, id)
	}
	if err != nil {
		return c, fmt.Errorf("failed to query card: %w", err)
	}
	return c, nil
}

// sectionValues picks the stored representation for a section list: the
// JSON column when present, otherwise the legacy single id/name pair.
func (s *DataService) sectionValues(secs []kanban.Section) (cols []string, args []any, err error) {
	primary := kanban.Primary(secs)
	if s.SupportsSectionIDs() {
		var primaryID any
		if primary != nil {
			primaryID = primary.ID
		}
		return []string{"section_id", "section_name", "section_ids_json"},
			[]any{primaryID, nil, kanban.EncodeSectionIDs(kanban.SectionIDs(secs))}, nil
	}
	if len(secs) > 1 {
		return nil, nil, fmt.Errorf("%w: %d sections need section_ids_json", kanban.ErrSchemaCapabilityMissing, len(secs))
	}
	if primary == nil {
		return []string{"section_id", "section_name"}, []any{nil, nil}, nil
	}
	return []string{"section_id", "section_name"}, []any{primary.ID, primary.Name}, nil
}

func (s *DataService) CreateCard(ctx context.Context, c NewCard) (int64, error) {
	secCols, secArgs, err := s.sectionValues(c.Sections)
	if err != nil {
		return 0, err
	}
	cols := append([]string{"title", "notes", "project_id", "board", "status", "sort", "due_at", "priority", "labels_json"}, secCols...)
	args := append([]any{c.Title, c.Notes, c.ProjectID, string(c.Board), c.Status, c.Sort,
		nullTime(c.DueAt), c.Priority, encodeLabels(c.Labels)}, secArgs...)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_cards (`+strings.Join(cols, ", ")+`) VALUES (`+placeholders(len(cols))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert card: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read card id: %w", err)
	}
	return id, nil
}

func (s *DataService) UpdateCard(ctx context.Context, id int64, u CardUpdate) error {
	secCols, secArgs, err := s.sectionValues(u.Sections)
	if err != nil {
		return err
	}
	cols := append([]string{"title", "notes", "due_at", "priority", "labels_json"}, secCols...)
	args := append([]any{u.Title, u.Notes, nullTime(u.DueAt), u.Priority, encodeLabels(u.Labels)}, secArgs...)
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, `UPDATE kb_cards SET `+assignments(cols)+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	return requireAffected(res, "card", id)
}

// SetCardSections replaces a card's section association.
func (s *DataService) SetCardSections(ctx context.Context, id int64, secs []kanban.Section) error {
	cols, args, err := s.sectionValues(secs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE kb_cards SET `+assignments(cols)+` WHERE id = ?`, append(args, id)...)
	if err != nil {
		return fmt.Errorf("failed to update card sections: %w", err)
	}
	return requireAffected(res, "card", id)
}

// ApplyPlacement persists one write of a move plan. A project change also
// clears every section representation of the card.
func (s *DataService) ApplyPlacement(ctx context.Context, p kanban.Placement) error {
	cols := []string{"board", "status", "sort"}
	args := []any{string(p.Board), p.Status, p.Sort}
	if p.Project != nil {
		cols = append(cols, "project_id", "section_id", "section_name")
		args = append(args, p.Project.ProjectID, nil, nil)
		if s.SupportsSectionIDs() {
			cols = append(cols, "section_ids_json")
			args = append(args, kanban.EncodeSectionIDs(nil))
		}
	}
	res, err := s.db.ExecContext(ctx, `UPDATE kb_cards SET `+assignments(cols)+` WHERE id = ?`, append(args, p.CardID)...)
	if err != nil {
		return fmt.Errorf("failed to place card %d: %w", p.CardID, err)
	}
	return requireAffected(res, "card", p.CardID)
}

func (s *DataService) DeleteCard(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kb_cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return requireAffected(res, "card", id)
}

func assignments(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " = ?"
	}
	return strings.Join(parts, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func encodeLabels(labels []string) string {
	if len(labels) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(labels)
	return string(b)
}

// parseLabels tolerates NULL and malformed values.
func parseLabels(raw string) []string {
	labels := []string{}
	if raw == "" {
		return labels
	}
	if err := json.Unmarshal([]byte(raw), &labels); err != nil || labels == nil {
		return []string{}
	}
	return labels
}
