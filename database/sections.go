package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/CrowderSoup/admin-panel/kanban"
)

const sectionColumns = `id, project_id, name, color, icon, sort, archived`

func scanSections(rows *sql.Rows) ([]kanban.Section, error) {
	defer rows.Close()
	sections := []kanban.Section{}
	for rows.Next() {
		var sec kanban.Section
		if err := rows.Scan(&sec.ID, &sec.ProjectID, &sec.Name, &sec.Color, &sec.Icon, &sec.Sort, &sec.Archived); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// ListSections returns active sections of one project, or of every project
// when projectID is 0.
func (s *DataService) ListSections(ctx context.Context, projectID int64) ([]kanban.Section, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if projectID > 0 {
		rows, err = s.db.QueryContext(ctx, `SELECT `+sectionColumns+` FROM kb_sections
			WHERE archived = 0 AND project_id = ? ORDER BY sort ASC, id ASC`, projectID)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+sectionColumns+` FROM kb_sections
			WHERE archived = 0 ORDER BY project_id ASC, sort ASC, id ASC`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	return scanSections(rows)
}

// SectionsByIDs returns the named sections, archived ones included, so callers
// can tell a missing id from an archived one.
func (s *DataService) SectionsByIDs(ctx context.Context, ids []int64) ([]kanban.Section, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return []kanban.Section{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := lo.Map(ids, func(id int64, _ int) any { return id })
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sectionColumns+` FROM kb_sections WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	return scanSections(rows)
}

// GetSection returns an active section.
func (s *DataService) GetSection(ctx context.Context, id int64) (kanban.Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sectionColumns+` FROM kb_sections WHERE id = ? AND archived = 0`, id)
	if err != nil {
		return kanban.Section{}, fmt.Errorf("failed to query section: %w", err)
	}
	secs, err := scanSections(rows)
	if err != nil {
		return kanban.Section{}, err
	}
	if len(secs) == 0 {
		return kanban.Section{}, fmt.Errorf("%w: section %d", kanban.ErrNotFound, id)
	}
	return secs[0], nil
}

// SectionNameTaken reports whether an active section of the project already
// uses name, compared case-insensitively. excludeID skips the section being
// renamed.
func (s *DataService) SectionNameTaken(ctx context.Context, projectID int64, name string, excludeID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kb_sections
		WHERE project_id = ? AND archived = 0 AND lower(name) = lower(?) AND id <> ?`,
		projectID, strings.TrimSpace(name), excludeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check section name: %w", err)
	}
	return n > 0, nil
}

func (s *DataService) CreateSection(ctx context.Context, sec kanban.Section) (kanban.Section, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO kb_sections (project_id, name, color, icon, sort)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(sort), -1) + 1 FROM kb_sections WHERE project_id = ?))`,
		sec.ProjectID, sec.Name, sec.Color, sec.Icon, sec.ProjectID)
	if err != nil {
		return kanban.Section{}, classifySectionErr(err, sec.Name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return kanban.Section{}, fmt.Errorf("failed to read section id: %w", err)
	}
	return s.GetSection(ctx, id)
}

func (s *DataService) UpdateSection(ctx context.Context, sec kanban.Section) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE kb_sections SET name = ?, color = ?, icon = ? WHERE id = ? AND archived = 0`,
		sec.Name, sec.Color, sec.Icon, sec.ID)
	if err != nil {
		return classifySectionErr(err, sec.Name)
	}
	return requireAffected(res, "section", sec.ID)
}

// ArchiveSection archives a section and strips it from every card, in every
// stored representation, so no card keeps a dangling reference.
func (s *DataService) ArchiveSection(ctx context.Context, id int64) error {
	sec, err := s.GetSection(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE kb_sections SET archived = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to archive section: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE kb_cards SET section_id = NULL WHERE section_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear section ids: %w", err)
	}
	if err := stripLegacyNames(ctx, tx, sec); err != nil {
		return err
	}
	// The column may have been added by another process since the last probe.
	withIDs, err := hasSectionIDsColumn(ctx, tx)
	if err != nil {
		return err
	}
	if withIDs {
		if err := stripSectionIDs(ctx, tx, id); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	log.Info().Int64("section_id", id).Int64("project_id", sec.ProjectID).Msg("Section archived")
	return nil
}

func stripLegacyNames(ctx context.Context, tx *sql.Tx, sec kanban.Section) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, section_name FROM kb_cards
		WHERE project_id = ? AND section_name IS NOT NULL AND section_name <> ''`, sec.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to query legacy section names: %w", err)
	}
	type change struct {
		id   int64
		name *string
	}
	var changes []change
	for rows.Next() {
		var (
			cardID int64
			name   string
		)
		if err := rows.Scan(&cardID, &name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan legacy section name: %w", err)
		}
		if next, changed := kanban.RemoveLegacyName(&name, sec.Name); changed {
			changes = append(changes, change{cardID, next})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, c := range changes {
		if _, err := tx.ExecContext(ctx, `UPDATE kb_cards SET section_name = ? WHERE id = ?`, c.name, c.id); err != nil {
			return fmt.Errorf("failed to rewrite legacy section name: %w", err)
		}
	}
	return nil
}

func stripSectionIDs(ctx context.Context, tx *sql.Tx, sectionID int64) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, section_ids_json FROM kb_cards
		WHERE section_ids_json IS NOT NULL AND section_ids_json <> ''`)
	if err != nil {
		return fmt.Errorf("failed to query section id lists: %w", err)
	}
	next := map[int64]string{}
	for rows.Next() {
		var (
			cardID int64
			raw    string
		)
		if err := rows.Scan(&cardID, &raw); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan section id list: %w", err)
		}
		ids, ok := kanban.ParseSectionIDs(raw)
		if !ok || !slices.Contains(ids, sectionID) {
			continue
		}
		next[cardID] = kanban.EncodeSectionIDs(lo.Without(ids, sectionID))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for cardID, raw := range next {
		if _, err := tx.ExecContext(ctx, `UPDATE kb_cards SET section_ids_json = ? WHERE id = ?`, raw, cardID); err != nil {
			return fmt.Errorf("failed to rewrite section id list: %w", err)
		}
	}
	return nil
}

func classifySectionErr(err error, name string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %q", kanban.ErrDuplicateName, name)
	}
	return fmt.Errorf("failed to write section: %w", err)
}
