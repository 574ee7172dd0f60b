package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/CrowderSoup/admin-panel/kanban"
)

// BackfillResult summarizes a legacy section backfill.
type BackfillResult struct {
	SectionsCreated int
	CardsUpdated    int
}

type legacyCard struct {
	id        int64
	projectID int64
	name      string
}

// BackfillSections turns legacy section_name values into kb_sections rows.
// Each name is matched case-insensitively against the project's active
// sections and created when missing. Cards then point at the sections through
// section_id and, when the column exists, section_ids_json, with
// section_name cleared. Without the JSON column section_name is kept so
// multi-name cards still resolve. Everything runs in one transaction.
func (s *DataService) BackfillSections(ctx context.Context) (BackfillResult, error) {
	var result BackfillResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	withIDs, err := hasSectionIDsColumn(ctx, tx)
	if err != nil {
		return result, err
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, project_id, section_name FROM kb_cards
		WHERE project_id IS NOT NULL AND section_name IS NOT NULL AND TRIM(section_name) <> ''
		ORDER BY id ASC`)
	if err != nil {
		return result, fmt.Errorf("failed to query legacy section names: %w", err)
	}
	var cards []legacyCard
	for rows.Next() {
		var c legacyCard
		if err := rows.Scan(&c.id, &c.projectID, &c.name); err != nil {
			rows.Close()
			return result, fmt.Errorf("failed to scan legacy card: %w", err)
		}
		cards = append(cards, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, err
	}

	// project id + lower(name) -> section id
	known := map[string]int64{}
	resolve := func(projectID int64, name string) (int64, error) {
		key := fmt.Sprintf("%d:%s", projectID, strings.ToLower(name))
		if id, ok := known[key]; ok {
			return id, nil
		}
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM kb_sections
			WHERE project_id = ? AND lower(name) = lower(?) AND archived = 0`, projectID, name).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			res, insErr := tx.ExecContext(ctx, `
				INSERT INTO kb_sections (project_id, name, color, icon, sort)
				VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(sort), -1) + 1 FROM kb_sections WHERE project_id = ?))`,
				projectID, name, kanban.DefaultSectionColor, kanban.DefaultSectionIcon, projectID)
			if insErr != nil {
				return 0, classifySectionErr(insErr, name)
			}
			if id, err = res.LastInsertId(); err != nil {
				return 0, fmt.Errorf("failed to read section id: %w", err)
			}
			result.SectionsCreated++
		} else if err != nil {
			return 0, fmt.Errorf("failed to look up section %q: %w", name, err)
		}
		known[key] = id
		return id, nil
	}

	for _, c := range cards {
		names := kanban.SplitLegacyNames(c.name)
		ids := make([]int64, 0, len(names))
		for _, name := range names {
			id, err := resolve(c.projectID, name)
			if err != nil {
				return result, err
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			continue
		}

		if withIDs {
			_, err = tx.ExecContext(ctx,
				`UPDATE kb_cards SET section_id = ?, section_name = NULL, section_ids_json = ? WHERE id = ?`,
				ids[0], kanban.EncodeSectionIDs(ids), c.id)
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE kb_cards SET section_id = ? WHERE id = ?`, ids[0], c.id)
		}
		if err != nil {
			return result, fmt.Errorf("failed to backfill card %d: %w", c.id, err)
		}
		result.CardsUpdated++
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit transaction: %w", err)
	}
	log.Info().
		Int("sections_created", result.SectionsCreated).
		Int("cards_updated", result.CardsUpdated).
		Msg("Legacy sections backfilled")
	return result, nil
}
