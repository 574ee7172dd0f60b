package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/CrowderSoup/admin-panel/kanban"
)

const projectColumns = `id, name, sort, description, logo_path, archived`

func scanProject(row interface{ Scan(...any) error }) (kanban.Project, error) {
	var (
		p    kanban.Project
		logo sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Sort, &p.Description, &logo, &p.Archived); err != nil {
		return p, err
	}
	if logo.Valid {
		p.LogoPath = &logo.String
	}
	return p, nil
}

// ListProjects returns projects ordered by sort then id.
func (s *DataService) ListProjects(ctx context.Context, includeArchived bool) ([]kanban.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM kb_projects`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY sort ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := []kanban.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject returns an active project.
func (s *DataService) GetProject(ctx context.Context, id int64) (kanban.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM kb_projects WHERE id = ? AND archived = 0`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("%w: project %d", kanban.ErrNotFound, id)
	}
	if err != nil {
		return p, fmt.Errorf("failed to query project: %w", err)
	}
	return p, nil
}

func (s *DataService) CreateProject(ctx context.Context, name string) (kanban.Project, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO kb_projects (name, sort, description, logo_path)
		VALUES (?, (SELECT COALESCE(MAX(sort), -1) + 1 FROM kb_projects), '', NULL)`, name)
	if err != nil {
		return kanban.Project{}, fmt.Errorf("failed to insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return kanban.Project{}, fmt.Errorf("failed to read project id: %w", err)
	}
	return s.GetProject(ctx, id)
}

func (s *DataService) UpdateProject(ctx context.Context, id int64, name, description string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE kb_projects SET name = ?, description = ? WHERE id = ? AND archived = 0`, name, description, id)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return requireAffected(res, "project", id)
}

func (s *DataService) SetProjectLogo(ctx context.Context, id int64, logoPath string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE kb_projects SET logo_path = ? WHERE id = ? AND archived = 0`, logoPath, id)
	if err != nil {
		return fmt.Errorf("failed to update project logo: %w", err)
	}
	return requireAffected(res, "project", id)
}

func (s *DataService) ArchiveProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE kb_projects SET archived = 1 WHERE id = ? AND archived = 0`, id)
	if err != nil {
		return fmt.Errorf("failed to archive project: %w", err)
	}
	return requireAffected(res, "project", id)
}

// DeleteProjectPermanently removes a project with its cards and sections in
// one transaction. Any failure rolls back all three deletes.
func (s *DataService) DeleteProjectPermanently(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_cards WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project cards: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_sections WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project sections: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM kb_projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if err := requireAffected(res, "project", id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	log.Info().Int64("project_id", id).Msg("Project permanently deleted")
	return nil
}

func requireAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", kanban.ErrNotFound, what, id)
	}
	return nil
}
