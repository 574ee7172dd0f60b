package database

import (
	"context"
	"encoding/json"
	"fmt"
)

// RecordAudit appends an audit row. detail is stored as JSON.
func (s *DataService) RecordAudit(ctx context.Context, userID *int64, action string, detail any, ip string) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to encode audit detail: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (user_id, action, detail, ip) VALUES (?, ?, ?, ?)`,
		userID, action, string(raw), ip)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// RecentAudit returns the newest audit rows first.
func (s *DataService) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, action, detail, ip, created_at FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Detail, &e.IP, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
