package database

import (
	"errors"
	"time"

	"github.com/CrowderSoup/admin-panel/kanban"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID                 int64
	Username           string
	Email              string
	PasswordHash       string
	MustChangePassword bool
}

type AuditEntry struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCard is a validated card ready to be inserted.
type NewCard struct {
	Title     string
	Notes     string
	ProjectID *int64
	Board     kanban.Board
	Status    string
	Sort      int
	DueAt     *time.Time
	Priority  *int
	Labels    []string
	Sections  []kanban.Section
}

// CardUpdate replaces the editable fields of a card. Container and project
// changes go through placements instead.
type CardUpdate struct {
	Title    string
	Notes    string
	DueAt    *time.Time
	Priority *int
	Labels   []string
	Sections []kanban.Section
}
