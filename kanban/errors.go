package kanban

import "errors"

// Error taxonomy shared by the registry, the card operations and the move
// protocol. Callers wrap these with context and match them with errors.Is.
var (
	ErrNotFound               = errors.New("not found")
	ErrDuplicateName          = errors.New("duplicate section name")
	ErrSectionProjectMismatch = errors.New("section does not belong to project")
	ErrValidation             = errors.New("validation error")

	// ErrSchemaCapabilityMissing is returned when a multi-section write hits a
	// database that still lacks the section_ids_json column.
	ErrSchemaCapabilityMissing = errors.New("schema capability missing")
)
