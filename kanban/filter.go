package kanban

// Filter is a read-only card predicate applied after container selection.
type Filter func(Card) bool

// All composes filters with logical AND. No filters matches everything.
func All(filters ...Filter) Filter {
	return func(c Card) bool {
		for _, f := range filters {
			if f != nil && !f(c) {
				return false
			}
		}
		return true
	}
}

func WithoutSections() Filter {
	return func(c Card) bool { return len(c.Sections) == 0 }
}

func WithSection(sectionID int64) Filter {
	return func(c Card) bool {
		for _, s := range c.Sections {
			if s.ID == sectionID {
				return true
			}
		}
		return false
	}
}

func WithPriority(p int) Filter {
	return func(c Card) bool { return c.Priority != nil && *c.Priority == p }
}

func WithLabel(label string) Filter {
	return func(c Card) bool {
		for _, l := range c.Labels {
			if l == label {
				return true
			}
		}
		return false
	}
}
