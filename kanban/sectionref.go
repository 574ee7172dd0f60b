package kanban

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/samber/lo"
)

// LegacyNameDelimiter joins section names in the legacy multi-section column.
const LegacyNameDelimiter = "||"

// RawSections holds a card's section columns exactly as persisted. Depending
// on the schema generation of the row, any subset may be populated.
type RawSections struct {
	IDsJSON    *string // section_ids_json, nil when NULL or the column is absent
	LegacyID   *int64  // section_id
	LegacyName *string // section_name
}

// SectionRef is one stored representation of a card's sections:
// IDsRef, LegacyNamesRef or LegacySingleRef.
type SectionRef interface {
	sectionRef()
}

type IDsRef []int64

type LegacyNamesRef []string

type LegacySingleRef struct {
	ID   *int64
	Name string
}

func (IDsRef) sectionRef()          {}
func (LegacyNamesRef) sectionRef()  {}
func (LegacySingleRef) sectionRef() {}

// Refs returns the populated representations in resolution order.
func (r RawSections) Refs() []SectionRef {
	var refs []SectionRef
	if r.IDsJSON != nil {
		if ids, ok := ParseSectionIDs(*r.IDsJSON); ok && len(ids) > 0 {
			refs = append(refs, IDsRef(ids))
		}
	}
	name := ""
	if r.LegacyName != nil {
		name = strings.TrimSpace(*r.LegacyName)
	}
	if strings.Contains(name, LegacyNameDelimiter) {
		if names := SplitLegacyNames(name); len(names) > 0 {
			refs = append(refs, LegacyNamesRef(names))
		}
	}
	if r.LegacyID != nil || name != "" {
		refs = append(refs, LegacySingleRef{ID: r.LegacyID, Name: name})
	}
	return refs
}

// ParseSectionIDs decodes a JSON array of positive integers. Anything else,
// including a single bad element, is rejected as a whole.
func ParseSectionIDs(raw string) ([]int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var values []any
	if err := dec.Decode(&values); err != nil || values == nil {
		return nil, false
	}
	// Trailing values after the array make the whole column invalid.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, false
	}
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		n, ok := v.(json.Number)
		if !ok {
			return nil, false
		}
		id, err := n.Int64()
		if err != nil || id <= 0 {
			return nil, false
		}
		ids = append(ids, id)
	}
	return lo.Uniq(ids), true
}

// EncodeSectionIDs renders ids for the section_ids_json column. A nil slice
// encodes as an empty array.
func EncodeSectionIDs(ids []int64) string {
	if len(ids) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

func SplitLegacyNames(raw string) []string {
	parts := lo.Map(strings.Split(raw, LegacyNameDelimiter), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Compact(parts)
}

// RemoveLegacyName drops every occurrence of name (case-insensitive) from a
// legacy section_name value and reports whether it changed. The result is
// nil when nothing is left.
func RemoveLegacyName(raw *string, name string) (*string, bool) {
	if raw == nil {
		return nil, false
	}
	target := nameKey(name)
	parts := SplitLegacyNames(*raw)
	kept := lo.Reject(parts, func(p string, _ int) bool { return nameKey(p) == target })
	if len(kept) == len(parts) {
		return raw, false
	}
	if len(kept) == 0 {
		return nil, true
	}
	joined := strings.Join(kept, " "+LegacyNameDelimiter+" ")
	return &joined, true
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
