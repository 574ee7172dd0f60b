package kanban

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

var testSections = []Section{
	{ID: 1, ProjectID: 1, Name: "A", Color: "#111", Icon: "Tag"},
	{ID: 2, ProjectID: 1, Name: "B", Color: "#222", Icon: "Star"},
	{ID: 3, ProjectID: 2, Name: "A", Color: "#333", Icon: "Tag"},
	{ID: 4, ProjectID: 1, Name: "Old", Archived: true},
}

func sectionIDsOf(secs []Section) []int64 { return SectionIDs(secs) }

func TestResolvePrefersJSONIDs(t *testing.T) {
	r := NewResolver(testSections)
	raw := RawSections{IDsJSON: str("[2]"), LegacyName: str("A || B")}

	assert.Equal(t, []int64{2}, sectionIDsOf(r.Resolve(pid(1), raw)))
}

func TestResolveLegacyNames(t *testing.T) {
	r := NewResolver(testSections)
	raw := RawSections{LegacyName: str(" a || B ")}

	assert.Equal(t, []int64{1, 2}, sectionIDsOf(r.Resolve(pid(1), raw)))
}

func TestResolveFallsThroughEmptyIDs(t *testing.T) {
	r := NewResolver(testSections)

	// ids that only point at another project's or archived sections
	raw := RawSections{IDsJSON: str("[3, 4]"), LegacyName: str("A || B")}
	assert.Equal(t, []int64{1, 2}, sectionIDsOf(r.Resolve(pid(1), raw)))

	raw = RawSections{IDsJSON: str("[]"), LegacyID: pid(2), LegacyName: str("A")}
	assert.Equal(t, []int64{2}, sectionIDsOf(r.Resolve(pid(1), raw)))
}

func TestResolveLegacySingle(t *testing.T) {
	r := NewResolver(testSections)

	assert.Equal(t, []int64{1}, sectionIDsOf(r.Resolve(pid(1), RawSections{LegacyName: str("a")})))
	assert.Equal(t, []int64{3}, sectionIDsOf(r.Resolve(pid(2), RawSections{LegacyName: str("A")})))
	assert.Empty(t, r.Resolve(pid(2), RawSections{LegacyID: pid(1)}), "cross-project id must not resolve")
	assert.Empty(t, r.Resolve(pid(1), RawSections{LegacyID: pid(4)}), "archived section must not resolve")
}

func TestResolveProjectlessHasNoSections(t *testing.T) {
	r := NewResolver(testSections)
	assert.Empty(t, r.Resolve(nil, RawSections{IDsJSON: str("[1]")}))
}

func TestResolveDeduplicates(t *testing.T) {
	r := NewResolver(testSections)
	assert.Equal(t, []int64{2, 1}, sectionIDsOf(r.Resolve(pid(1), RawSections{IDsJSON: str("[2,1,2]")})))
	assert.Equal(t, []int64{1}, sectionIDsOf(r.Resolve(pid(1), RawSections{LegacyName: str("A || a")})))
}

func TestParseSectionIDs(t *testing.T) {
	tests := []struct {
		raw  string
		want []int64
		ok   bool
	}{
		{"[1,2,3]", []int64{1, 2, 3}, true},
		{" [ 5 ] ", []int64{5}, true},
		{"[]", []int64{}, true},
		{"[1,0]", nil, false},
		{"[1,-2]", nil, false},
		{"[1.5]", nil, false},
		{`["1"]`, nil, false},
		{`{"a":1}`, nil, false},
		{"null", nil, false},
		{"", nil, false},
		{"garbage", nil, false},
		{"[1] junk", nil, false},
		{"[1][2]", nil, false},
		{`[3] {"x":1}`, nil, false},
	}
	for _, tt := range tests {
		got, ok := ParseSectionIDs(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.raw)
		}
	}
}

func TestRefsOrder(t *testing.T) {
	raw := RawSections{IDsJSON: str("[1]"), LegacyID: pid(2), LegacyName: str("A || B")}
	refs := raw.Refs()
	require.Len(t, refs, 3)
	assert.IsType(t, IDsRef{}, refs[0])
	assert.IsType(t, LegacyNamesRef{}, refs[1])
	assert.IsType(t, LegacySingleRef{}, refs[2])

	assert.Empty(t, RawSections{IDsJSON: str("[0]")}.Refs())
}

func TestRemoveLegacyName(t *testing.T) {
	got, changed := RemoveLegacyName(str("A || B || c"), "b")
	require.True(t, changed)
	assert.Equal(t, "A || c", *got)

	got, changed = RemoveLegacyName(str("A"), "a")
	assert.True(t, changed)
	assert.Nil(t, got)

	_, changed = RemoveLegacyName(str("A"), "B")
	assert.False(t, changed)

	_, changed = RemoveLegacyName(nil, "B")
	assert.False(t, changed)
}

func TestValidateSections(t *testing.T) {
	secs, err := ValidateSections(pid(1), []int64{2, 1, 2}, testSections)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, SectionIDs(secs))

	_, err = ValidateSections(pid(1), []int64{1, 3}, testSections)
	assert.ErrorIs(t, err, ErrSectionProjectMismatch)

	_, err = ValidateSections(pid(1), []int64{4}, testSections)
	assert.ErrorIs(t, err, ErrSectionProjectMismatch)

	_, err = ValidateSections(nil, []int64{1}, testSections)
	assert.ErrorIs(t, err, ErrSectionProjectMismatch)

	_, err = ValidateSections(pid(1), []int64{-1}, testSections)
	assert.ErrorIs(t, err, ErrValidation)

	secs, err = ValidateSections(nil, nil, testSections)
	require.NoError(t, err)
	assert.Empty(t, secs)
}

func TestEncodeSectionIDs(t *testing.T) {
	assert.Equal(t, "[]", EncodeSectionIDs(nil))
	assert.Equal(t, "[3,1]", EncodeSectionIDs([]int64{3, 1}))
}
