package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/admin-panel/kanban"
)

func insertLegacyCard(t *testing.T, s *DataService, title string, projectID int64, sectionName string) int64 {
	t.Helper()
	res, err := s.db.Exec(`INSERT INTO kb_cards (title, project_id, board, status, sort, section_name)
		VALUES (?, ?, 'ideas', 'n/a', 0, ?)`, title, projectID, sectionName)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestBackfillSections(t *testing.T) {
	s, db := newTestService(t, BaselineVersion)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "Shop")
	require.NoError(t, err)
	other, err := s.CreateProject(ctx, "Other")
	require.NoError(t, err)
	existing, err := s.CreateSection(ctx, kanban.Section{ProjectID: p.ID, Name: "Design", Color: "#111", Icon: "Tag"})
	require.NoError(t, err)

	single := insertLegacyCard(t, s, "single", p.ID, " design ")
	multi := insertLegacyCard(t, s, "multi", p.ID, "Build || DESIGN")
	elsewhere := insertLegacyCard(t, s, "elsewhere", other.ID, "Build")

	t.Run("baseline schema keeps the legacy names", func(t *testing.T) {
		res, err := s.BackfillSections(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, res.SectionsCreated)
		assert.Equal(t, 3, res.CardsUpdated)

		c, err := s.GetCard(ctx, single)
		require.NoError(t, err)
		require.NotNil(t, c.Raw.LegacyID)
		assert.Equal(t, existing.ID, *c.Raw.LegacyID)

		c, err = s.GetCard(ctx, multi)
		require.NoError(t, err)
		require.NotNil(t, c.Raw.LegacyName)
		assert.Equal(t, "Build || DESIGN", *c.Raw.LegacyName)

		sections, err := s.ListSections(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Design", "Build"}, sectionNames(sections))

		sections, err = s.ListSections(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Build"}, sectionNames(sections))
	})

	t.Run("json column receives every id", func(t *testing.T) {
		require.NoError(t, Migrate(db))
		require.NoError(t, s.ProbeCapabilities(ctx))

		res, err := s.BackfillSections(ctx)
		require.NoError(t, err)
		assert.Zero(t, res.SectionsCreated)
		assert.Equal(t, 3, res.CardsUpdated)

		sections, err := s.ListSections(ctx, p.ID)
		require.NoError(t, err)
		build := sections[1]

		c, err := s.GetCard(ctx, multi)
		require.NoError(t, err)
		assert.Nil(t, c.Raw.LegacyName)
		require.NotNil(t, c.Raw.IDsJSON)
		assert.JSONEq(t, kanban.EncodeSectionIDs([]int64{build.ID, existing.ID}), *c.Raw.IDsJSON)
		require.NotNil(t, c.Raw.LegacyID)
		assert.Equal(t, build.ID, *c.Raw.LegacyID)

		c, err = s.GetCard(ctx, elsewhere)
		require.NoError(t, err)
		require.NotNil(t, c.Raw.IDsJSON)
		assert.NotContains(t, *c.Raw.IDsJSON, "null")
	})

	t.Run("nothing left to do", func(t *testing.T) {
		res, err := s.BackfillSections(ctx)
		require.NoError(t, err)
		assert.Equal(t, BackfillResult{}, res)
	})
}

func sectionNames(sections []kanban.Section) []string {
	names := make([]string, len(sections))
	for i, sec := range sections {
		names[i] = sec.Name
	}
	return names
}

func TestCardScanUsesOneCapabilityReading(t *testing.T) {
	s, _ := newTestService(t, BaselineVersion)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "Shop")
	require.NoError(t, err)
	id := insertLegacyCard(t, s, "card", p.ID, "")

	withIDs := s.SupportsSectionIDs()
	rows, err := s.db.QueryContext(ctx, `SELECT `+cardColumns(withIDs)+` FROM kb_cards WHERE id = ?`, id)
	require.NoError(t, err)
	defer rows.Close()

	// The flag flips while the query is in flight.
	s.sectionIDs.Store(true)

	require.True(t, rows.Next())
	c, err := scanCard(rows, withIDs)
	require.NoError(t, err)
	assert.Equal(t, id, c.ID)
	assert.Nil(t, c.Raw.IDsJSON)
}

func TestArchiveSectionSeesColumnAddedElsewhere(t *testing.T) {
	s, db := newTestService(t, BaselineVersion)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "Shop")
	require.NoError(t, err)
	a, err := s.CreateSection(ctx, kanban.Section{ProjectID: p.ID, Name: "A", Color: "#000", Icon: "Tag"})
	require.NoError(t, err)
	b, err := s.CreateSection(ctx, kanban.Section{ProjectID: p.ID, Name: "B", Color: "#000", Icon: "Tag"})
	require.NoError(t, err)

	// Another process upgrades the schema; the cached flag stays stale.
	require.NoError(t, MigrateTo(db, SectionIDsVersion))
	require.False(t, s.SupportsSectionIDs())

	id := insertLegacyCard(t, s, "card", p.ID, "")
	_, err = db.Exec(`UPDATE kb_cards SET section_ids_json = ? WHERE id = ?`,
		kanban.EncodeSectionIDs([]int64{a.ID, b.ID}), id)
	require.NoError(t, err)

	require.NoError(t, s.ArchiveSection(ctx, a.ID))

	var raw string
	require.NoError(t, db.QueryRow(`SELECT section_ids_json FROM kb_cards WHERE id = ?`, id).Scan(&raw))
	assert.JSONEq(t, kanban.EncodeSectionIDs([]int64{b.ID}), raw)
}
