package assembler

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fra-engine/internal/fra/sections"
	"fra-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func strPtr(s string) *string { return &s }

func createTestStamp() BuildStamp {
	return BuildStamp{
		GeneratedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Version:     "1.4.0",
		BuildID:     "abc123",
		InstanceID:  "inst-1",
	}
}

func createTestData() *models.CanonicalFRAData {
	d := models.NewCanonicalFRAData()
	d.PremisesName = strPtr("High Street Store")
	d.FloorArea = models.ParseNumeric("80 m2")
	d.FloorAreaComment = strPtr("ground floor only")
	d.IgnitionSources = []string{"Kettle", "Heater"}
	likelihood, consequence := models.LikelihoodMedium, models.ConsequenceModerate
	d.Likelihood, d.Consequence = &likelihood, &consequence
	return d
}

func findSection(t *testing.T, out []Section, id string) Section {
	t.Helper()
	for _, s := range out {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("section %q not emitted", id)
	return Section{}
}

func findBlock(blocks []Block, label string) *Block {
	for i := range blocks {
		if blocks[i].Label == label {
			return &blocks[i]
		}
	}
	return nil
}

func tables(blocks []Block) []*Table {
	var out []*Table
	for _, b := range blocks {
		if b.Kind == BlockTable {
			out = append(out, b.Table)
		}
	}
	return out
}

// ==========================
// Core Functionality Tests
// ==========================

func TestBuild_FollowsRegistry(t *testing.T) {
	d := createTestData()
	out := Build(d, models.ResolvedAssets{}, createTestStamp())

	ids := make([]string, len(out))
	for i, s := range out {
		ids[i] = s.ID
		assert.NotNil(t, s.Blocks, s.ID)
	}
	assert.Equal(t, sections.IDs(sections.Sections(d)), ids)
	assert.NotContains(t, ids, sections.Sprinklers)
	assert.False(t, out[len(out)-1].PageBreakAfter)
}

func TestBuild_SprinklerSectionFollowsAnswer(t *testing.T) {
	d := createTestData()
	yes := true
	d.HasSprinklers = &yes
	d.SprinklerDescription = strPtr("Wet pipe system")

	out := Build(d, models.ResolvedAssets{}, createTestStamp())
	s := findSection(t, out, sections.Sprinklers)
	assert.Equal(t, "Wet pipe system", findBlock(s.Blocks, "Sprinkler system").Text)
	assert.Equal(t, "Yes", findBlock(findSection(t, out, sections.FireSafety).Blocks, "Sprinkler system installed").Text)
}

func TestBuild_MissingValuesReadNotRecorded(t *testing.T) {
	out := Build(models.NewCanonicalFRAData(), models.ResolvedAssets{}, createTestStamp())

	cover := findSection(t, out, sections.Cover)
	assert.Equal(t, "Not recorded", findBlock(cover.Blocks, "Premises").Text)

	analysis := findSection(t, out, sections.RiskAnalysis)
	fuel := findBlock(analysis.Blocks, "Sources of fuel")
	require.NotNil(t, fuel)
	assert.Empty(t, fuel.Items)
	assert.Equal(t, "None recorded", fuel.Text)
}

func TestBuild_TablesAlwaysPresent(t *testing.T) {
	out := Build(models.NewCanonicalFRAData(), models.ResolvedAssets{}, createTestStamp())

	for _, id := range []string{sections.MeansOfEscape, sections.FireResistance, sections.RiskRating, sections.ActionPlan} {
		t.Run(id, func(t *testing.T) {
			tbls := tables(findSection(t, out, id).Blocks)
			require.Len(t, tbls, 1)
			assert.NotEmpty(t, tbls[0].Rows)
		})
	}

	plan := tables(findSection(t, out, sections.ActionPlan).Blocks)[0]
	assert.Equal(t, [][]string{{"", "No actions recorded", "", ""}}, plan.Rows)
}

func TestBuild_RiskRating(t *testing.T) {
	out := Build(createTestData(), models.ResolvedAssets{}, createTestStamp())
	s := findSection(t, out, sections.RiskRating)

	assert.Equal(t, "Moderate", findBlock(s.Blocks, "Overall risk level").Text)
	matrix := tables(s.Blocks)[0]
	assert.Equal(t, "Moderate (assessed)", matrix.Rows[1][2])
	assert.Equal(t, "Trivial", matrix.Rows[0][1])
}

func TestBuild_PremisesAndStamp(t *testing.T) {
	d := createTestData()
	updated := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	d.CustomDataUpdatedAt = &updated
	stamp := createTestStamp()

	out := Build(d, models.ResolvedAssets{}, stamp)
	premises := findSection(t, out, sections.Premises)
	assert.Equal(t, "80 m2 (ground floor only)", findBlock(premises.Blocks, "Floor area").Text)
	assert.True(t, strings.Contains(premises.Blocks[len(premises.Blocks)-1].Text, "2026-02-01T12:00:00Z"))

	cover := findSection(t, out, sections.Cover)
	last := cover.Blocks[len(cover.Blocks)-1]
	assert.Equal(t, BlockStamp, last.Kind)
	assert.Equal(t, "Generated: 2026-03-01T09:30:00Z | Build: 1.4.0+abc123 | Instance: inst-1", last.Text)
}

func TestBuild_Photos(t *testing.T) {
	assets := models.ResolvedAssets{
		Order: []string{"panel", "empty", "exits"},
		Assets: models.AssetMap{
			"panel": {{Path: "fra/inst-1/photos/panel/a.jpg", Filename: "a.jpg"}},
			"exits": {{Path: "fra/inst-1/photos/exits/b.jpg", Filename: "b.jpg"}},
			"empty": {},
		},
	}

	out := Build(createTestData(), assets, createTestStamp())
	photos := findSection(t, out, sections.Photos)
	require.Len(t, photos.Blocks, 1)
	groups := photos.Blocks[0].Photos
	require.Len(t, groups, 2)
	assert.Equal(t, "panel", groups[0].Placeholder)
	assert.Equal(t, "exits", groups[1].Placeholder)

	none := findSection(t, Build(createTestData(), models.ResolvedAssets{}, createTestStamp()), sections.Photos)
	assert.Equal(t, "No photographs recorded.", none.Blocks[0].Text)
}

func TestPlaceholderTitle(t *testing.T) {
	assert.Equal(t, "Fire Exits", PlaceholderTitle("fire-exits"))
	assert.Equal(t, "Alarm Panel", PlaceholderTitle("alarm_panel"))
	assert.Equal(t, "", PlaceholderTitle(""))
}
