package catalog

import (
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"Cotton", "Wheat"}, c.Crops())

	name, stages, ok := c.Pipeline("wheat")
	require.True(t, ok)
	assert.Equal(t, "Wheat", name)
	assert.Len(t, stages, 6)
	assert.Equal(t, "Soil Sampling & Testing", stages[0].Title)
	assert.Equal(t, 200, stages[5].Points)

	st, ok := c.Stage("COTTON", 4)
	require.True(t, ok)
	assert.Equal(t, "Pest Monitoring", st.Title)
	assert.Equal(t, "pest", st.Category)

	_, ok = c.Stage("Cotton", 6)
	assert.False(t, ok)
	_, _, ok = c.Pipeline("rice")
	assert.False(t, ok)

	assert.GreaterOrEqual(t, len(c.Badges()), 40)
	b, ok := c.Badge("eco-legend")
	require.True(t, ok)
	assert.Equal(t, models.CriteriaLegendStatus, b.Criteria.Type)
}

func TestFromDirMatchesEmbedded(t *testing.T) {
	def, err := Default()
	require.NoError(t, err)
	dir, err := FromDir("data")
	require.NoError(t, err)

	if diff := cmp.Diff(def.Crops(), dir.Crops()); diff != "" {
		t.Errorf("crops mismatch (-embedded +dir):\n%s", diff)
	}
	for _, crop := range def.Crops() {
		_, want, _ := def.Pipeline(crop)
		_, got, _ := dir.Pipeline(crop)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s pipeline mismatch (-embedded +dir):\n%s", crop, diff)
		}
	}
	if diff := cmp.Diff(def.Badges(), dir.Badges()); diff != "" {
		t.Errorf("badges mismatch (-embedded +dir):\n%s", diff)
	}
}

func TestPipelineReturnsCopy(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	_, stages, _ := c.Pipeline("Wheat")
	stages[0].Title = "changed"
	_, again, _ := c.Pipeline("Wheat")
	assert.Equal(t, "Soil Sampling & Testing", again[0].Title)
}

func TestLoadRejectsBadCatalogs(t *testing.T) {
	okBadges := "badges:\n  - {id: a, name: A, criteria: {type: streak, threshold: 1}}\n"
	okPipes := "crops:\n  - name: Rice\n    stages:\n      - {id: 1, title: T, points: 10}\n"

	cases := map[string]fstest.MapFS{
		"gap in stage ids": {
			pipelinesFile: {Data: []byte("crops:\n  - name: Rice\n    stages:\n      - {id: 2, title: T, points: 10}\n")},
			badgesFile:    {Data: []byte(okBadges)},
		},
		"unknown criteria": {
			pipelinesFile: {Data: []byte(okPipes)},
			badgesFile:    {Data: []byte("badges:\n  - {id: a, criteria: {type: karma, threshold: 1}}\n")},
		},
		"duplicate badge": {
			pipelinesFile: {Data: []byte(okPipes)},
			badgesFile:    {Data: []byte(okBadges + "  - {id: a, name: B, criteria: {type: streak, threshold: 2}}\n")},
		},
		"missing file": {
			pipelinesFile: {Data: []byte(okPipes)},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(fsys)
			assert.Error(t, err)
		})
	}

	c, err := Load(fstest.MapFS{
		pipelinesFile: {Data: []byte(okPipes)},
		badgesFile:    {Data: []byte(okBadges)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Rice"}, c.Crops())
}
