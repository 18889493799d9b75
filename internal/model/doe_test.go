package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoEModel_RoundRobinSurvivesDeletion(t *testing.T) {
	d := NewDoEModel()
	d.Insert("cfg1", Configuration{"threads": "1"}, 2)
	d.Insert("cfg2", Configuration{"threads": "2"}, 2)
	d.Insert("cfg3", Configuration{"threads": "4"}, 2)

	row, ok := d.Next()
	require.True(t, ok)
	assert.Equal(t, "cfg1", row.ConfigurationID)

	// Exhaust cfg1 entirely; cursor must move to a surviving row.
	require.NoError(t, d.UpdateConfig("cfg1"))
	require.NoError(t, d.UpdateConfig("cfg1"))

	row, ok = d.Next()
	require.True(t, ok)
	assert.Greater(t, row.RemainingExplorations, 0)
	assert.NotEqual(t, "cfg1", row.ConfigurationID)
}

func TestDoEModel_ExhaustedRowRemoved(t *testing.T) {
	d := NewDoEModel()
	d.Insert("cfg1", Configuration{"threads": "1"}, 1)

	require.NoError(t, d.UpdateConfig("cfg1"))

	_, ok := d.Lookup(Configuration{"threads": "1"})
	assert.False(t, ok)
	assert.True(t, d.Empty())

	_, ok = d.Next()
	assert.False(t, ok, "cursor must be at end() once every row is exhausted")
}

func TestDoEModel_FullExplorationCycle(t *testing.T) {
	// Mirrors scenario S1: three configurations, two explorations each,
	// covered twice by a single client before the doe empties out.
	d := NewDoEModel()
	d.Insert("cfg1", Configuration{"threads": "1"}, 2)
	d.Insert("cfg2", Configuration{"threads": "2"}, 2)
	d.Insert("cfg3", Configuration{"threads": "4"}, 2)

	for _, id := range []string{"cfg1", "cfg2", "cfg3", "cfg1", "cfg2", "cfg3"} {
		require.NoError(t, d.UpdateConfig(id))
	}

	assert.True(t, d.Empty())
	_, ok := d.Next()
	assert.False(t, ok)
}

func TestDoEModel_AdvanceWrapsAcrossSurvivingRows(t *testing.T) {
	d := NewDoEModel()
	d.Insert("cfg1", Configuration{"threads": "1"}, 5)
	d.Insert("cfg2", Configuration{"threads": "2"}, 5)

	row, _ := d.Next()
	first := row.ConfigurationID
	d.Advance()
	row, _ = d.Next()
	assert.NotEqual(t, first, row.ConfigurationID)
	d.Advance()
	row, _ = d.Next()
	assert.Equal(t, first, row.ConfigurationID, "cursor wraps back to the first row")
}

func TestConfiguration_Clone(t *testing.T) {
	cfg := Configuration{"threads": "2"}
	clone := cfg.Clone()
	clone["threads"] = "4"
	assert.Equal(t, "2", cfg["threads"])
}
