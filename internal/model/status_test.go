package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_ValidAtRestCombinations(t *testing.T) {
	cases := []Status{
		Clueless,
		WithInformation,
		WithDoE | Exploring,
		WithDoE | WithCluster | BuildingModel,
		WithModel | WithCluster | BuildingPrediction,
		WithPrediction,
		Recovering,
	}
	for _, s := range cases {
		assert.True(t, s.Valid(), "%s should be valid", s)
	}
}

func TestStatus_InvalidWithoutAtRestOrBuilding(t *testing.T) {
	assert.False(t, Exploring.Valid(), "EXPLORING alone has no at-rest or building label set")
}

func TestStatus_SetClearHas(t *testing.T) {
	s := Clueless
	s = s.Clear(Clueless).Set(WithInformation)
	assert.True(t, s.Has(WithInformation))
	assert.False(t, s.Has(Clueless))
}

func TestStatus_String(t *testing.T) {
	s := WithDoE | WithCluster | BuildingModel
	assert.Contains(t, s.String(), "WITH_DOE")
	assert.Contains(t, s.String(), "WITH_CLUSTER")
	assert.Contains(t, s.String(), "BUILDING_MODEL")
}
