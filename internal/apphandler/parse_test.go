package apphandler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/agora/internal/model"
)

func TestParseDescription_RoundTripsThroughEncode(t *testing.T) {
	d := model.Description{
		Knobs: []model.Knob{
			{Name: "threads", Type: model.NumericType("int"), Values: []string{"1", "2", "4"}},
		},
		Features: []model.Feature{
			{Name: "input_size", Type: model.NumericType("float"), Compare: true},
		},
		Metrics: []model.Metric{
			{Name: "latency", Type: model.NumericType("float"), DistributionModel: false, Inertia: 0.1, PredictionPlugin: "latency_model"},
		},
		Monitors: []model.Monitor{{Name: "cpu_temp"}},
	}

	payload := encodeDescription(d)
	got, err := parseDescription(payload)
	require.NoError(t, err)
	assert.True(t, got.Equal(d))
}

func TestParseDescription_RejectsEmptyPayload(t *testing.T) {
	_, err := parseDescription("")
	assert.Error(t, err)
}

func TestParseDescription_RejectsUnknownTag(t *testing.T) {
	_, err := parseDescription("bogus=x,y,z")
	assert.Error(t, err)
}

func TestParseDescription_RejectsMalformedKnob(t *testing.T) {
	_, err := parseDescription("knob=threads,int")
	assert.Error(t, err)
}

func TestParseObservation_ParsesWithoutFeatures(t *testing.T) {
	obs, err := parseObservation("client-1", "10@500@@threads=2;cache=off@latency=3.5", false)
	require.NoError(t, err)
	assert.Equal(t, int64(10), obs.TimestampSec)
	assert.Equal(t, int64(500), obs.TimestampNSec)
	assert.Empty(t, obs.Features)
	assert.Equal(t, "2", obs.Configuration["threads"])
	assert.Equal(t, "3.5", obs.Metrics["latency"])
}

func TestParseObservation_RequiresFeaturesWhenDeclared(t *testing.T) {
	_, err := parseObservation("client-1", "10@500@@threads=2@latency=3.5", true)
	assert.Error(t, err)
}

func TestParseObservation_RejectsFeaturesWhenNotDeclared(t *testing.T) {
	_, err := parseObservation("client-1", "10@500@0.5;0.2@threads=2@latency=3.5", false)
	assert.Error(t, err)
}

func TestParseObservation_RejectsWrongFieldCount(t *testing.T) {
	_, err := parseObservation("client-1", "10@500@threads=2", false)
	assert.Error(t, err)
}

func TestConfigurationWireRoundTrip(t *testing.T) {
	cfg := model.Configuration{"threads": "4", "cache": "on"}
	assert.Equal(t, cfg, wireToConfiguration(configurationToWire(cfg)))
}
