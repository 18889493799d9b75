package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/agora/internal/appid"
	"github.com/teranos/agora/internal/model"
)

func testAppID(t *testing.T) appid.ID {
	id, err := appid.New("myapp", "blockA", "1.0")
	require.NoError(t, err)
	return id
}

func TestDescriptionStore_StoreLoadRoundTrip(t *testing.T) {
	store := NewDescriptionStore(t.TempDir())
	id := testAppID(t)

	d := model.Description{
		Knobs:    []model.Knob{{Name: "threads", Type: model.TypeInt, Values: []string{"1", "2", "4"}}},
		Features: []model.Feature{{Name: "input_size", Type: model.TypeInt, Compare: true}},
		Metrics:  []model.Metric{{Name: "latency", Type: model.TypeFloat, DistributionModel: true, Inertia: 0.5, PredictionPlugin: "predict_latency"}},
		Monitors: []model.Monitor{{Name: "cpu_temp"}},
	}

	require.NoError(t, store.Store(id, d))

	loaded, err := store.Load(id)
	require.NoError(t, err)
	assert.True(t, d.Equal(loaded))
}

func TestDescriptionStore_LoadMissingReturnsEmpty(t *testing.T) {
	store := NewDescriptionStore(t.TempDir())
	id := testAppID(t)

	loaded, err := store.Load(id)
	require.NoError(t, err)
	assert.Empty(t, loaded.Knobs)
	assert.Empty(t, loaded.Metrics)

	empty, err := store.Empty(id)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestDoEStore_StoreLoadRoundTrip(t *testing.T) {
	store := NewDoEStore(t.TempDir())
	id := testAppID(t)

	m := model.NewDoEModel()
	m.Insert("cfg1", model.Configuration{"threads": "1"}, 2)
	m.Insert("cfg2", model.Configuration{"threads": "2"}, 0)

	require.NoError(t, store.Store(id, m, 2))

	loaded, total, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, loaded.Len()) // cfg2 was inserted with remaining=0, so Insert dropped it and only cfg1 was stored

	rows := loaded.Rows()
	require.Len(t, rows, 1)
}

func TestObservationStore_AppendAccumulates(t *testing.T) {
	store := NewObservationStore(t.TempDir())
	id := testAppID(t)

	o1 := model.Observation{ClientID: "c1", TimestampSec: 1, Configuration: model.Configuration{"threads": "1"}, Metrics: map[string]string{"latency": "10"}}
	o2 := model.Observation{ClientID: "c2", TimestampSec: 2, Configuration: model.Configuration{"threads": "2"}, Metrics: map[string]string{"latency": "20"}}

	require.NoError(t, store.Append(id, o1))
	require.NoError(t, store.Append(id, o2))

	loaded, err := store.Load(id)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "c1", loaded[0].ClientID)
	assert.Equal(t, "c2", loaded[1].ClientID)
	assert.Equal(t, "10", loaded[0].Metrics["latency"])
}

func TestClusterStore_StoreLoadRoundTrip(t *testing.T) {
	store := NewClusterStore(t.TempDir())
	id := testAppID(t)

	m := model.NewClusterModel()
	m.Centroids["centroid-1"] = model.FeatureVector{"1.0", "2.0"}

	require.NoError(t, store.Store(id, m))
	loaded, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, model.FeatureVector{"1.0", "2.0"}, loaded.Centroids["centroid-1"])
}

func TestPredictionStore_StoreLoadRoundTrip(t *testing.T) {
	store := NewPredictionStore(t.TempDir())
	id := testAppID(t)

	m := model.NewPredictionModel()
	m.Configurations["pred-1"] = model.Configuration{"threads": "1"}
	m.PredictedResults["pred-1"] = map[string]model.MetricPrediction{"latency": {Mean: "10.0", StdDev: "0.5"}}

	require.NoError(t, store.Store(id, m))
	loaded, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "10.0", loaded.PredictedResults["pred-1"]["latency"].Mean)
	assert.Equal(t, "1", loaded.Configurations["pred-1"]["threads"])
}

func TestHandler_LoadRecoveryStateDetectsInconsistency(t *testing.T) {
	root := t.TempDir()
	h := NewHandler(root)
	id := testAppID(t)

	m := model.NewDoEModel()
	m.Insert("cfg1", model.Configuration{"threads": "1"}, 1)
	require.NoError(t, h.DoE.Store(id, m, 1))

	rs, err := h.LoadRecoveryState(id)
	require.NoError(t, err)
	assert.Error(t, rs.Validate(false))
}

func TestHandler_EraseApplicationRemovesAllContainers(t *testing.T) {
	root := t.TempDir()
	h := NewHandler(root)
	id := testAppID(t)

	require.NoError(t, h.Description.Store(id, model.Description{Knobs: []model.Knob{{Name: "x", Type: model.TypeInt}}}))
	require.NoError(t, h.EraseApplication(id))

	empty, err := h.Description.Empty(id)
	require.NoError(t, err)
	assert.True(t, empty)
}
