package storage

import (
	"path/filepath"

	"github.com/teranos/agora/internal/appid"
	"github.com/teranos/agora/internal/model"
)

// PredictionStore persists the prediction table of §4.5: one row per
// (prediction_id, metric) pair, since PredictionModel.PredictedResults
// carries one mean/stddev per metric under each prediction id.
type PredictionStore struct {
	root string
}

func NewPredictionStore(storageRoot string) *PredictionStore {
	return &PredictionStore{root: storageRoot}
}

func (s *PredictionStore) GetType() string { return StorageType }

func (s *PredictionStore) GetPredictionsName(id appid.ID) string {
	return filepath.Join(s.root, id.Path(), "predictions.csv")
}

var predictionHeader = []string{"prediction_id", "configuration", "features", "metric", "mean", "stddev"}

func (s *PredictionStore) Store(id appid.ID, m *model.PredictionModel) error {
	var rows [][]string
	for pid, metrics := range m.PredictedResults {
		cfg := m.Configurations[pid]
		fv := m.Features[pid]
		for metricName, pred := range metrics {
			rows = append(rows, []string{pid, configurationToValue(cfg), encodeFeatureVector(fv), metricName, pred.Mean, pred.StdDev})
		}
	}
	return writeCSVAtomic(s.GetPredictionsName(id), predictionHeader, rows)
}

func (s *PredictionStore) Load(id appid.ID) (*model.PredictionModel, error) {
	_, rows, err := readCSV(s.GetPredictionsName(id))
	if err != nil {
		return nil, err
	}
	m := model.NewPredictionModel()
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		pid := row[0]
		m.Configurations[pid] = configurationFromValue(row[1])
		if row[2] != "" {
			m.Features[pid] = decodeFeatureVector(row[2])
		}
		if _, ok := m.PredictedResults[pid]; !ok {
			m.PredictedResults[pid] = make(map[string]model.MetricPrediction)
		}
		m.PredictedResults[pid][row[3]] = model.MetricPrediction{Mean: row[4], StdDev: row[5]}
	}
	return m, nil
}

func (s *PredictionStore) Erase(id appid.ID) error {
	return eraseContainer(s.GetPredictionsName(id))
}
