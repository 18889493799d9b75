package storage

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/teranos/agora/internal/appid"
	"github.com/teranos/agora/internal/model"
)

// DescriptionStore persists one logical row per application: its
// knobs, features, metrics and monitors, each as its own container so
// the Plugin Launcher can name them independently (§4.5).
type DescriptionStore struct {
	root string
}

// NewDescriptionStore roots the store at storageRoot.
func NewDescriptionStore(storageRoot string) *DescriptionStore {
	return &DescriptionStore{root: storageRoot}
}

func (s *DescriptionStore) appDir(id appid.ID) string {
	return filepath.Join(s.root, id.Path())
}

func (s *DescriptionStore) GetType() string { return StorageType }

func (s *DescriptionStore) GetKnobsName(id appid.ID) string    { return filepath.Join(s.appDir(id), "knobs.csv") }
func (s *DescriptionStore) GetFeaturesName(id appid.ID) string { return filepath.Join(s.appDir(id), "features.csv") }
func (s *DescriptionStore) GetMetricsName(id appid.ID) string  { return filepath.Join(s.appDir(id), "metrics.csv") }
func (s *DescriptionStore) GetMonitorsName(id appid.ID) string { return filepath.Join(s.appDir(id), "monitors.csv") }

// Store atomically replaces each container of id's description.
func (s *DescriptionStore) Store(id appid.ID, d model.Description) error {
	knobRows := make([][]string, 0, len(d.Knobs))
	for _, k := range d.Knobs {
		knobRows = append(knobRows, []string{k.Name, string(k.Type), strings.Join(k.Values, ";")})
	}
	if err := writeCSVAtomic(s.GetKnobsName(id), []string{"name", "type", "values"}, knobRows); err != nil {
		return err
	}

	featureRows := make([][]string, 0, len(d.Features))
	for _, f := range d.Features {
		featureRows = append(featureRows, []string{f.Name, string(f.Type), strconv.FormatBool(f.Compare)})
	}
	if err := writeCSVAtomic(s.GetFeaturesName(id), []string{"name", "type", "compare"}, featureRows); err != nil {
		return err
	}

	metricRows := make([][]string, 0, len(d.Metrics))
	for _, m := range d.Metrics {
		metricRows = append(metricRows, []string{m.Name, string(m.Type), strconv.FormatBool(m.DistributionModel), strconv.FormatFloat(m.Inertia, 'g', -1, 64), m.PredictionPlugin})
	}
	if err := writeCSVAtomic(s.GetMetricsName(id), []string{"name", "type", "distribution_model", "inertia", "prediction_plugin"}, metricRows); err != nil {
		return err
	}

	monitorRows := make([][]string, 0, len(d.Monitors))
	for _, m := range d.Monitors {
		monitorRows = append(monitorRows, []string{m.Name})
	}
	return writeCSVAtomic(s.GetMonitorsName(id), []string{"name"}, monitorRows)
}

// Load reads back a Description, returning a zero-value (empty)
// Description when no containers exist yet.
func (s *DescriptionStore) Load(id appid.ID) (model.Description, error) {
	var d model.Description

	_, knobRows, err := readCSV(s.GetKnobsName(id))
	if err != nil {
		return d, err
	}
	for _, row := range knobRows {
		if len(row) < 3 {
			continue
		}
		values := []string{}
		if row[2] != "" {
			values = strings.Split(row[2], ";")
		}
		d.Knobs = append(d.Knobs, model.Knob{Name: row[0], Type: model.NumericType(row[1]), Values: values})
	}

	_, featureRows, err := readCSV(s.GetFeaturesName(id))
	if err != nil {
		return d, err
	}
	for _, row := range featureRows {
		if len(row) < 3 {
			continue
		}
		compare, _ := strconv.ParseBool(row[2])
		d.Features = append(d.Features, model.Feature{Name: row[0], Type: model.NumericType(row[1]), Compare: compare})
	}

	_, metricRows, err := readCSV(s.GetMetricsName(id))
	if err != nil {
		return d, err
	}
	for _, row := range metricRows {
		if len(row) < 5 {
			continue
		}
		distributionModel, _ := strconv.ParseBool(row[2])
		inertia, _ := strconv.ParseFloat(row[3], 64)
		d.Metrics = append(d.Metrics, model.Metric{Name: row[0], Type: model.NumericType(row[1]), DistributionModel: distributionModel, Inertia: inertia, PredictionPlugin: row[4]})
	}

	_, monitorRows, err := readCSV(s.GetMonitorsName(id))
	if err != nil {
		return d, err
	}
	for _, row := range monitorRows {
		if len(row) < 1 {
			continue
		}
		d.Monitors = append(d.Monitors, model.Monitor{Name: row[0]})
	}

	return d, nil
}

// Erase removes every container belonging to id's description.
func (s *DescriptionStore) Erase(id appid.ID) error {
	for _, path := range []string{s.GetKnobsName(id), s.GetFeaturesName(id), s.GetMetricsName(id), s.GetMonitorsName(id)} {
		if err := eraseContainer(path); err != nil {
			return err
		}
	}
	return nil
}

// Empty reports whether no description has ever been stored for id.
func (s *DescriptionStore) Empty(id appid.ID) (bool, error) {
	d, err := s.Load(id)
	if err != nil {
		return false, err
	}
	return len(d.Knobs) == 0 && len(d.Metrics) == 0, nil
}
