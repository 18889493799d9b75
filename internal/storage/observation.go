package storage

import (
	"path/filepath"
	"strconv"

	"github.com/teranos/agora/internal/appid"
	"github.com/teranos/agora/internal/model"
)

// ObservationStore is the append-only observation log of §4.5.
type ObservationStore struct {
	root string
}

func NewObservationStore(storageRoot string) *ObservationStore {
	return &ObservationStore{root: storageRoot}
}

func (s *ObservationStore) GetType() string { return StorageType }

func (s *ObservationStore) GetObservationsName(id appid.ID) string {
	return filepath.Join(s.root, id.Path(), "observations.csv")
}

var observationHeader = []string{"client_id", "sec", "nsec", "features", "configuration", "metrics"}

// Append adds one observation row, preserving prior rows.
func (s *ObservationStore) Append(id appid.ID, o model.Observation) error {
	row := []string{
		o.ClientID,
		strconv.FormatInt(o.TimestampSec, 10),
		strconv.FormatInt(o.TimestampNSec, 10),
		encodeFeatureVector(o.Features),
		configurationToValue(o.Configuration),
		encodeMetrics(o.Metrics),
	}
	return appendCSVRow(s.GetObservationsName(id), observationHeader, row)
}

// Load returns every observation ever appended for id.
func (s *ObservationStore) Load(id appid.ID) ([]model.Observation, error) {
	_, rows, err := readCSV(s.GetObservationsName(id))
	if err != nil {
		return nil, err
	}
	out := make([]model.Observation, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		sec, _ := strconv.ParseInt(row[1], 10, 64)
		nsec, _ := strconv.ParseInt(row[2], 10, 64)
		out = append(out, model.Observation{
			ClientID:      row[0],
			TimestampSec:  sec,
			TimestampNSec: nsec,
			Features:      decodeFeatureVector(row[3]),
			Configuration: configurationFromValue(row[4]),
			Metrics:       decodeMetrics(row[5]),
		})
	}
	return out, nil
}

func (s *ObservationStore) Erase(id appid.ID) error {
	return eraseContainer(s.GetObservationsName(id))
}
