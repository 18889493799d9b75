package storage

import (
	"path/filepath"

	"github.com/teranos/agora/internal/appid"
	"github.com/teranos/agora/internal/model"
)

// ClusterStore persists the centroid rows of §4.5.
type ClusterStore struct {
	root string
}

func NewClusterStore(storageRoot string) *ClusterStore {
	return &ClusterStore{root: storageRoot}
}

func (s *ClusterStore) GetType() string { return StorageType }

func (s *ClusterStore) GetClusterName(id appid.ID) string {
	return filepath.Join(s.root, id.Path(), "cluster.csv")
}

func (s *ClusterStore) GetClusterParametersName(id appid.ID) string {
	return filepath.Join(s.root, id.Path(), "cluster_parameters.csv")
}

func (s *ClusterStore) Store(id appid.ID, m *model.ClusterModel) error {
	rows := make([][]string, 0, len(m.Centroids))
	for centroidID, fv := range m.Centroids {
		rows = append(rows, []string{centroidID, encodeFeatureVector(fv)})
	}
	return writeCSVAtomic(s.GetClusterName(id), []string{"centroid_id", "features"}, rows)
}

func (s *ClusterStore) Load(id appid.ID) (*model.ClusterModel, error) {
	_, rows, err := readCSV(s.GetClusterName(id))
	if err != nil {
		return nil, err
	}
	m := model.NewClusterModel()
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		m.Centroids[row[0]] = decodeFeatureVector(row[1])
	}
	return m, nil
}

func (s *ClusterStore) Erase(id appid.ID) error {
	return eraseContainer(s.GetClusterName(id))
}
