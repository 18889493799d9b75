package model

// FeatureVector is one string per feature, in declaration order.
type FeatureVector []string

// ClusterModel maps centroid_id to a feature vector, produced by the
// clustering plugin when the block declares features.
type ClusterModel struct {
	Centroids map[string]FeatureVector
}

// NewClusterModel returns an empty cluster model.
func NewClusterModel() *ClusterModel {
	return &ClusterModel{Centroids: make(map[string]FeatureVector)}
}

// Empty reports whether no centroids have been loaded/produced yet.
func (c *ClusterModel) Empty() bool {
	return c == nil || len(c.Centroids) == 0
}
