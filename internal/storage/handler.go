package storage

import (
	"github.com/teranos/agora/internal/appid"
	"github.com/teranos/agora/internal/errors"
	"github.com/teranos/agora/internal/model"
)

// Handler is the Filesystem Handler facade of §4.5, composing the six
// tabular sub-stores behind one root directory.
type Handler struct {
	Description *DescriptionStore
	DoE         *DoEStore
	Observation *ObservationStore
	Cluster     *ClusterStore
	Prediction  *PredictionStore
	ModelArtifact *ModelArtifactStore
}

// NewHandler roots every sub-store at storageRoot. Callers validate that
// storageRoot exists (or is creatable) before constructing a Handler.
func NewHandler(storageRoot string) *Handler {
	return &Handler{
		Description:   NewDescriptionStore(storageRoot),
		DoE:           NewDoEStore(storageRoot),
		Observation:   NewObservationStore(storageRoot),
		Cluster:       NewClusterStore(storageRoot),
		Prediction:    NewPredictionStore(storageRoot),
		ModelArtifact: NewModelArtifactStore(storageRoot),
	}
}

// GetType reports the storage implementation tag passed to plugins.
func (h *Handler) GetType() string { return StorageType }

// EraseApplication removes id's description, doe, total-configurations,
// cluster, observation and prediction containers, used on recovery when
// the persisted state is inconsistent. Per-metric model artifacts and
// the plugin parameter containers are left in place.
func (h *Handler) EraseApplication(id appid.ID) error {
	if err := h.Description.Erase(id); err != nil {
		return errors.Wrapf(err, "failed to erase description for %s", id)
	}
	if err := h.DoE.Erase(id); err != nil {
		return errors.Wrapf(err, "failed to erase doe state for %s", id)
	}
	if err := h.Cluster.Erase(id); err != nil {
		return errors.Wrapf(err, "failed to erase cluster state for %s", id)
	}
	if err := h.Observation.Erase(id); err != nil {
		return errors.Wrapf(err, "failed to erase observations for %s", id)
	}
	if err := h.Prediction.Erase(id); err != nil {
		return errors.Wrapf(err, "failed to erase predictions for %s", id)
	}
	return nil
}

// RecoveryState is the snapshot loaded on an Application Handler's first
// reference after restart.
type RecoveryState struct {
	Description model.Description
	DoE         *model.DoEModel
	TotalConfigurations int
	Cluster     *model.ClusterModel
	Observations []model.Observation
	Prediction  *model.PredictionModel
}

// LoadRecoveryState reads the description, doe, cluster, observation
// and prediction stores for id, in that order. Model artifacts are not
// read here; the Application Handler checks them per metric. Missing
// containers come back as empty models, never errors;
// Validate below is what decides whether the result is inconsistent.
func (h *Handler) LoadRecoveryState(id appid.ID) (RecoveryState, error) {
	var rs RecoveryState
	var err error

	if rs.Description, err = h.Description.Load(id); err != nil {
		return rs, errors.Wrapf(err, "failed to load description for %s", id)
	}
	if rs.DoE, rs.TotalConfigurations, err = h.DoE.Load(id); err != nil {
		return rs, errors.Wrapf(err, "failed to load doe state for %s", id)
	}
	if rs.Cluster, err = h.Cluster.Load(id); err != nil {
		return rs, errors.Wrapf(err, "failed to load cluster state for %s", id)
	}
	if rs.Observations, err = h.Observation.Load(id); err != nil {
		return rs, errors.Wrapf(err, "failed to load observations for %s", id)
	}
	if rs.Prediction, err = h.Prediction.Load(id); err != nil {
		return rs, errors.Wrapf(err, "failed to load predictions for %s", id)
	}

	return rs, nil
}

// Validate checks §4.2's "inconsistent storage on recovery" edge case:
// artifacts exist but do not form a valid state (e.g. a model without a
// description).
func (rs RecoveryState) Validate(featuresEnabled bool) error {
	hasDescription := len(rs.Description.Knobs) > 0 || len(rs.Description.Metrics) > 0
	hasDoEOrPrediction := !rs.DoE.Empty() || !rs.Prediction.Empty()

	if hasDoEOrPrediction && !hasDescription {
		return errors.WithDetail(errors.ErrInconsistentState, "doe or prediction state exists without a description")
	}
	return rs.Prediction.Validate(featuresEnabled)
}
