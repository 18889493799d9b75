package apphandler

import (
	"path/filepath"
	"strconv"

	"github.com/teranos/agora/internal/launcher"
)

// The four env-builders below implement §4.6's per-plugin-kind
// environment file contract. Every plugin also gets STORAGE_TYPE so it
// can pick the matching storage adapter (§4.5's get_type() tag).

func (h *Handler) doeEnv() launcher.EnvConfiguration {
	return launcher.EnvConfiguration{
		Name: "doe",
		Properties: map[string]string{
			"STORAGE_TYPE":         h.storage.GetType(),
			"KNOBS":                h.storage.Description.GetKnobsName(h.id),
			"DOE":                  h.storage.DoE.GetDoEName(h.id),
			"DOE_PARAMETERS":       h.storage.DoE.GetDoEParametersName(h.id),
			"TOTAL_CONFIGURATIONS": h.storage.DoE.GetTotalConfigurationsName(h.id),
		},
	}
}

func (h *Handler) modelEnv(metric string, iteration int) launcher.EnvConfiguration {
	return launcher.EnvConfiguration{
		Name: "model_" + metric,
		Properties: map[string]string{
			"STORAGE_TYPE":     h.storage.GetType(),
			"ITERATION_NUMBER": strconv.Itoa(iteration),
			"METRIC_NAME":      metric,
			"KNOBS":            h.storage.Description.GetKnobsName(h.id),
			"FEATURES":         h.storage.Description.GetFeaturesName(h.id),
			"OBSERVATIONS":     h.storage.Observation.GetObservationsName(h.id),
			"MODEL":            h.storage.ModelArtifact.GetModelArtifactName(h.id, metric),
			"MODEL_PARAMETERS": h.storage.ModelArtifact.GetModelParametersName(h.id, metric),
		},
	}
}

func (h *Handler) clusterEnv() launcher.EnvConfiguration {
	return launcher.EnvConfiguration{
		Name: "cluster",
		Properties: map[string]string{
			"STORAGE_TYPE":       h.storage.GetType(),
			"FEATURES":           h.storage.Description.GetFeaturesName(h.id),
			"OBSERVATIONS":       h.storage.Observation.GetObservationsName(h.id),
			"CLUSTER":            h.storage.Cluster.GetClusterName(h.id),
			"CLUSTER_PARAMETERS": h.storage.Cluster.GetClusterParametersName(h.id),
		},
	}
}

func (h *Handler) predictionEnv() launcher.EnvConfiguration {
	return launcher.EnvConfiguration{
		Name: "prediction",
		Properties: map[string]string{
			"STORAGE_TYPE":         h.storage.GetType(),
			"KNOBS":                h.storage.Description.GetKnobsName(h.id),
			"METRICS":              h.storage.Description.GetMetricsName(h.id),
			"FEATURES":             h.storage.Description.GetFeaturesName(h.id),
			"TOTAL_CONFIGURATIONS": h.storage.DoE.GetTotalConfigurationsName(h.id),
			"CLUSTER":              h.storage.Cluster.GetClusterName(h.id),
			"PREDICTIONS":          h.storage.Prediction.GetPredictionsName(h.id),
			"MODELS_DIRECTORY":     filepath.Join(h.cfg.ModelsRoot, h.id.Path()),
		},
	}
}
