package storage

import (
	"sort"
	"strings"

	"github.com/teranos/agora/internal/model"
)

// encodeFeatureVector/decodeFeatureVector and encodeMetrics/decodeMetrics
// give every row-based sub-store a single deterministic column for a
// variable-width value set, the same simplification applied to
// Configuration in doe.go: a semicolon-joined list rather than one csv
// column per declared knob/feature/metric, since the column set is only
// known from the description store, not from the row itself.
func encodeFeatureVector(fv model.FeatureVector) string {
	return strings.Join(fv, ";")
}

func decodeFeatureVector(s string) model.FeatureVector {
	if s == "" {
		return model.FeatureVector{}
	}
	return strings.Split(s, ";")
}

func encodeMetrics(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, ";")
}

func decodeMetrics(s string) map[string]string {
	out := make(map[string]string)
	if s == "" {
		return out
	}
	for _, pair := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}
