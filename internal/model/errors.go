package model

import "github.com/teranos/agora/internal/errors"

func errPredictionInvariant(predictionID, missingIn string) error {
	return errors.Newf("prediction %q has predicted results but no matching entry in %s", predictionID, missingIn)
}
