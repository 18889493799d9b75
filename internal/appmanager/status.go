package appmanager

import "github.com/teranos/agora/internal/model"

// hasBuildingBit reports whether any BUILDING_* bit or RECOVERING is
// set, used by EvictIdle to protect handlers with an in-flight plugin
// launch or recovery.
func hasBuildingBit(s model.Status) bool {
	for _, b := range []model.Status{
		model.BuildingDoE, model.BuildingCluster, model.BuildingModel, model.BuildingPrediction, model.Recovering,
	} {
		if s.Has(b) {
			return true
		}
	}
	return false
}
