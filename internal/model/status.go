package model

// Status is the application_status bitmask of §3. Several facts are
// simultaneously true of a running handler (e.g. WithDoE|WithCluster|
// BuildingModel), so this is a bitmask rather than a single enum value,
// per the source's own choice and §9's "either is correct" guidance.
type Status uint32

const (
	Recovering Status = 1 << iota
	Clueless
	Undefined
	WithInformation
	Exploring
	BuildingDoE
	WithDoE
	BuildingCluster
	WithCluster
	BuildingModel
	WithModel
	BuildingPrediction
	WithPrediction
)

var allLabels = []Status{
	Recovering, Clueless, Undefined, WithInformation, Exploring,
	BuildingDoE, WithDoE, BuildingCluster, WithCluster,
	BuildingModel, WithModel, BuildingPrediction, WithPrediction,
}

var names = map[Status]string{
	Recovering:         "RECOVERING",
	Clueless:           "CLUELESS",
	Undefined:          "UNDEFINED",
	WithInformation:    "WITH_INFORMATION",
	Exploring:          "EXPLORING",
	BuildingDoE:        "BUILDING_DOE",
	WithDoE:            "WITH_DOE",
	BuildingCluster:    "BUILDING_CLUSTER",
	WithCluster:        "WITH_CLUSTER",
	BuildingModel:      "BUILDING_MODEL",
	WithModel:          "WITH_MODEL",
	BuildingPrediction: "BUILDING_PREDICTION",
	WithPrediction:     "WITH_PREDICTION",
}

// atRestLabels are the "at-rest" labels of testable property #1: a
// status is well-formed only if one of these is set, unless a
// BUILDING_* label is currently set.
var atRestLabels = []Status{Clueless, WithInformation, WithDoE, WithCluster, WithModel, WithPrediction}
var buildingLabels = []Status{BuildingDoE, BuildingCluster, BuildingModel, BuildingPrediction, Recovering}

// Has reports whether every bit in want is set.
func (s Status) Has(want Status) bool {
	return s&want == want
}

// Set returns s with the given bits set.
func (s Status) Set(bits Status) Status {
	return s | bits
}

// Clear returns s with the given bits cleared.
func (s Status) Clear(bits Status) Status {
	return s &^ bits
}

// Valid checks testable property #1: the bitmask is a subset of the
// declared labels, and at least one at-rest label is set unless a
// building label is set.
func (s Status) Valid() bool {
	var known Status
	for _, l := range allLabels {
		known |= l
	}
	if s&^known != 0 {
		return false
	}
	for _, b := range buildingLabels {
		if s.Has(b) {
			return true
		}
	}
	for _, a := range atRestLabels {
		if s.Has(a) {
			return true
		}
	}
	return false
}

// String renders the set bits as "A|B|C" in declaration order, for logs.
func (s Status) String() string {
	if s == 0 {
		return "NONE"
	}
	out := ""
	for _, l := range allLabels {
		if s.Has(l) {
			if out != "" {
				out += "|"
			}
			out += names[l]
		}
	}
	return out
}
