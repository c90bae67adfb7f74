package processor

import "math"

// Priority constants from spec.md §4.4's concrete mapping: earlier pipeline
// stages get smaller (more urgent) numbers.
const (
	PriorityDecomposition = 1
	PrioritySynthesis      = 10
	PriorityConclusion     = 11

	importanceMin = 2
	importanceMax = 9
)

// ImportancePriority linearly maps an oracle-reported importance in [0,1]
// into the reserved band [2, 9] research/analysis nodes occupy.
func ImportancePriority(importance float64) int {
	if importance < 0 {
		importance = 0
	}
	if importance > 1 {
		importance = 1
	}
	span := float64(importanceMax - importanceMin)
	return importanceMin + int(math.Round(importance*span))
}
