// Package license derives a tenant's license state from vehicle counts. The
// evaluator is a pure function; the vehicle-creation flow consults it before
// permitting a new vehicle.
package license

import "errors"

// ErrCapacityExceeded signals that the hard vehicle limit is reached. It is a
// distinct error kind so callers never conflate it with field validation.
var ErrCapacityExceeded = errors.New("vehicle_capacity_exceeded")

type State string

const (
	StateOK            State = "ok"
	StateAtLimit       State = "at_limit"
	StateInGrace       State = "in_grace"
	StateOverHardLimit State = "over_hard_limit"
)

type Usage struct {
	State           State   `json:"state"`
	ActiveVehicles  int     `json:"active_vehicles"`
	Allowance       int     `json:"allowance"`
	GraceOverage    int     `json:"grace_overage"`
	HardLimit       int     `json:"hard_limit"`
	RemainingToSoft int     `json:"remaining_to_soft"`
	RemainingToHard int     `json:"remaining_to_hard"`
	PercentUsed     float64 `json:"percent_used"`
}

// Evaluate derives the license state for a given active vehicle count. The
// hard limit is always allowance + graceOverage.
func Evaluate(activeVehicles, allowance, graceOverage int) Usage {
	hardLimit := allowance + graceOverage

	usage := Usage{
		ActiveVehicles:  activeVehicles,
		Allowance:       allowance,
		GraceOverage:    graceOverage,
		HardLimit:       hardLimit,
		RemainingToSoft: max(allowance-activeVehicles, 0),
		RemainingToHard: max(hardLimit-activeVehicles, 0),
	}

	switch {
	case activeVehicles < allowance:
		usage.State = StateOK
	case activeVehicles == allowance:
		usage.State = StateAtLimit
	case activeVehicles <= hardLimit:
		usage.State = StateInGrace
	default:
		usage.State = StateOverHardLimit
	}

	if allowance > 0 {
		usage.PercentUsed = float64(activeVehicles) / float64(allowance) * 100
	} else if activeVehicles > 0 {
		usage.PercentUsed = 100
	}

	return usage
}
