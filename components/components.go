// Package components defines ECS components for tracked Lagrangian elements.
package components

// Kind classifies an element's population: deterministic forecast motion
// or perturbed uncertainty motion.
type Kind uint8

const (
	KindForecast Kind = iota
	KindUncertainty
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindForecast:
		return "forecast"
	case KindUncertainty:
		return "uncertainty"
	default:
		return "unknown"
	}
}

// StatusCode tracks an element's lifecycle state.
type StatusCode uint8

const (
	StatusNotReleased StatusCode = iota
	StatusInWater
	StatusOffMap
	StatusToBeRemoved
)

// String returns the status code's name.
func (c StatusCode) String() string {
	switch c {
	case StatusNotReleased:
		return "not_released"
	case StatusInWater:
		return "in_water"
	case StatusOffMap:
		return "off_map"
	case StatusToBeRemoved:
		return "to_be_removed"
	default:
		return "unknown"
	}
}

// Position is an element's geographic position in micro-degrees
// (degrees scaled by 1e6, the fixed-point encoding used throughout).
type Position struct {
	Lon float64
	Lat float64
}

// Transport holds per-element transport coefficients.
type Transport struct {
	Z       float64 // depth below surface in meters; 0 = at the surface
	Windage float64 // fraction of wind speed transferred to surface drift
}

// Element identifies an element within its spill set.
type Element struct {
	ID    uint32
	Spill int // index of the source spill
	Kind  Kind
}

// Status holds an element's lifecycle state.
type Status struct {
	Code StatusCode
}
