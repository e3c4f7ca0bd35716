// Package wind supplies wind field values to movers.
package wind

import "time"

// Vector is a wind value: east (U) and north (V) components in m/s.
type Vector struct {
	U float64
	V float64
}

// Provider yields the wind vector for a model time. Implementations may
// be constant or time-varying. The host owns the provider's lifetime;
// consumers only borrow it.
type Provider interface {
	Value(t time.Time) (Vector, error)
}
