package wind

import "time"

// Constant is a Provider returning the same vector for all time.
type Constant Vector

// Value implements Provider.
func (c Constant) Value(time.Time) (Vector, error) {
	return Vector(c), nil
}
