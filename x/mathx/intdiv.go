package mathx

import "golang.org/x/exp/constraints"

// Divides reports whether b is a non-zero exact multiple of a.
func Divides[T constraints.Unsigned](a, b T) bool {
	return a != 0 && b != 0 && b%a == 0
}
