package mathx

import "golang.org/x/exp/constraints"

// Vec3 is an x/y/z triple as reported by inertial sensors.
type Vec3[T constraints.Float] [3]T

// Add returns v + o.
func (v Vec3[T]) Add(o Vec3[T]) Vec3[T] {
	return Vec3[T]{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Scale returns v * k.
func (v Vec3[T]) Scale(k T) Vec3[T] {
	return Vec3[T]{v[0] * k, v[1] * k, v[2] * k}
}

// Mean averages xs; it returns 0 and false for an empty slice.
func Mean[T constraints.Float](xs ...T) (T, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	var sum T
	for _, x := range xs {
		sum += x
	}
	return sum / T(len(xs)), true
}
