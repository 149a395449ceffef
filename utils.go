package pe

import "golang.org/x/exp/constraints"

// stringInSlice checks weather a string exists in a slice of strings.
func stringInSlice(a string, list []string) bool {
	for _, b := range list {
		if b == a {
			return true
		}
	}
	return false
}

func maxOf[T constraints.Ordered](x, y T) T {
	if x < y {
		return y
	}
	return x
}

// inRange reports whether lo <= v <= hi.
func inRange[T constraints.Integer](v, lo, hi T) bool {
	return lo <= v && v <= hi
}
