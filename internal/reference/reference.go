// Package reference implements the sequential bubble sort the distributed
// simulation must agree with: same comparisons, same swap count.
package reference

import (
	"golang.org/x/exp/slices"

	"github.com/dreamware/bubblering/internal/cluster"
)

// Result is the outcome of a sequential sort.
type Result struct {
	Elements []cluster.Element
	Swaps    uint64
}

// Values returns the sorted values.
func (r Result) Values() []float64 {
	out := make([]float64, len(r.Elements))
	for i, e := range r.Elements {
		out[i] = e.Val
	}
	return out
}

// Sort bubble-sorts a copy of values. Pass i compares positions 0..n-2-i and
// swaps only strictly greater neighbours, so equal values keep their order.
// Elements are tagged with their input index.
func Sort(values []float64) Result {
	a := make([]cluster.Element, len(values))
	for i, v := range values {
		a[i] = cluster.Element{Nr: i, Val: v}
	}
	return SortElements(a)
}

// SortElements is Sort for already tagged elements.
func SortElements(elements []cluster.Element) Result {
	a := slices.Clone(elements)
	var swaps uint64
	for i := len(a) - 1; i > 0; i-- {
		for j := 0; j < i; j++ {
			if a[j].Greater(a[j+1]) {
				a[j], a[j+1] = a[j+1], a[j]
				swaps++
			}
		}
	}
	return Result{Elements: a, Swaps: swaps}
}

// Inversions counts pairs i < j with values[i] > values[j]. Bubble sort
// performs exactly one swap per inversion.
func Inversions(values []float64) uint64 {
	var n uint64
	for i := range values {
		for j := i + 1; j < len(values); j++ {
			if values[i] > values[j] {
				n++
			}
		}
	}
	return n
}
