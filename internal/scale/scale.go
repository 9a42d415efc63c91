// Package scale maps data domains onto output coordinates.
package scale

import "math"

// Linear maps a continuous domain onto a continuous range.
type Linear struct {
	Domain [2]float64
	Range  [2]float64
	Clamp  bool
}

// NewLinear creates an unclamped linear scale.
func NewLinear(d0, d1, r0, r1 float64) Linear {
	return Linear{Domain: [2]float64{d0, d1}, Range: [2]float64{r0, r1}}
}

// Map converts a domain value to the range. A degenerate domain maps every value
// to the middle of the range.
func (l Linear) Map(v float64) float64 {
	t := 0.5
	if span := l.Domain[1] - l.Domain[0]; span != 0 {
		t = (v - l.Domain[0]) / span
	}
	if l.Clamp {
		t = math.Max(0, math.Min(1, t))
	}
	return l.Range[0] + t*(l.Range[1]-l.Range[0])
}

// Band maps discrete years onto evenly spaced bands. Padding applies both between
// bands and at the outer edges; bands are centered in the range.
type Band struct {
	Domain  []int
	Range   [2]float64
	Padding float64
}

// Step returns the distance between the starts of adjacent bands.
func (b Band) Step() float64 {
	start, stop := b.bounds()
	n := float64(len(b.Domain))
	return (stop - start) / math.Max(1, n+b.Padding)
}

// Bandwidth returns the width of each band.
func (b Band) Bandwidth() float64 {
	return b.Step() * (1 - b.Padding)
}

// Map returns the start of the band for v, or false if v is not in the domain.
func (b Band) Map(v int) (float64, bool) {
	idx := -1
	for i, d := range b.Domain {
		if d == v {
			idx = i
			break
		}
	}
	if idx == -1 {
		return 0, false
	}

	start, stop := b.bounds()
	n := float64(len(b.Domain))
	step := b.Step()
	start += (stop - start - step*(n-b.Padding)) * 0.5

	if b.Range[1] < b.Range[0] {
		idx = len(b.Domain) - 1 - idx
	}
	return start + step*float64(idx), true
}

func (b Band) bounds() (float64, float64) {
	if b.Range[1] < b.Range[0] {
		return b.Range[1], b.Range[0]
	}
	return b.Range[0], b.Range[1]
}
