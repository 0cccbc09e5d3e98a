package minhash

import "fmt"

// Params splits a signature into Bands bands of Rows slots each.
type Params struct {
	Bands int
	Rows  int
}

// Validate checks the params fit a signature of the given width.
func (p Params) Validate(width int) error {
	if p.Bands <= 0 || p.Rows <= 0 {
		return fmt.Errorf("bands and rows must be positive, got %d/%d", p.Bands, p.Rows)
	}
	if p.Bands*p.Rows > width {
		return fmt.Errorf("bands*rows %d exceeds signature width %d", p.Bands*p.Rows, width)
	}
	return nil
}

const integrationSteps = 100

// OptimalParams picks the band/row split minimizing the equally weighted
// false positive and false negative probability mass around threshold.
func OptimalParams(width int, threshold float64) Params {
	best := Params{Bands: 1, Rows: width}
	minErr := 2.0
	for b := 1; b <= width; b++ {
		for r := 1; r <= width/b; r++ {
			fp := integrate(func(s float64) float64 {
				return 1 - pow(1-pow(s, r), b)
			}, 0, threshold)
			fn := integrate(func(s float64) float64 {
				return pow(1-pow(s, r), b)
			}, threshold, 1)
			if e := 0.5*fp + 0.5*fn; e < minErr {
				minErr = e
				best = Params{Bands: b, Rows: r}
			}
		}
	}
	return best
}

func integrate(f func(float64) float64, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	step := (hi - lo) / integrationSteps
	area := 0.0
	for i := range integrationSteps {
		area += f(lo+(float64(i)+0.5)*step) * step
	}
	return area
}

func pow(x float64, n int) float64 {
	out := 1.0
	for range n {
		out *= x
	}
	return out
}
