package billing

import "github.com/shopspring/decimal"

const (
	// DefaultWindow is the number of trailing readings in the baseline.
	DefaultWindow = 3
	// DefaultTolerance is the accepted relative deviation from the baseline.
	DefaultTolerance = 0.10
)

// AverageOfLastThree returns the mean of the last three values, or of all
// values when fewer than three are given. Empty input yields 0.
func AverageOfLastThree(values []float64) float64 {
	return AverageOfLastN(values, DefaultWindow)
}

// AverageOfLastN returns the mean of the trailing n values.
func AverageOfLastN(values []float64, n int) float64 {
	if n <= 0 {
		n = DefaultWindow
	}
	if len(values) == 0 {
		return 0
	}
	if len(values) > n {
		values = values[len(values)-n:]
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// IsWithinBand reports whether candidate lies in [average*0.9, average*1.1].
func IsWithinBand(average, candidate float64) bool {
	return NewBand(average, DefaultTolerance).Contains(candidate)
}

// Band is the closed acceptance interval around a baseline.
type Band struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// NewBand builds [average*(1-tolerance), average*(1+tolerance)].
func NewBand(average, tolerance float64) Band {
	avg := decimal.NewFromFloat(average)
	tol := decimal.NewFromFloat(tolerance)
	one := decimal.NewFromInt(1)
	return Band{
		Lower: avg.Mul(one.Sub(tol)).InexactFloat64(),
		Upper: avg.Mul(one.Add(tol)).InexactFloat64(),
	}
}

// Contains reports whether value lies in the band, bounds included.
func (b Band) Contains(value float64) bool {
	v := decimal.NewFromFloat(value)
	return v.GreaterThanOrEqual(decimal.NewFromFloat(b.Lower)) &&
		v.LessThanOrEqual(decimal.NewFromFloat(b.Upper))
}

// Analyzer applies a configurable baseline window and tolerance.
type Analyzer struct {
	Window    int
	Tolerance float64
}

// DefaultAnalyzer returns the three-reading, ten percent policy.
func DefaultAnalyzer() Analyzer {
	return Analyzer{Window: DefaultWindow, Tolerance: DefaultTolerance}
}

// NewAnalyzer validates the policy values.
func NewAnalyzer(window int, tolerance float64) (Analyzer, error) {
	if tolerance < 0 || tolerance >= 1 {
		return Analyzer{}, ErrInvalidTolerance
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return Analyzer{Window: window, Tolerance: tolerance}, nil
}

// Baseline returns the trailing average of values.
func (a Analyzer) Baseline(values []float64) float64 {
	return AverageOfLastN(values, a.Window)
}

// Band returns the acceptance band for average.
func (a Analyzer) Band(average float64) Band {
	return NewBand(average, a.Tolerance)
}

// Accepts reports whether candidate is plausible against average.
func (a Analyzer) Accepts(average, candidate float64) bool {
	return a.Band(average).Contains(candidate)
}
