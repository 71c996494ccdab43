// Package poly fits and evaluates polynomials used to approximate the
// reference path in the vehicle frame.
package poly

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrDegreeTooHigh reports a fit requested with fewer samples than
// coefficients: the least-squares problem is under-determined.
var ErrDegreeTooHigh = errors.New("not enough samples for requested degree")

// Polynomial holds coefficients in ascending order of power: index i is the
// coefficient of x^i.
type Polynomial []float64

// Degree returns the nominal degree, len(p)-1. The zero-length polynomial
// has degree -1.
func (p Polynomial) Degree() int {
	return len(p) - 1
}

// At evaluates the polynomial at x by direct summation of c_i * x^i in
// ascending order. The summation order is fixed so results are bit-for-bit
// reproducible across callers.
func (p Polynomial) At(x float64) float64 {
	result := 0.0
	for i, c := range p {
		result += c * math.Pow(x, float64(i))
	}
	return result
}

// SlopeAt evaluates the first derivative at x.
func (p Polynomial) SlopeAt(x float64) float64 {
	result := 0.0
	for i := 1; i < len(p); i++ {
		result += float64(i) * p[i] * math.Pow(x, float64(i-1))
	}
	return result
}

// Fit returns the degree-d polynomial minimising total squared residual over
// the samples (xs[i], ys[i]). The design matrix is the Vandermonde matrix of
// xs, solved by QR decomposition rather than normal equations to avoid
// conditioning loss on the higher powers.
//
// Fit requires len(xs) == len(ys) and at least degree+1 samples; the latter
// failure is ErrDegreeTooHigh.
func Fit(xs, ys []float64, degree int) (Polynomial, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("mismatched samples: %d x values, %d y values", len(xs), len(ys))
	}
	if degree < 0 {
		return nil, fmt.Errorf("invalid degree %d", degree)
	}
	n := len(xs)
	cols := degree + 1
	if n < cols {
		return nil, fmt.Errorf("%w: degree %d needs %d samples, have %d", ErrDegreeTooHigh, degree, cols, n)
	}

	a := mat.NewDense(n, cols, nil)
	for i, x := range xs {
		v := 1.0
		for j := 0; j < cols; j++ {
			a.Set(i, j, v)
			v *= x
		}
	}

	var qr mat.QR
	qr.Factorize(a)

	var c mat.VecDense
	if err := qr.SolveVecTo(&c, false, mat.NewVecDense(n, ys)); err != nil {
		return nil, fmt.Errorf("failed to solve least squares: %w", err)
	}

	coeffs := make(Polynomial, cols)
	for j := 0; j < cols; j++ {
		coeffs[j] = c.AtVec(j)
	}
	return coeffs, nil
}
