// Formula
// Copyright (C) 2024+ The formula project contributors
// Written by the formula project contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package poly holds the numeric kernels of the formula language, most notably
// the orthogonal polynomial basis, and the pass that attaches the fitted
// polynomial constants of a model to its tree.
package poly

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// OrthoPolyFit computes the orthogonal polynomial basis of x up to degree, the
// same way the model fitting toolchain does. It returns the basis, one row per
// element of x and one column per power, along with the normalization (norm2)
// and centering (alpha) constants that reproduce it through OrthoPolyPredict.
// This is only used to self-test the recurrence, evaluation must always use
// the stored constants.
func OrthoPolyFit(x []float64, degree int) (*mat.Dense, []float64, []float64, error) {
	if degree < 1 {
		return nil, nil, nil, fmt.Errorf("degree must be positive")
	}
	if degree >= unique(x) {
		return nil, nil, nil, fmt.Errorf("degree must be less than number of unique points")
	}
	m, n := len(x), degree+1

	xbar := stat.Mean(x, nil)
	xc := make([]float64, m)
	copy(xc, x)
	floats.AddConst(-xbar, xc)

	// vandermonde matrix of the centred data, increasing powers
	v := mat.NewDense(m, n, nil)
	for i := 0; i < m; i++ {
		p := 1.0
		for j := 0; j < n; j++ {
			v.Set(i, j, p)
			p *= xc[i]
		}
	}

	var qr mat.QR
	qr.Factorize(v)
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)

	// raw = q * diag(r), the sign of each column cancels out
	raw := mat.NewDense(m, n, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			raw.Set(i, j, q.At(i, j)*r.At(j, j))
		}
	}

	norm2 := make([]float64, n)
	alpha := make([]float64, degree)
	for j := 0; j < n; j++ {
		col := mat.Col(nil, j, raw)
		sq := make([]float64, m)
		floats.MulTo(sq, col, col)
		norm2[j] = floats.Sum(sq)
		if j < degree {
			alpha[j] = floats.Dot(sq, xc)/norm2[j] + xbar
		}
	}

	z := mat.NewDense(m, n, nil)
	for j := 0; j < n; j++ {
		d := math.Sqrt(norm2[j])
		for i := 0; i < m; i++ {
			z.Set(i, j, raw.At(i, j)/d)
		}
	}
	return z, norm2, alpha, nil
}

func unique(x []float64) int {
	s := make([]float64, len(x))
	copy(s, x)
	sort.Float64s(s)
	count := 0
	for i := range s {
		if i == 0 || s[i] != s[i-1] {
			count++
		}
	}
	return count
}

// OrthoPolyPredict evaluates the orthogonal polynomial basis of x from fitted
// constants. The result has one row per element of x and degree+1 columns. A
// column needs every alpha below its power, so when alpha is short the columns
// that can't be computed are NaN. Resolve refuses to select those columns.
func OrthoPolyPredict(x, norm2, alpha []float64, degree int) [][]float64 {
	z := make([][]float64, len(x))
	for i, v := range x {
		z[i] = Row(v, norm2, alpha, degree)
	}
	return z
}

// Row evaluates the basis for one element. It is the scalar kernel behind
// OrthoPolyPredict, and is called directly by the generated code.
func Row(x float64, norm2, alpha []float64, degree int) []float64 {
	z := make([]float64, degree+1)
	z[0] = 1
	for i := 1; i <= degree; i++ {
		if i-1 >= len(alpha) {
			z[i] = math.NaN()
			continue
		}
		if i == 1 {
			z[1] = x - alpha[0]
			continue
		}
		z[i] = (x-alpha[i-1])*z[i-1] - (norm2[i-1]/norm2[i-2])*z[i-2]
	}
	for i := range z {
		z[i] /= math.Sqrt(norm2[i])
	}
	return z
}

// Scale maps x affinely so that [min(x), max(x)] lands on [lo, hi]. NaN
// elements don't take part in the bounds.
func Scale(x []float64, lo, hi float64) []float64 {
	xmin, xmax := Bounds(x)
	return ScaleBounds(x, lo, hi, xmin, xmax)
}

// Bounds returns the smallest and largest non-NaN elements of x. An empty or
// all NaN input gives NaN bounds.
func Bounds(x []float64) (float64, float64) {
	xmin, xmax := math.NaN(), math.NaN()
	for _, v := range x {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(xmin) || v < xmin {
			xmin = v
		}
		if math.IsNaN(xmax) || v > xmax {
			xmax = v
		}
	}
	return xmin, xmax
}

// ScaleBounds maps x affinely so that [xmin, xmax] lands on [lo, hi]. Nothing
// is clipped, values outside the observed range map outside the target one.
func ScaleBounds(x []float64, lo, hi, xmin, xmax float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = ScaleValue(v, lo, hi, xmin, xmax)
	}
	return out
}

// ScaleValue is the scalar form of ScaleBounds.
func ScaleValue(x, lo, hi, xmin, xmax float64) float64 {
	return (x-xmin)/(xmax-xmin)*(hi-lo) + lo
}

// InvLogit is the inverse of the logit link.
func InvLogit(p float64) float64 {
	return math.Exp(p) / (1 + math.Exp(p))
}

// Eq is the categorical comparison: 1 when a equals b, 0 otherwise.
func Eq(a, b float64) float64 {
	if a == b {
		return 1
	}
	return 0
}
