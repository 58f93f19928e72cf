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

package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/projections/formula/lang/interfaces"
)

// PolyImport is the package the generated source calls for the numeric
// kernels.
const PolyImport = "github.com/projections/formula/lang/poly"

// LeafFunc renders the expressions whose Go form depends on how a generator
// lays out its data: inputs, references and column selections.
type LeafFunc func(e *Expr) (string, error)

// GoLiteral renders a float as a Go expression.
func GoLiteral(v float64) string {
	switch {
	case math.IsNaN(v):
		return "math.NaN()"
	case math.IsInf(v, 1):
		return "math.Inf(1)"
	case math.IsInf(v, -1):
		return "math.Inf(-1)"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if v < 0 {
		return "(" + s + ")"
	}
	return s
}

// GoSlice renders a float slice as a Go composite literal.
func GoSlice(values []float64) string {
	parts := []string{}
	for _, v := range values {
		parts = append(parts, GoLiteral(v))
	}
	return "[]float64{" + strings.Join(parts, ", ") + "}"
}

// GoExpr renders an element-wise expression as a Go expression of type
// float64. The vector ops must have been split out first.
func GoExpr(e *Expr, leaf LeafFunc) (string, error) {
	switch e.Op {
	case OpConst:
		return GoLiteral(e.Value), nil
	case OpInput, OpRef, OpSel:
		return leaf(e)
	}

	args := []string{}
	for _, x := range e.Args {
		s, err := GoExpr(x, leaf)
		if err != nil {
			return "", err
		}
		args = append(args, s)
	}

	switch e.Op {
	case OpAdd:
		return "(" + strings.Join(args, " + ") + ")", nil
	case OpSub:
		return "(" + strings.Join(args, " - ") + ")", nil
	case OpMul:
		return "(" + strings.Join(args, " * ") + ")", nil
	case OpDiv:
		return "(" + strings.Join(args, " / ") + ")", nil
	case OpPow:
		return fmt.Sprintf("math.Pow(%s, %s)", args[0], args[1]), nil
	case OpEq:
		return fmt.Sprintf("poly.Eq(%s, %s)", args[0], args[1]), nil
	case OpMin:
		return fmt.Sprintf("math.Min(%s, %s)", args[0], args[1]), nil
	case OpMax:
		return fmt.Sprintf("math.Max(%s, %s)", args[0], args[1]), nil
	case OpLog:
		return fmt.Sprintf("math.Log(%s)", args[0]), nil
	case OpExp:
		return fmt.Sprintf("math.Exp(%s)", args[0]), nil
	case OpInvLogit:
		return fmt.Sprintf("poly.InvLogit(%s)", args[0]), nil
	case OpScale:
		if len(e.Bounds) == 4 {
			b := e.Bounds
			return fmt.Sprintf("poly.ScaleValue(%s, %s, %s, %s, %s)", args[0], GoLiteral(b[0]), GoLiteral(b[1]), GoLiteral(b[2]), GoLiteral(b[3])), nil
		}
	}
	return "", &interfaces.UnsupportedErr{Type: string(e.Op)}
}
