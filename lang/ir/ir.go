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

// Package ir contains the typed intermediate representation that every code
// generator consumes. A Program is a list of declarations, one per shared
// subtree and in dependency order, followed by a single result expression. It
// is plain data so it can be cached on disk and reloaded without reparsing.
package ir

import (
	"fmt"
	"math"
	"sort"

	"github.com/projections/formula/lang/interfaces"
	"github.com/projections/formula/lang/poly"
	"github.com/projections/formula/util/errwrap"
)

// Op is the instruction of an expression.
type Op string

const (
	// OpConst is a literal, stored in Value.
	OpConst Op = "const"
	// OpInput reads the input named Name.
	OpInput Op = "input"
	// OpRef reads the declaration named Name.
	OpRef Op = "ref"

	// OpAdd and the other arithmetic ops fold their args from the left.
	OpAdd Op = "add"
	OpSub Op = "sub"
	OpMul Op = "mul"
	OpDiv Op = "div"

	OpPow Op = "pow"
	OpEq  Op = "eq" // 1 when equal, 0 otherwise
	OpMin Op = "min"
	OpMax Op = "max"

	OpLog      Op = "log"
	OpExp      Op = "exp"
	OpInvLogit Op = "inv_logit"

	// OpScale maps its arg affinely onto Bounds[0:2]. With four bounds the
	// last two are the observed range, with two the range is taken from
	// the data.
	OpScale Op = "scale"

	// OpPoly computes the orthogonal polynomial basis of its arg. It is
	// the only op with a matrix result, which only OpSel may consume.
	OpPoly Op = "poly"
	// OpSel selects column Index of a basis.
	OpSel Op = "sel"
)

// arity is the number of args of each op, -1 for two or more.
var arity = map[Op]int{
	OpConst:    0,
	OpInput:    0,
	OpRef:      0,
	OpAdd:      -1,
	OpSub:      -1,
	OpMul:      -1,
	OpDiv:      -1,
	OpPow:      2,
	OpEq:       2,
	OpMin:      2,
	OpMax:      2,
	OpLog:      1,
	OpExp:      1,
	OpInvLogit: 1,
	OpScale:    1,
	OpPoly:     1,
	OpSel:      1,
}

// Expr is one instruction and its args. Only the fields that its op uses are
// set.
type Expr struct {
	Op   Op      `yaml:"op"`
	Args []*Expr `yaml:"args,omitempty"`

	Value  float64   `yaml:"value,omitempty"`
	Name   string    `yaml:"name,omitempty"`
	Degree int       `yaml:"degree,omitempty"`
	Index  int       `yaml:"index,omitempty"`
	Norm2  []float64 `yaml:"norm2,flow,omitempty"`
	Alpha  []float64 `yaml:"alpha,flow,omitempty"`
	Bounds []float64 `yaml:"bounds,flow,omitempty"`
}

// String returns a compact representation for debugging.
func (obj *Expr) String() string {
	switch obj.Op {
	case OpConst:
		return fmt.Sprintf("%v", obj.Value)
	case OpInput:
		return obj.Name
	case OpRef:
		return "$" + obj.Name
	}
	s := string(obj.Op) + "("
	for i, x := range obj.Args {
		if i > 0 {
			s += ", "
		}
		s += x.String()
	}
	switch obj.Op {
	case OpScale:
		s += fmt.Sprintf(", %v", obj.Bounds)
	case OpPoly:
		s += fmt.Sprintf(", %d", obj.Degree)
	case OpSel:
		s += fmt.Sprintf(")[%d", obj.Index)
	}
	return s + ")"
}

// Decl binds an expression to a name.
type Decl struct {
	Name string `yaml:"name"`
	Expr *Expr  `yaml:"expr"`
}

// Program is a complete compiled equation.
type Program struct {
	Name   string    `yaml:"name"`
	Output string    `yaml:"output"`
	Range  []float64 `yaml:"range,flow,omitempty"`

	// Inputs are the sorted names of every input the program reads. The
	// compiled functions take one array per input in this order.
	Inputs []string `yaml:"inputs,flow"`

	Decls  []*Decl `yaml:"decls,omitempty"`
	Result *Expr   `yaml:"result"`
}

// Decl returns the declaration with this name.
func (obj *Program) Decl(name string) (*Decl, bool) {
	for _, d := range obj.Decls {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Matrix returns true if the expression has a matrix result, either directly
// or through a reference.
func (obj *Program) Matrix(e *Expr) bool {
	switch e.Op {
	case OpPoly:
		return true
	case OpRef:
		if d, ok := obj.Decl(e.Name); ok {
			return obj.Matrix(d.Expr)
		}
	}
	return false
}

// Validate checks that the program is well formed: every op is known and has
// the right arity, every reference points at an earlier declaration, every
// input is declared, and matrix results are only consumed by sel. This is run
// on anything read back from a cache.
func (obj *Program) Validate() error {
	if obj.Result == nil {
		return fmt.Errorf("program has no result")
	}
	if !sort.StringsAreSorted(obj.Inputs) {
		return fmt.Errorf("inputs are not sorted")
	}
	inputs := make(map[string]struct{})
	for _, x := range obj.Inputs {
		if _, exists := inputs[x]; exists {
			return fmt.Errorf("duplicate input: %s", x)
		}
		inputs[x] = struct{}{}
	}

	seen := make(map[string]int) // name -> degree of a matrix, or scalar
	for _, d := range obj.Decls {
		if d.Name == "" || d.Expr == nil {
			return fmt.Errorf("empty declaration")
		}
		if _, exists := seen[d.Name]; exists {
			return fmt.Errorf("duplicate declaration: %s", d.Name)
		}
		deg, err := validate(d.Expr, inputs, seen)
		if err != nil {
			return errwrap.Wrapf(err, "declaration %s", d.Name)
		}
		seen[d.Name] = deg
	}
	deg, err := validate(obj.Result, inputs, seen)
	if err != nil {
		return errwrap.Wrapf(err, "result")
	}
	if deg != scalar {
		return fmt.Errorf("result is a matrix")
	}
	return nil
}

const scalar = -1

// validate checks one expression. If the result is a matrix, it returns the
// last column of the basis that its constants can compute.
func validate(e *Expr, inputs map[string]struct{}, decls map[string]int) (int, error) {
	if e == nil {
		return scalar, fmt.Errorf("missing expression")
	}
	n, exists := arity[e.Op]
	if !exists {
		return scalar, &interfaces.UnsupportedErr{Type: string(e.Op)}
	}
	if (n >= 0 && len(e.Args) != n) || (n < 0 && len(e.Args) < 2) {
		return scalar, fmt.Errorf("op %s has %d args", e.Op, len(e.Args))
	}
	degrees := []int{}
	for _, x := range e.Args {
		deg, err := validate(x, inputs, decls)
		if err != nil {
			return scalar, err
		}
		if deg != scalar && e.Op != OpSel {
			return scalar, fmt.Errorf("matrix used as an arg of %s", e.Op)
		}
		degrees = append(degrees, deg)
	}

	switch e.Op {
	case OpInput:
		if _, exists := inputs[e.Name]; !exists {
			return scalar, fmt.Errorf("undeclared input: %s", e.Name)
		}
	case OpRef:
		deg, exists := decls[e.Name]
		if !exists {
			return scalar, fmt.Errorf("reference to unknown or later declaration: %s", e.Name)
		}
		return deg, nil
	case OpScale:
		if len(e.Bounds) != 2 && len(e.Bounds) != 4 {
			return scalar, fmt.Errorf("scale has %d bounds", len(e.Bounds))
		}
	case OpPoly:
		if e.Degree < 1 || len(e.Norm2) != e.Degree+1 || len(e.Alpha) == 0 || len(e.Alpha) > e.Degree {
			return scalar, fmt.Errorf("poly of degree %d has bad constants", e.Degree)
		}
		// column i needs alpha[0] to alpha[i-1]
		return len(e.Alpha), nil
	case OpSel:
		if degrees[0] == scalar {
			return scalar, fmt.Errorf("sel of a non matrix")
		}
		if e.Index < 0 || e.Index > degrees[0] {
			return scalar, fmt.Errorf("sel index %d is out of range of the fitted constants", e.Index)
		}
	}
	return scalar, nil
}

// Scalar applies an element-wise op to scalar args. It is the numeric
// definition every backend shares. Ops that aren't element-wise, such as poly,
// sel and data bounded scale, aren't handled here.
func Scalar(e *Expr, args ...float64) (float64, error) {
	switch e.Op {
	case OpConst:
		return e.Value, nil
	case OpAdd, OpSub, OpMul, OpDiv:
		v := args[0]
		for _, x := range args[1:] {
			switch e.Op {
			case OpAdd:
				v += x
			case OpSub:
				v -= x
			case OpMul:
				v *= x
			case OpDiv:
				v /= x
			}
		}
		return v, nil
	case OpPow:
		return math.Pow(args[0], args[1]), nil
	case OpEq:
		return poly.Eq(args[0], args[1]), nil
	case OpMin:
		return math.Min(args[0], args[1]), nil
	case OpMax:
		return math.Max(args[0], args[1]), nil
	case OpLog:
		return math.Log(args[0]), nil
	case OpExp:
		return math.Exp(args[0]), nil
	case OpInvLogit:
		return poly.InvLogit(args[0]), nil
	case OpScale:
		if len(e.Bounds) == 4 {
			return poly.ScaleValue(args[0], e.Bounds[0], e.Bounds[1], e.Bounds[2], e.Bounds[3]), nil
		}
	}
	return 0, &interfaces.UnsupportedErr{Type: string(e.Op)}
}

// Refs returns the names of the declarations an expression reads directly.
func Refs(e *Expr) []string {
	refs := []string{}
	var walk func(*Expr)
	walk = func(x *Expr) {
		if x.Op == OpRef {
			refs = append(refs, x.Name)
		}
		for _, a := range x.Args {
			walk(a)
		}
	}
	walk(e)
	return refs
}

// Elementwise returns true if the op computes each element of its result from
// the same element of its args alone, so that Scalar can evaluate it.
func Elementwise(e *Expr) bool {
	switch e.Op {
	case OpConst, OpAdd, OpSub, OpMul, OpDiv, OpPow, OpEq, OpMin, OpMax, OpLog, OpExp, OpInvLogit:
		return true
	case OpScale:
		return len(e.Bounds) == 4
	}
	return false
}
