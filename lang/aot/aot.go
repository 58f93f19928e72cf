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

// Package aot compiles a program ahead of time into a function with one array
// parameter per input. Every declaration is computed once as a whole array, in
// dependency order, before the single result. The same layout is available as
// Go source for separate compilation.
package aot

import (
	"fmt"

	"github.com/projections/formula/lang/interfaces"
	"github.com/projections/formula/lang/ir"
	"github.com/projections/formula/lang/poly"
	"github.com/projections/formula/util/errwrap"
)

// Backend is the name of this backend in errors.
const Backend = string(interfaces.BackendAOT)

// frame is the per call storage. Slots are assigned at compile time.
type frame struct {
	n    int
	args [][]float64
	vecs [][]float64
	mats [][][]float64
}

// elemFunc computes one element of an array.
type elemFunc func(f *frame, i int) float64

type decl struct {
	name string
	slot int
	mat  bool
	vec  func(f *frame) []float64   // array declarations
	poly func(f *frame) [][]float64 // basis declarations
}

// Func is a compiled program. It holds no per call state.
type Func struct {
	prog   *ir.Program // as given, for the signature
	split  *ir.Program // with every vector op in its own declaration
	decls  []*decl
	result func(f *frame) []float64
}

type compiler struct {
	prog  *ir.Program
	slots map[string]*decl
}

// Compile builds a function from a program.
func Compile(prog *ir.Program) (*Func, error) {
	if err := prog.Validate(); err != nil {
		return nil, errwrap.Wrapf(err, "invalid program")
	}
	split := ir.Split(prog)
	obj := &compiler{
		prog:  split,
		slots: make(map[string]*decl),
	}
	fn := &Func{
		prog:  prog,
		split: split,
	}
	vecs, mats := 0, 0
	for _, d := range split.Decls {
		x := &decl{name: d.Name}
		e := d.Expr
		switch {
		case e.Op == ir.OpPoly:
			arg, err := obj.vector(e.Args[0])
			if err != nil {
				return nil, err
			}
			x.poly = func(f *frame) [][]float64 {
				return poly.OrthoPolyPredict(arg(f), e.Norm2, e.Alpha, e.Degree)
			}
			x.mat, x.slot = true, mats
			mats++

		case e.Op == ir.OpScale && len(e.Bounds) == 2:
			arg, err := obj.vector(e.Args[0])
			if err != nil {
				return nil, err
			}
			lo, hi := e.Bounds[0], e.Bounds[1]
			x.vec = func(f *frame) []float64 {
				return poly.Scale(arg(f), lo, hi)
			}
			x.slot = vecs
			vecs++

		default:
			v, err := obj.vector(e)
			if err != nil {
				return nil, err
			}
			x.vec, x.slot = v, vecs
			vecs++
		}
		obj.slots[d.Name] = x
		fn.decls = append(fn.decls, x)
	}
	result, err := obj.vector(split.Result)
	if err != nil {
		return nil, err
	}
	fn.result = result
	return fn, nil
}

// vector compiles an element-wise expression into a function that computes
// its whole array.
func (obj *compiler) vector(e *ir.Expr) (func(f *frame) []float64, error) {
	elem, err := obj.elem(e)
	if err != nil {
		return nil, err
	}
	return func(f *frame) []float64 {
		out := make([]float64, f.n)
		for i := range out {
			out[i] = elem(f, i)
		}
		return out
	}, nil
}

// elem compiles an element-wise expression into a function that computes one
// element.
func (obj *compiler) elem(e *ir.Expr) (elemFunc, error) {
	switch e.Op {
	case ir.OpConst:
		v := e.Value
		return func(*frame, int) float64 { return v }, nil

	case ir.OpInput:
		k := -1
		for i, name := range obj.prog.Inputs {
			if name == e.Name {
				k = i
			}
		}
		if k < 0 {
			return nil, &interfaces.UnsupportedErr{Backend: Backend, Type: "input " + e.Name}
		}
		return func(f *frame, i int) float64 { return ir.At(f.args[k], i) }, nil

	case ir.OpRef:
		d, exists := obj.slots[e.Name]
		if !exists || d.mat {
			return nil, &interfaces.UnsupportedErr{Backend: Backend, Type: "ref " + e.Name}
		}
		slot := d.slot
		return func(f *frame, i int) float64 { return f.vecs[slot][i] }, nil

	case ir.OpSel:
		arg := e.Args[0]
		d, exists := obj.slots[arg.Name]
		if arg.Op != ir.OpRef || !exists || !d.mat {
			return nil, &interfaces.UnsupportedErr{Backend: Backend, Type: "sel of " + string(arg.Op)}
		}
		slot, index := d.slot, e.Index
		return func(f *frame, i int) float64 { return f.mats[slot][i][index] }, nil
	}

	if !ir.Elementwise(e) {
		return nil, &interfaces.UnsupportedErr{Backend: Backend, Type: string(e.Op)}
	}
	args := []elemFunc{}
	for _, a := range e.Args {
		fn, err := obj.elem(a)
		if err != nil {
			return nil, err
		}
		args = append(args, fn)
	}
	return func(f *frame, i int) float64 {
		scalars := make([]float64, len(args))
		for j, a := range args {
			scalars[j] = a(f, i)
		}
		v, _ := ir.Scalar(e, scalars...) // elementwise, so this can't fail
		return v
	}, nil
}

// Inputs returns the sorted names of the parameters.
func (obj *Func) Inputs() []string {
	return append([]string{}, obj.prog.Inputs...)
}

// Call runs the function with one array per input, in the order of Inputs.
func (obj *Func) Call(args ...[]float64) ([]float64, error) {
	if len(args) < len(obj.prog.Inputs) {
		return nil, &interfaces.MissingInputErr{Names: obj.prog.Inputs[len(args):]}
	}
	if len(args) > len(obj.prog.Inputs) {
		return nil, fmt.Errorf("got %d args for %d parameters", len(args), len(obj.prog.Inputs))
	}
	inputs := make(map[string][]float64)
	for i, name := range obj.prog.Inputs {
		inputs[name] = args[i]
	}
	return obj.Eval(inputs)
}

// Eval runs the function on the named inputs.
func (obj *Func) Eval(inputs map[string][]float64) ([]float64, error) {
	args, n, err := obj.prog.Bind(inputs)
	if err != nil {
		return nil, err
	}
	f := &frame{
		n:    n,
		args: args,
	}
	for _, d := range obj.decls {
		if d.mat {
			f.mats = append(f.mats, d.poly(f))
			continue
		}
		f.vecs = append(f.vecs, d.vec(f))
	}
	return obj.result(f), nil
}
