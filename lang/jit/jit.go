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

// Package jit compiles a program into a scalar kernel that computes the output
// one element at a time, in a single loop over the inputs. Ops that need the
// whole array, the polynomial basis and a scale that takes its range from the
// data, can't run inside that loop. They are hoisted into a vectorized pre-pass
// whose per element output the loop reads like any other input.
package jit

import (
	"github.com/projections/formula/lang/interfaces"
	"github.com/projections/formula/lang/ir"
	"github.com/projections/formula/lang/poly"
	"github.com/projections/formula/util/errwrap"
)

// Backend is the name of this backend in errors.
const Backend = string(interfaces.BackendJIT)

// frame is the state of one element of one call.
type frame struct {
	i      int
	args   [][]float64
	hoists [][][]float64 // per hoisted declaration, one row per element
	vars   []float64     // scalar declarations of the current element
}

type scalarFunc func(f *frame) float64

// step is one scalar declaration.
type step struct {
	name string
	expr *ir.Expr
	slot int
	fn   scalarFunc
}

// hoist is one pre-pass.
type hoist struct {
	name  string
	expr  *ir.Expr
	slot  int
	steps []*step // the scalar declarations its arg needs
	arg   scalarFunc
}

// Kernel is a compiled program. It holds no per call state.
type Kernel struct {
	prog   *ir.Program // as given, for the signature
	split  *ir.Program // with every vector op in its own declaration
	hoists []*hoist
	steps  []*step // the scalar declarations the result needs
	vars   int
	result scalarFunc
}

type compiler struct {
	prog   *ir.Program
	scalar map[string]int // declaration name -> vars slot
	hoist  map[string]int // declaration name -> hoists slot
	steps  map[string]*step
}

// Compile builds a kernel from a program.
func Compile(prog *ir.Program) (*Kernel, error) {
	if err := prog.Validate(); err != nil {
		return nil, errwrap.Wrapf(err, "invalid program")
	}
	split := ir.Split(prog)
	obj := &compiler{
		prog:   split,
		scalar: make(map[string]int),
		hoist:  make(map[string]int),
		steps:  make(map[string]*step),
	}
	k := &Kernel{
		prog:  prog,
		split: split,
	}
	for _, d := range split.Decls {
		if !ir.Vector(d.Expr) {
			fn, err := obj.compile(d.Expr)
			if err != nil {
				return nil, errwrap.Wrapf(err, "declaration %s", d.Name)
			}
			slot := len(obj.scalar)
			obj.scalar[d.Name] = slot
			obj.steps[d.Name] = &step{name: d.Name, expr: d.Expr, slot: slot, fn: fn}
			continue
		}
		arg, err := obj.compile(d.Expr.Args[0])
		if err != nil {
			return nil, errwrap.Wrapf(err, "declaration %s", d.Name)
		}
		h := &hoist{
			name:  d.Name,
			expr:  d.Expr,
			slot:  len(k.hoists),
			steps: obj.needs(d.Expr.Args[0]),
			arg:   arg,
		}
		obj.hoist[d.Name] = h.slot
		k.hoists = append(k.hoists, h)
	}
	result, err := obj.compile(split.Result)
	if err != nil {
		return nil, errwrap.Wrapf(err, "result")
	}
	k.result = result
	k.steps = obj.needs(split.Result)
	k.vars = len(obj.scalar)
	return k, nil
}

// needs returns the scalar declarations an expression reads, directly or
// through other scalar declarations, in declaration order.
func (obj *compiler) needs(e *ir.Expr) []*step {
	want := make(map[string]struct{})
	var visit func(*ir.Expr)
	visit = func(x *ir.Expr) {
		for _, name := range ir.Refs(x) {
			if _, exists := obj.scalar[name]; !exists {
				continue // hoisted, already computed
			}
			if _, exists := want[name]; exists {
				continue
			}
			want[name] = struct{}{}
			d, _ := obj.prog.Decl(name)
			visit(d.Expr)
		}
	}
	visit(e)

	steps := []*step{}
	for _, d := range obj.prog.Decls {
		if _, exists := want[d.Name]; exists {
			steps = append(steps, obj.steps[d.Name])
		}
	}
	return steps
}

// compile builds the scalar function of an element-wise expression.
func (obj *compiler) compile(e *ir.Expr) (scalarFunc, error) {
	switch e.Op {
	case ir.OpConst:
		v := e.Value
		return func(*frame) float64 { return v }, nil

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
		return func(f *frame) float64 { return ir.At(f.args[k], f.i) }, nil

	case ir.OpRef:
		if slot, exists := obj.scalar[e.Name]; exists {
			return func(f *frame) float64 { return f.vars[slot] }, nil
		}
		d, _ := obj.prog.Decl(e.Name)
		if slot, exists := obj.hoist[e.Name]; exists && d.Expr.Op == ir.OpScale {
			return func(f *frame) float64 { return f.hoists[slot][f.i][0] }, nil
		}
		return nil, &interfaces.UnsupportedErr{Backend: Backend, Type: "ref " + e.Name}

	case ir.OpSel:
		arg := e.Args[0]
		slot, exists := obj.hoist[arg.Name]
		if arg.Op != ir.OpRef || !exists {
			return nil, &interfaces.UnsupportedErr{Backend: Backend, Type: "sel of " + string(arg.Op)}
		}
		index := e.Index
		return func(f *frame) float64 { return f.hoists[slot][f.i][index] }, nil
	}

	if !ir.Elementwise(e) {
		return nil, &interfaces.UnsupportedErr{Backend: Backend, Type: string(e.Op)}
	}
	args := []scalarFunc{}
	for _, a := range e.Args {
		fn, err := obj.compile(a)
		if err != nil {
			return nil, err
		}
		args = append(args, fn)
	}

	// the common shapes get a direct closure
	switch {
	case e.Op == ir.OpMul && len(args) == 2:
		a, b := args[0], args[1]
		return func(f *frame) float64 { return a(f) * b(f) }, nil
	case e.Op == ir.OpAdd && len(args) == 2:
		a, b := args[0], args[1]
		return func(f *frame) float64 { return a(f) + b(f) }, nil
	}
	return func(f *frame) float64 {
		scalars := make([]float64, len(args))
		for j, a := range args {
			scalars[j] = a(f)
		}
		v, _ := ir.Scalar(e, scalars...) // elementwise, so this can't fail
		return v
	}, nil
}

// Inputs returns the sorted names of the required inputs.
func (obj *Kernel) Inputs() []string {
	return append([]string{}, obj.prog.Inputs...)
}

// Eval runs the pre-passes and then the loop.
func (obj *Kernel) Eval(inputs map[string][]float64) ([]float64, error) {
	args, n, err := obj.prog.Bind(inputs)
	if err != nil {
		return nil, err
	}
	f := &frame{
		args:   args,
		hoists: make([][][]float64, len(obj.hoists)),
		vars:   make([]float64, obj.vars),
	}

	for _, h := range obj.hoists {
		in := make([]float64, n)
		for i := range in {
			f.i = i
			for _, s := range h.steps {
				f.vars[s.slot] = s.fn(f)
			}
			in[i] = h.arg(f)
		}
		e := h.expr
		if e.Op == ir.OpPoly {
			f.hoists[h.slot] = poly.OrthoPolyPredict(in, e.Norm2, e.Alpha, e.Degree)
			continue
		}
		// a data bounded scale, stored as a one column matrix
		scaled := poly.Scale(in, e.Bounds[0], e.Bounds[1])
		rows := make([][]float64, n)
		for i, v := range scaled {
			rows[i] = []float64{v}
		}
		f.hoists[h.slot] = rows
	}

	out := make([]float64, n)
	for i := range out {
		f.i = i
		for _, s := range obj.steps {
			f.vars[s.slot] = s.fn(f)
		}
		out[i] = obj.result(f)
	}
	return out, nil
}
