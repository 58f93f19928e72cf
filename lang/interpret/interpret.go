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

// Package interpret evaluates a program directly, one whole array at a time.
// It is the simplest backend and serves as the reference for the others.
package interpret

import (
	"github.com/projections/formula/lang/interfaces"
	"github.com/projections/formula/lang/ir"
	"github.com/projections/formula/lang/poly"
	"github.com/projections/formula/util/errwrap"
)

// Interpreter is a base struct for handling the Eval operation. It holds
// nothing but the program, so it's safe to share between goroutines.
type Interpreter struct {
	// Debug represents if we're running in debug mode or not.
	Debug bool

	// Logf is a logger which should be used.
	Logf func(format string, v ...interface{})

	prog *ir.Program
}

// New builds an interpreter for a program.
func New(prog *ir.Program) (*Interpreter, error) {
	if err := prog.Validate(); err != nil {
		return nil, errwrap.Wrapf(err, "invalid program")
	}
	return &Interpreter{prog: prog}, nil
}

// Inputs returns the sorted names of the required inputs.
func (obj *Interpreter) Inputs() []string {
	return append([]string{}, obj.prog.Inputs...)
}

// value is the result of an expression: an array, or for poly a basis with
// one row per element.
type value struct {
	vec []float64
	mat [][]float64
}

type env struct {
	n      int
	inputs map[string][]float64
	decls  map[string]*value
}

// Eval runs the program on the inputs.
func (obj *Interpreter) Eval(inputs map[string][]float64) ([]float64, error) {
	args, n, err := obj.prog.Bind(inputs)
	if err != nil {
		return nil, err
	}
	e := &env{
		n:      n,
		inputs: make(map[string][]float64),
		decls:  make(map[string]*value),
	}
	for i, name := range obj.prog.Inputs {
		e.inputs[name] = args[i]
	}

	for _, d := range obj.prog.Decls {
		v, err := obj.eval(d.Expr, e)
		if err != nil {
			return nil, errwrap.Wrapf(err, "declaration %s", d.Name)
		}
		if obj.Debug {
			obj.Logf("%s = %s", d.Name, d.Expr)
		}
		e.decls[d.Name] = v
	}
	v, err := obj.eval(obj.prog.Result, e)
	if err != nil {
		return nil, err
	}
	return v.vec, nil
}

func (obj *Interpreter) eval(x *ir.Expr, e *env) (*value, error) {
	switch x.Op {
	case ir.OpConst:
		vec := make([]float64, e.n)
		for i := range vec {
			vec[i] = x.Value
		}
		return &value{vec: vec}, nil

	case ir.OpInput:
		in := e.inputs[x.Name]
		vec := make([]float64, e.n)
		for i := range vec {
			vec[i] = ir.At(in, i)
		}
		return &value{vec: vec}, nil

	case ir.OpRef:
		v, exists := e.decls[x.Name]
		if !exists {
			return nil, &interfaces.UnsupportedErr{Backend: string(interfaces.BackendInterpret), Type: "ref " + x.Name}
		}
		return v, nil
	}

	args := []*value{}
	for _, a := range x.Args {
		v, err := obj.eval(a, e)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	switch x.Op {
	case ir.OpPoly:
		return &value{mat: poly.OrthoPolyPredict(args[0].vec, x.Norm2, x.Alpha, x.Degree)}, nil

	case ir.OpSel:
		vec := make([]float64, e.n)
		for i, row := range args[0].mat {
			vec[i] = row[x.Index]
		}
		return &value{vec: vec}, nil

	case ir.OpScale:
		if len(x.Bounds) == 2 {
			return &value{vec: poly.Scale(args[0].vec, x.Bounds[0], x.Bounds[1])}, nil
		}
	}

	// everything else is element-wise
	vec := make([]float64, e.n)
	scalars := make([]float64, len(args))
	for i := range vec {
		for j, a := range args {
			scalars[j] = a.vec[i]
		}
		v, err := ir.Scalar(x, scalars...)
		if err != nil {
			return nil, &interfaces.UnsupportedErr{Backend: string(interfaces.BackendInterpret), Type: string(x.Op)}
		}
		vec[i] = v
	}
	return &value{vec: vec}, nil
}
