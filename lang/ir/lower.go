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
	"sort"

	"github.com/projections/formula/lang/ast"
	"github.com/projections/formula/lang/cse"
	"github.com/projections/formula/lang/interfaces"
	"github.com/projections/formula/lang/poly"
)

// DeclName is the name of the declaration of a var id.
func DeclName(id int64) string {
	return fmt.Sprintf("v%d", id)
}

type lowerer struct {
	inputs map[string]struct{}
}

// Lower converts a finished tree, after CSE and polynomial resolution, into a
// program. Every materialized var becomes a declaration in dependency order.
// A node that has no instruction, such as `|`, a bare string or an unresolved
// poly, is an error naming the node type.
func Lower(root *ast.Node, name, output string) (*Program, error) {
	obj := &lowerer{
		inputs: make(map[string]struct{}),
	}
	prog := &Program{
		Name:   name,
		Output: output,
	}
	for _, b := range cse.Bindings(root) {
		e, err := obj.lower(b.Expr)
		if err != nil {
			return nil, err
		}
		prog.Decls = append(prog.Decls, &Decl{Name: DeclName(b.ID), Expr: e})
	}
	result, err := obj.lower(root)
	if err != nil {
		return nil, err
	}
	prog.Result = result

	prog.Inputs = []string{}
	for x := range obj.inputs {
		prog.Inputs = append(prog.Inputs, x)
	}
	sort.Strings(prog.Inputs)

	if err := prog.Validate(); err != nil {
		return nil, err
	}
	return prog, nil
}

// ops maps the tree operators that lower one to one.
var ops = map[ast.Operator]Op{
	ast.OpAdd:      OpAdd,
	ast.OpSub:      OpSub,
	ast.OpMul:      OpMul,
	ast.OpDiv:      OpDiv,
	ast.OpInter:    OpMul, // an interaction is a product
	ast.OpPow:      OpPow,
	ast.OpPowFn:    OpPow,
	ast.OpEq:       OpEq,
	ast.OpMin:      OpMin,
	ast.OpMax:      OpMax,
	ast.OpLog:      OpLog,
	ast.OpExp:      OpExp,
	ast.OpInvLogit: OpInvLogit,
}

func (obj *lowerer) lower(arg ast.Arg) (*Expr, error) {
	switch x := arg.(type) {
	case ast.Int:
		return &Expr{Op: OpConst, Value: float64(x)}, nil
	case ast.Float:
		return &Expr{Op: OpConst, Value: float64(x)}, nil
	case ast.Str:
		return nil, &interfaces.UnsupportedErr{Type: "str"}
	case *ast.Node:
		return obj.lowerNode(x)
	}
	return nil, &interfaces.UnsupportedErr{Type: fmt.Sprintf("%T", arg)}
}

func (obj *lowerer) lowerNode(n *ast.Node) (*Expr, error) {
	unsupported := &interfaces.UnsupportedErr{Type: n.Type.String()}

	switch n.Type {
	case ast.OpIn:
		name, ok := n.Arg(0).(ast.Str)
		if !ok {
			return nil, unsupported
		}
		if n.Len() > 1 {
			if typ, _ := n.Arg(1).(ast.Str); typ != ast.TypeArray {
				return nil, &interfaces.UnsupportedErr{Type: "in " + string(typ)}
			}
		}
		obj.inputs[string(name)] = struct{}{}
		return &Expr{Op: OpInput, Name: string(name)}, nil

	case ast.OpVar:
		id, ok := cse.VarID(n)
		if !ok {
			return nil, unsupported
		}
		return &Expr{Op: OpRef, Name: DeclName(id)}, nil

	case ast.OpI:
		return obj.lower(n.Arg(0))

	case ast.OpScale:
		arg, err := obj.lower(n.Arg(0))
		if err != nil {
			return nil, err
		}
		bounds := []float64{}
		for _, x := range n.Args()[1:] {
			switch v := x.(type) {
			case ast.Int:
				bounds = append(bounds, float64(v))
			case ast.Float:
				bounds = append(bounds, float64(v))
			default:
				return nil, unsupported
			}
		}
		return &Expr{Op: OpScale, Args: []*Expr{arg}, Bounds: bounds}, nil

	case ast.OpPoly:
		c, ok := poly.Constants(n)
		if !ok {
			return nil, &interfaces.UnsupportedErr{Type: "unresolved poly"}
		}
		degree, _ := poly.Degree(n)
		arg, err := obj.lower(n.Arg(0))
		if err != nil {
			return nil, err
		}
		return &Expr{Op: OpPoly, Args: []*Expr{arg}, Degree: degree, Norm2: c.Norm2, Alpha: c.Alpha}, nil

	case ast.OpSel:
		index, ok := n.Arg(1).(ast.Int)
		if !ok {
			return nil, unsupported
		}
		arg, err := obj.lower(n.Arg(0))
		if err != nil {
			return nil, err
		}
		return &Expr{Op: OpSel, Args: []*Expr{arg}, Index: int(index)}, nil
	}

	op, exists := ops[n.Type]
	if !exists {
		return nil, unsupported
	}
	args := []*Expr{}
	for _, x := range n.Args() {
		e, err := obj.lower(x)
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	if (op == OpAdd || op == OpMul) && len(args) == 1 { // a one term sum
		return args[0], nil
	}
	return &Expr{Op: op, Args: args}, nil
}

// Vector returns true if the expression can't be computed one element at a
// time: a poly, or a scale that takes its range from the data.
func Vector(e *Expr) bool {
	return e.Op == OpPoly || (e.Op == OpScale && len(e.Bounds) == 2)
}

// Split returns a copy of the program where every vector expression is the
// whole of its own declaration. Everything else is then element-wise, which is
// what the generators that work one element at a time need.
func Split(prog *Program) *Program {
	out := &Program{
		Name:   prog.Name,
		Output: prog.Output,
		Range:  prog.Range,
		Inputs: prog.Inputs,
	}
	count := 0
	var lift func(e *Expr, top bool) *Expr
	lift = func(e *Expr, top bool) *Expr {
		c := *e
		c.Args = make([]*Expr, len(e.Args))
		for i, x := range e.Args {
			c.Args[i] = lift(x, false)
		}
		if top || !Vector(&c) {
			return &c
		}
		name := fmt.Sprintf("h%d", count)
		count++
		out.Decls = append(out.Decls, &Decl{Name: name, Expr: &c})
		return &Expr{Op: OpRef, Name: name}
	}
	for _, d := range prog.Decls {
		e := lift(d.Expr, true)
		out.Decls = append(out.Decls, &Decl{Name: d.Name, Expr: e})
	}
	out.Result = lift(prog.Result, false)
	return out
}
