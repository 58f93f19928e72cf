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

package ast

import (
	"fmt"
	"strings"
)

// precedence of the infix operators, higher binds tighter
func precedence(op Operator) int {
	switch op {
	case OpAdd, OpSub:
		return 1
	case OpMul, OpDiv:
		return 2
	case OpInter, OpGroup:
		return 3
	case OpPow:
		return 4
	}
	return 5 // atoms and calls
}

// Render prints a tree back as formula text. Parsing the result gives a tree
// equal to the one that was rendered. A poly node renders without its fitted
// constants, which is the form its metadata is keyed by.
func Render(root Arg) string {
	switch x := root.(type) {
	case nil:
		return ""
	case Str:
		return x.String()
	case Int:
		return x.String()
	case Float:
		return x.String()
	case *Node:
		return renderNode(x)
	}
	return fmt.Sprintf("%v", root)
}

func renderNode(obj *Node) string {
	switch obj.Type {
	case OpAdd, OpSub, OpMul, OpDiv, OpPow, OpInter, OpGroup:
		return renderInfix(obj)

	case OpIn:
		if s, ok := obj.args[0].(Str); ok {
			return string(s)
		}

	case OpEq:
		// factor(name)level is the only comparison the grammar can spell
		if in, ok := obj.Child(0, OpIn); ok && len(obj.args) == 2 {
			if level, ok := obj.args[1].(Int); ok {
				return fmt.Sprintf("factor(%s)%d", Render(in), level)
			}
		}
		return "(" + Render(obj.args[0]) + " == " + Render(obj.args[1]) + ")"

	case OpVar:
		if len(obj.args) > 1 {
			return Render(obj.args[1]) // transparent
		}
		// a reference has nothing to print

	case OpSel:
		return fmt.Sprintf("%s%s", Render(obj.args[0]), Render(obj.args[1]))

	case OpPoly:
		return fmt.Sprintf("poly(%s, %s)", Render(obj.args[0]), Render(obj.args[1]))

	case OpList:
		return "c(" + renderArgs(obj.args) + ")"

	case OpI, OpLog, OpExp, OpInvLogit, OpMin, OpMax, OpPowFn, OpScale:
		return obj.Type.String() + "(" + renderArgs(obj.args) + ")"
	}
	return obj.String() // not expressible, fall back to the s-expression
}

func renderArgs(args []Arg) string {
	parts := []string{}
	for _, x := range args {
		parts = append(parts, Render(x))
	}
	return strings.Join(parts, ", ")
}

func renderInfix(obj *Node) string {
	p := precedence(obj.Type)
	rightAssoc := obj.Type == OpPow
	parts := []string{}
	for i, x := range obj.args {
		s := Render(x)
		if child, ok := x.(*Node); ok && child.Type.IsBinary() && child.Type != OpEq {
			cp := precedence(child.Type)
			// the leading operand of a left associative chain, or the
			// trailing operand of a right associative one, can share
			// our precedence level without parens
			first := i == 0 && !rightAssoc
			last := i == len(obj.args)-1 && rightAssoc
			if cp < p || (cp == p && !first && !last) {
				s = "(" + s + ")"
			}
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " "+obj.Type.String()+" ")
}
