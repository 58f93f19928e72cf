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

package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/projections/formula/lang/ast"
	"github.com/projections/formula/lang/interfaces"
)

// Intercept is the identifier the fitting toolchain uses for the constant term.
// It reads as the literal 1.
const Intercept = "Intercept"

// Walker converts raw parse trees into canonical trees, resolving the special
// forms of the formula language.
type Walker struct {
	// Levels maps the name of a categorical input to its ordered level
	// names. A quoted string made of a categorical name followed by one of
	// its levels becomes a comparison against that level's code. Codes
	// start at zero in the order given here.
	Levels map[string][]string

	text string // the text being walked, used for error messages
}

// Walk converts a raw tree that was parsed from text. It is safe to call
// concurrently.
func (obj *Walker) Walk(text string, raw *Raw) (*ast.Node, error) {
	w := &Walker{
		Levels: obj.Levels,
		text:   text,
	}
	arg, err := w.walk(raw)
	if err != nil {
		return nil, err
	}
	if n, ok := arg.(*ast.Node); ok {
		return n, nil
	}
	// downstream passes always receive a node
	return ast.NewNode(ast.OpI, arg), nil
}

func (obj *Walker) source(raw *Raw) string {
	if raw.Start < 0 || raw.End > len(obj.text) || raw.Start >= raw.End {
		return obj.text
	}
	return obj.text[raw.Start:raw.End]
}

func (obj *Walker) invalid(raw *Raw, format string, args ...interface{}) error {
	return &interfaces.ValidationErr{
		Term: obj.source(raw),
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (obj *Walker) walk(raw *Raw) (ast.Arg, error) {
	switch raw.Kind {
	case RawInt:
		return ast.Int(raw.Int), nil

	case RawFloat:
		return ast.Float(raw.Float), nil

	case RawIdent:
		if raw.Text == Intercept {
			return ast.Int(1), nil
		}
		return ast.In(raw.Text), nil

	case RawString:
		return obj.walkString(raw)

	case RawCall:
		return obj.walkCall(raw)

	case RawChain:
		return obj.walkChain(raw)
	}
	return nil, obj.invalid(raw, "unknown parse element")
}

// walkString resolves a quoted name. Quoting is how a categorical level that
// isn't a valid identifier gets through the grammar. Any other string is the
// name of an input column.
func (obj *Walker) walkString(raw *Raw) (ast.Arg, error) {
	s := raw.Text
	if s == Intercept || s == "("+Intercept+")" {
		return ast.Int(1), nil
	}

	// longest categorical name first, so `landuse` doesn't shadow `land`
	names := []string{}
	for name := range obj.Levels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		if !strings.HasPrefix(s, name) || len(s) == len(name) {
			continue
		}
		level := s[len(name):]
		for code, l := range obj.Levels[name] {
			if l == level {
				return ast.NewNode(ast.OpEq, ast.In(name), ast.Int(code)), nil
			}
		}
		return nil, obj.invalid(raw, "unknown level `%s` of categorical `%s`", level, name)
	}
	return ast.In(s), nil
}

func (obj *Walker) walkArgs(raw *Raw) ([]ast.Arg, error) {
	args := []ast.Arg{}
	for _, x := range raw.Args {
		a, err := obj.walk(x)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return args, nil
}

func (obj *Walker) walkCall(raw *Raw) (ast.Arg, error) {
	name := raw.Text
	if raw.HasSuffix && name != "factor" && name != "poly" {
		return nil, obj.invalid(raw, "unexpected index after %s()", name)
	}

	switch name {
	case "factor":
		if len(raw.Args) != 1 {
			return nil, obj.invalid(raw, "unexpected number of arguments to factor")
		}
		if raw.Args[0].Kind != RawIdent {
			return nil, obj.invalid(raw, "argument to factor is an expression")
		}
		if !raw.HasSuffix {
			return nil, obj.invalid(raw, "factor is missing its level")
		}
		return ast.NewNode(ast.OpEq, ast.In(raw.Args[0].Text), ast.Int(raw.Suffix)), nil

	case "poly":
		if len(raw.Args) != 2 {
			return nil, obj.invalid(raw, "unexpected number of arguments to poly")
		}
		if raw.Args[1].Kind != RawInt {
			return nil, obj.invalid(raw, "degree argument to poly is not an int")
		}
		degree := raw.Args[1].Int
		if degree < 1 {
			return nil, obj.invalid(raw, "degree argument to poly must be positive")
		}
		power := int64(1)
		if raw.HasSuffix {
			power = raw.Suffix
		}
		if power < 0 || power > degree {
			return nil, obj.invalid(raw, "power %d is out of range for degree %d", power, degree)
		}
		inner, err := obj.walk(raw.Args[0])
		if err != nil {
			return nil, err
		}
		p := ast.NewNode(ast.OpPoly, inner, ast.Int(degree))
		return ast.NewNode(ast.OpSel, p, ast.Int(power)), nil

	case "scale":
		if len(raw.Args) != 3 && len(raw.Args) != 5 {
			return nil, obj.invalid(raw, "unexpected number of arguments to scale")
		}
		inner, err := obj.walk(raw.Args[0])
		if err != nil {
			return nil, err
		}
		args := []ast.Arg{inner}
		for _, x := range raw.Args[1:] {
			switch x.Kind {
			case RawInt:
				args = append(args, ast.Int(x.Int))
			case RawFloat:
				args = append(args, ast.Float(x.Float))
			default:
				return nil, obj.invalid(raw, "bounds of scale must be numbers")
			}
		}
		return ast.NewNode(ast.OpScale, args...), nil
	}

	op, exists := ast.LookupOperator(name)
	arity := 0
	switch op {
	case ast.OpLog, ast.OpExp, ast.OpI, ast.OpInvLogit:
		arity = 1
	case ast.OpMin, ast.OpMax, ast.OpPowFn:
		arity = 2
	default:
		exists = false
	}
	if !exists {
		return nil, obj.invalid(raw, "unknown function `%s`", name)
	}
	if len(raw.Args) != arity {
		return nil, obj.invalid(raw, "unexpected number of arguments to %s", name)
	}
	args, err := obj.walkArgs(raw)
	if err != nil {
		return nil, err
	}
	return ast.NewNode(op, args...), nil
}

// walkChain folds a flat chain of left associative operators. Runs of the same
// operator become one n-ary node. A parenthesized operand is merged into its
// parent only when that can't change the result: always for associative
// operators, and in the leading position for the others.
func (obj *Walker) walkChain(raw *Raw) (ast.Arg, error) {
	operands, err := obj.walkArgs(raw)
	if err != nil {
		return nil, err
	}

	if len(raw.Ops) == 1 && raw.Ops[0] == "^" { // right associative, binary
		return ast.NewNode(ast.OpPow, operands[0], operands[1]), nil
	}

	var cur ast.Operator
	args := []ast.Arg{}
	for i, tag := range raw.Ops {
		op, exists := ast.LookupOperator(tag)
		if !exists {
			return nil, obj.invalid(raw, "unknown operator `%s`", tag)
		}
		if i == 0 {
			cur = op
			args = append(args, flatten(op, operands[0], true)...)
		} else if op != cur {
			left := ast.NewNode(cur, args...)
			cur = op
			args = []ast.Arg{left}
		}
		args = append(args, flatten(op, operands[i+1], false)...)
	}
	return ast.NewNode(cur, args...), nil
}

func flatten(op ast.Operator, arg ast.Arg, leading bool) []ast.Arg {
	n, ok := arg.(*ast.Node)
	if !ok || n.Type != op || !(leading || op.IsAssociative()) {
		return []ast.Arg{arg}
	}
	return n.Args()
}
