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
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/projections/formula/lang/ast"
	"github.com/projections/formula/lang/cse"
	"github.com/projections/formula/lang/interfaces"
	"github.com/projections/formula/lang/parser"
	"github.com/projections/formula/lang/poly"
	"gopkg.in/yaml.v2"
)

func finish(t *testing.T, code string, meta poly.Metadata) *ast.Node {
	tree, err := parser.Parse(code)
	if err != nil {
		t.Fatalf("parse failed: %+v", err)
	}
	out, err := poly.Resolve(cse.CSE(tree), meta)
	if err != nil {
		t.Fatalf("resolve failed: %+v", err)
	}
	return out
}

func TestLower1(t *testing.T) {
	meta := poly.Metadata{
		"poly(log(x + 1), 2)": {Norm2: []float64{1, 4, 9}, Alpha: []float64{0.3}},
	}
	root := finish(t, "0.5 * I(x) + -1.2 * poly(log(x + 1), 2)1 + 2 * poly(log(x + 1), 2)0 + factor(r)3:b", meta)
	prog, err := Lower(root, "test", "out")
	if err != nil {
		t.Fatalf("lower failed: %+v", err)
	}
	if !reflect.DeepEqual(prog.Inputs, []string{"b", "r", "x"}) {
		t.Errorf("unexpected inputs: %v", prog.Inputs)
	}
	if len(prog.Decls) != 2 {
		t.Fatalf("expected two declarations, got: %d", len(prog.Decls))
	}
	if prog.Decls[0].Expr.Op != OpPoly || prog.Decls[1].Expr.Op != OpEq {
		t.Errorf("unexpected declarations: %s, %s", prog.Decls[0].Expr, prog.Decls[1].Expr)
	}
	if prog.Result.Op != OpAdd || len(prog.Result.Args) != 4 {
		t.Errorf("unexpected result: %s", prog.Result)
	}
	// the interaction is a product of the shared comparison and an input
	inter := prog.Result.Args[3]
	if inter.Op != OpMul || inter.Args[0].Op != OpRef {
		t.Errorf("unexpected interaction: %s", inter)
	}
}

func TestLowerUnsupported(t *testing.T) {
	type test struct { // an individual test
		name string
		root *ast.Node
		typ  string
	}
	testCases := []test{}

	{
		testCases = append(testCases, test{
			name: "grouping",
			root: ast.NewNode(ast.OpGroup, ast.In("x"), ast.In("g")),
			typ:  "|",
		})
	}
	{
		testCases = append(testCases, test{
			name: "unresolved poly",
			root: ast.NewNode(ast.OpSel, ast.NewNode(ast.OpPoly, ast.In("x"), ast.Int(2)), ast.Int(1)),
			typ:  "unresolved poly",
		})
	}
	{
		testCases = append(testCases, test{
			name: "string",
			root: ast.NewNode(ast.OpLog, ast.Str("x")),
			typ:  "str",
		})
	}
	{
		testCases = append(testCases, test{
			name: "list",
			root: ast.NewNode(ast.OpAdd, ast.In("x"), ast.List([]float64{1, 2})),
			typ:  "list",
		})
	}
	{
		testCases = append(testCases, test{
			name: "matrix input",
			root: ast.NewNode(ast.OpLog, ast.NewNode(ast.OpIn, ast.Str("m"), ast.Str(ast.TypeMatrix))),
			typ:  "in float64[:, :]",
		})
	}

	for index, tc := range testCases { // run all the tests
		name, root, typ := tc.name, tc.root, tc.typ
		t.Run(fmt.Sprintf("test #%d (%s)", index, name), func(t *testing.T) {
			_, err := Lower(root, "test", "out")
			if !errors.Is(err, interfaces.ErrUnsupported) {
				t.Fatalf("test #%d: expected an unsupported error, got: %+v", index, err)
			}
			if e, ok := err.(*interfaces.UnsupportedErr); !ok || e.Type != typ {
				t.Errorf("test #%d: expected type %s, got: %+v", index, typ, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	input := func(name string) *Expr { return &Expr{Op: OpInput, Name: name} }
	type test struct { // an individual test
		name string
		prog *Program
		fail string
	}
	testCases := []test{}

	{
		testCases = append(testCases, test{
			name: "ok",
			prog: &Program{
				Inputs: []string{"x"},
				Decls: []*Decl{
					{Name: "v1", Expr: &Expr{Op: OpPoly, Args: []*Expr{input("x")}, Degree: 1, Norm2: []float64{3, 2}, Alpha: []float64{1}}},
				},
				Result: &Expr{Op: OpSel, Args: []*Expr{{Op: OpRef, Name: "v1"}}, Index: 1},
			},
		})
	}
	{
		testCases = append(testCases, test{
			name: "unknown op",
			prog: &Program{Result: &Expr{Op: "sin", Args: []*Expr{{Op: OpConst}}}},
			fail: "unsupported",
		})
	}
	{
		testCases = append(testCases, test{
			name: "forward reference",
			prog: &Program{
				Decls: []*Decl{
					{Name: "v1", Expr: &Expr{Op: OpRef, Name: "v2"}},
					{Name: "v2", Expr: &Expr{Op: OpConst, Value: 1}},
				},
				Result: &Expr{Op: OpRef, Name: "v1"},
			},
			fail: "later declaration",
		})
	}
	{
		testCases = append(testCases, test{
			name: "undeclared input",
			prog: &Program{Inputs: []string{"x"}, Result: input("y")},
			fail: "undeclared input",
		})
	}
	{
		testCases = append(testCases, test{
			name: "unsorted inputs",
			prog: &Program{Inputs: []string{"y", "x"}, Result: input("y")},
			fail: "sorted",
		})
	}
	{
		testCases = append(testCases, test{
			name: "matrix arithmetic",
			prog: &Program{
				Inputs: []string{"x"},
				Result: &Expr{Op: OpLog, Args: []*Expr{{Op: OpPoly, Args: []*Expr{input("x")}, Degree: 1, Norm2: []float64{3, 2}, Alpha: []float64{1}}}},
			},
			fail: "matrix",
		})
	}
	{
		testCases = append(testCases, test{
			name: "sel out of range",
			prog: &Program{
				Inputs: []string{"x"},
				Result: &Expr{Op: OpSel, Index: 2, Args: []*Expr{{Op: OpPoly, Args: []*Expr{input("x")}, Degree: 1, Norm2: []float64{3, 2}, Alpha: []float64{1}}}},
			},
			fail: "out of range",
		})
	}
	{
		testCases = append(testCases, test{
			name: "sel past the fitted alpha",
			prog: &Program{
				Inputs: []string{"x"},
				Decls: []*Decl{
					{Name: "v1", Expr: &Expr{Op: OpPoly, Args: []*Expr{input("x")}, Degree: 3, Norm2: []float64{1, 2, 3, 4}, Alpha: []float64{0.5}}},
				},
				Result: &Expr{Op: OpSel, Args: []*Expr{{Op: OpRef, Name: "v1"}}, Index: 3},
			},
			fail: "out of range",
		})
	}
	{
		testCases = append(testCases, test{
			name: "sel within the fitted alpha",
			prog: &Program{
				Inputs: []string{"x"},
				Result: &Expr{Op: OpSel, Index: 1, Args: []*Expr{{Op: OpPoly, Args: []*Expr{input("x")}, Degree: 2, Norm2: []float64{1, 4, 9}, Alpha: []float64{0.3}}}},
			},
		})
	}
	{
		testCases = append(testCases, test{
			name: "arity",
			prog: &Program{Result: &Expr{Op: OpAdd, Args: []*Expr{{Op: OpConst}}}},
			fail: "args",
		})
	}

	for index, tc := range testCases { // run all the tests
		name, prog, fail := tc.name, tc.prog, tc.fail
		t.Run(fmt.Sprintf("test #%d (%s)", index, name), func(t *testing.T) {
			err := prog.Validate()
			if fail == "" && err != nil {
				t.Errorf("test #%d: validate failed: %+v", index, err)
			}
			if fail != "" && (err == nil || !strings.Contains(err.Error(), fail)) {
				t.Errorf("test #%d: expected an error containing %q, got: %v", index, fail, err)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	meta := poly.Metadata{
		"poly(x, 2)": {Norm2: []float64{1, 4, 9}, Alpha: []float64{0.3, 0.5}},
	}
	root := finish(t, "scale(log(y), 0, 1) + poly(x, 2)2 * scale(y, 0, 1, 5, 10)", meta)
	prog, err := Lower(root, "test", "out")
	if err != nil {
		t.Fatalf("lower failed: %+v", err)
	}
	split := Split(prog)
	if err := split.Validate(); err != nil {
		t.Fatalf("split program is invalid: %+v", err)
	}
	names := []string{}
	for _, d := range split.Decls {
		names = append(names, d.Name)
		if d.Expr.Op == OpScale && len(d.Expr.Bounds) == 4 {
			t.Errorf("bounded scale should stay inline")
		}
	}
	if len(names) != 2 || names[1] != "h0" {
		t.Errorf("unexpected declarations: %v", names)
	}
	// nothing but declarations may be vector ops
	var check func(e *Expr)
	check = func(e *Expr) {
		if Vector(e) {
			t.Errorf("vector op left inline: %s", e)
		}
		for _, x := range e.Args {
			check(x)
		}
	}
	check(split.Result)
	// the input program is not modified
	if !Vector(prog.Result.Args[0]) {
		t.Errorf("split modified its input")
	}
}

func TestYAML(t *testing.T) {
	meta := poly.Metadata{
		"poly(x, 1)": {Norm2: []float64{3, 2}, Alpha: []float64{1}},
	}
	prog, err := Lower(finish(t, "poly(x, 1)1 + factor(r)1 - 2 / y", meta), "test", "out")
	if err != nil {
		t.Fatalf("lower failed: %+v", err)
	}
	b, err := yaml.Marshal(prog)
	if err != nil {
		t.Fatalf("marshal failed: %+v", err)
	}
	out := &Program{}
	if err := yaml.UnmarshalStrict(b, out); err != nil {
		t.Fatalf("unmarshal failed: %+v", err)
	}
	if diff := pretty.Compare(prog, out); diff != "" {
		t.Errorf("cached program differs:\n%s", diff)
	}
}

func TestGoExpr(t *testing.T) {
	e := &Expr{Op: OpAdd, Args: []*Expr{
		{Op: OpMul, Args: []*Expr{{Op: OpConst, Value: -1.5}, {Op: OpInput, Name: "x"}}},
		{Op: OpInvLogit, Args: []*Expr{{Op: OpScale, Args: []*Expr{{Op: OpInput, Name: "y"}}, Bounds: []float64{0, 1, 2, 3}}}},
	}}
	leaf := func(e *Expr) (string, error) { return e.Name + "[i]", nil }
	s, err := GoExpr(e, leaf)
	if err != nil {
		t.Fatalf("render failed: %+v", err)
	}
	exp := "(((-1.5) * x[i]) + poly.InvLogit(poly.ScaleValue(y[i], 0, 1, 2, 3)))"
	if s != exp {
		t.Errorf("unexpected source: %s", s)
	}
	if _, err := GoExpr(&Expr{Op: OpPoly, Args: []*Expr{{Op: OpInput, Name: "x"}}}, leaf); !errors.Is(err, interfaces.ErrUnsupported) {
		t.Errorf("expected an unsupported error, got: %+v", err)
	}
}
