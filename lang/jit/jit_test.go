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

package jit

import (
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"math"
	"strings"
	"testing"

	"github.com/projections/formula/lang/cse"
	"github.com/projections/formula/lang/interfaces"
	"github.com/projections/formula/lang/interpret"
	"github.com/projections/formula/lang/ir"
	formulaParser "github.com/projections/formula/lang/parser"
	"github.com/projections/formula/lang/poly"
)

var meta = poly.Metadata{
	"poly(x, 2)":              {Norm2: []float64{5, 10.2, 20.1}, Alpha: []float64{2.2, 2.4}},
	"poly(log(y), 2)":         {Norm2: []float64{5, 1.9, 0.8}, Alpha: []float64{0.6, 0.7}},
	"poly(factor(r)1 * x, 2)": {Norm2: []float64{5, 3.1, 4.2}, Alpha: []float64{0.9, 1.1}},
}

var inputs = map[string][]float64{
	"x": {0.5, 1, 2, 3.5, 4},
	"y": {1, 2, 0.75, 3, 5},
	"r": {0, 1, 2, 1, 0},
}

func program(t *testing.T, code string) *ir.Program {
	tree, err := formulaParser.Parse(code)
	if err != nil {
		t.Fatalf("parse failed: %+v", err)
	}
	tree, err = poly.Resolve(cse.CSE(tree), meta)
	if err != nil {
		t.Fatalf("resolve failed: %+v", err)
	}
	prog, err := ir.Lower(tree, "kernel", "out")
	if err != nil {
		t.Fatalf("lower failed: %+v", err)
	}
	return prog
}

func TestCompile0(t *testing.T) {
	type test struct { // an individual test
		code   string
		hoists int
	}
	testCases := []test{}

	{
		testCases = append(testCases, test{
			code:   "2.5 + x * y - x / 3 + (x - y) ^ 2 + pow(y, 0.5) + min(x, y) - max(x, 2) + exp(x / 10)",
			hoists: 0,
		})
	}
	{
		testCases = append(testCases, test{
			code:   "0.3 * factor(r)1 + -0.7 * factor(r)2:x + 1.1 * factor(r)1:log(y)",
			hoists: 0,
		})
	}
	{
		testCases = append(testCases, test{
			code:   "1.5 * poly(x, 2)1 + -0.5 * poly(x, 2)2 + poly(log(y), 2)1",
			hoists: 2,
		})
	}
	{
		testCases = append(testCases, test{
			code:   "inv_logit(0.2 + 1.3 * scale(x, 0, 1) - 0.4 * scale(y, 0, 1, 0.5, 5))",
			hoists: 1,
		})
	}
	{
		// the comparison is needed by both the pre-pass and the loop
		testCases = append(testCases, test{
			code:   "factor(r)1 + poly(factor(r)1 * x, 2)2 - scale(poly(x, 2)1, -1, 1)",
			hoists: 3,
		})
	}

	for index, tc := range testCases { // run all the tests
		code, hoists := tc.code, tc.hoists
		t.Run(fmt.Sprintf("test #%d (%s)", index, code), func(t *testing.T) {
			prog := program(t, code)
			ref, err := interpret.New(prog)
			if err != nil {
				t.Fatalf("test #%d: interpreter failed: %+v", index, err)
			}
			exp, err := ref.Eval(inputs)
			if err != nil {
				t.Fatalf("test #%d: interpreter failed: %+v", index, err)
			}

			k, err := Compile(prog)
			if err != nil {
				t.Fatalf("test #%d: compile failed: %+v", index, err)
			}
			if len(k.hoists) != hoists {
				t.Errorf("test #%d: expected %d pre-passes, got: %d", index, hoists, len(k.hoists))
			}
			out, err := k.Eval(inputs)
			if err != nil {
				t.Fatalf("test #%d: eval failed: %+v", index, err)
			}
			for i := range exp {
				if math.Abs(out[i]-exp[i]) > 1e-5 {
					t.Errorf("test #%d: element %d: got %f, expected %f", index, i, out[i], exp[i])
				}
			}

			src, err := k.Source("models")
			if err != nil {
				t.Fatalf("test #%d: source failed: %+v", index, err)
			}
			if _, err := parser.ParseFile(token.NewFileSet(), "kernel.go", src, 0); err != nil {
				t.Errorf("test #%d: source doesn't parse: %+v\n%s", index, err, src)
			}
			if got := strings.Count(string(src), "for i := 0; i < n; i++ {"); got != hoists+1 {
				t.Errorf("test #%d: expected %d loops, got %d:\n%s", index, hoists+1, got, src)
			}
		})
	}
}

func TestScenario(t *testing.T) {
	tree, err := formulaParser.Parse("0.5 * I(x) + -1.2 * poly(log(x + 1), 2)1")
	if err != nil {
		t.Fatalf("parse failed: %+v", err)
	}
	tree, err = poly.Resolve(cse.CSE(tree), poly.Metadata{
		"poly(log(x + 1), 2)": {Norm2: []float64{1, 4, 9}, Alpha: []float64{0.3}},
	})
	if err != nil {
		t.Fatalf("resolve failed: %+v", err)
	}
	prog, err := ir.Lower(tree, "scenario", "out")
	if err != nil {
		t.Fatalf("lower failed: %+v", err)
	}
	k, err := Compile(prog)
	if err != nil {
		t.Fatalf("compile failed: %+v", err)
	}
	x := []float64{0, 1, 2}
	out, err := k.Eval(map[string][]float64{"x": x})
	if err != nil {
		t.Fatalf("eval failed: %+v", err)
	}
	for i, v := range x {
		exp := 0.5*v - 1.2*(math.Log(v+1)-0.3)/2
		if math.Abs(out[i]-exp) > 1e-6 {
			t.Errorf("element %d: got %f, expected %f", i, out[i], exp)
		}
	}
}

func TestEvalMissing(t *testing.T) {
	k, err := Compile(program(t, "x + log(y) * factor(r)1"))
	if err != nil {
		t.Fatalf("compile failed: %+v", err)
	}
	_, err = k.Eval(map[string][]float64{"x": {1}})
	e, ok := err.(*interfaces.MissingInputErr)
	if !ok || !errors.Is(err, interfaces.ErrMissingInput) {
		t.Fatalf("expected a missing input error, got: %+v", err)
	}
	if strings.Join(e.Names, ",") != "r,y" {
		t.Errorf("expected every missing input to be named, got: %v", e.Names)
	}
}
