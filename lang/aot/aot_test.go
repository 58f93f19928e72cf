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

package aot

import (
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"math"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/projections/formula/lang/cse"
	"github.com/projections/formula/lang/interfaces"
	"github.com/projections/formula/lang/interpret"
	"github.com/projections/formula/lang/ir"
	formulaParser "github.com/projections/formula/lang/parser"
	"github.com/projections/formula/lang/poly"
)

var meta = poly.Metadata{
	"poly(x, 2)":      {Norm2: []float64{5, 10.2, 20.1}, Alpha: []float64{2.2, 2.4}},
	"poly(log(y), 2)": {Norm2: []float64{5, 1.9, 0.8}, Alpha: []float64{0.6, 0.7}},
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
	prog, err := ir.Lower(tree, "test model", "out")
	if err != nil {
		t.Fatalf("lower failed: %+v", err)
	}
	return prog
}

func TestCompile0(t *testing.T) {
	testCases := []string{
		"2.5 + x * y - x / 3 + (x - y) ^ 2 + pow(y, 0.5) + min(x, y) - max(x, 2) + exp(x / 10)",
		"0.3 * factor(r)1 + -0.7 * factor(r)2:x + 1.1 * factor(r)1:log(y)",
		"1.5 * poly(x, 2)1 + -0.5 * poly(x, 2)2 + poly(log(y), 2)1",
		"inv_logit(0.2 + 1.3 * scale(x, 0, 1) - 0.4 * scale(y, 0, 1, 0.5, 5))",
		"scale(poly(x, 2)2 * factor(r)1, -1, 1) + 3",
	}

	for index, code := range testCases { // run all the tests
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

			fn, err := Compile(prog)
			if err != nil {
				t.Fatalf("test #%d: compile failed: %+v", index, err)
			}
			out, err := fn.Eval(inputs)
			if err != nil {
				t.Fatalf("test #%d: eval failed: %+v", index, err)
			}
			for i := range exp {
				if math.Abs(out[i]-exp[i]) > 1e-5 {
					t.Errorf("test #%d: element %d: got %f, expected %f", index, i, out[i], exp[i])
				}
			}

			args := [][]float64{}
			for _, name := range fn.Inputs() {
				args = append(args, inputs[name])
			}
			again, err := fn.Call(args...)
			if err != nil {
				t.Fatalf("test #%d: call failed: %+v", index, err)
			}
			if spew.Sdump(again) != spew.Sdump(out) {
				t.Errorf("test #%d: call and eval differ", index)
			}

			src, err := fn.Source("models")
			if err != nil {
				t.Fatalf("test #%d: source failed: %+v", index, err)
			}
			if _, err := parser.ParseFile(token.NewFileSet(), "test.go", src, 0); err != nil {
				t.Errorf("test #%d: source doesn't parse: %+v\n%s", index, err, src)
			}
			if !strings.Contains(string(src), "func TestModel(") {
				t.Errorf("test #%d: unexpected source:\n%s", index, src)
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
	fn, err := Compile(prog)
	if err != nil {
		t.Fatalf("compile failed: %+v", err)
	}
	x := []float64{0, 1, 2}
	out, err := fn.Call(x)
	if err != nil {
		t.Fatalf("call failed: %+v", err)
	}
	for i, v := range x {
		exp := 0.5*v - 1.2*(math.Log(v+1)-0.3)/2
		if math.Abs(out[i]-exp) > 1e-6 {
			t.Errorf("element %d: got %f, expected %f", i, out[i], exp)
		}
	}
}

func TestCallErr(t *testing.T) {
	fn, err := Compile(program(t, "x + y"))
	if err != nil {
		t.Fatalf("compile failed: %+v", err)
	}
	_, err = fn.Call([]float64{1})
	if !errors.Is(err, interfaces.ErrMissingInput) {
		t.Errorf("expected a missing input error, got: %+v", err)
	}
	if e, ok := err.(*interfaces.MissingInputErr); !ok || len(e.Names) != 1 || e.Names[0] != "y" {
		t.Errorf("expected y to be missing, got: %+v", err)
	}
	if _, err := fn.Call([]float64{1, 2}, []float64{1, 2, 3}); err == nil {
		t.Errorf("expected a length mismatch error")
	}
	// a scalar broadcasts
	out, err := fn.Call([]float64{1, 2, 3}, []float64{10})
	if err != nil {
		t.Fatalf("call failed: %+v", err)
	}
	if spew.Sdump(out) != spew.Sdump([]float64{11, 12, 13}) {
		t.Errorf("unexpected broadcast result: %v", out)
	}
}

func TestCompileUnsupported(t *testing.T) {
	prog := &ir.Program{
		Inputs: []string{"x"},
		Result: &ir.Expr{Op: "sin", Args: []*ir.Expr{{Op: ir.OpInput, Name: "x"}}},
	}
	if _, err := Compile(prog); !errors.Is(err, interfaces.ErrUnsupported) {
		t.Errorf("expected an unsupported error, got: %+v", err)
	}
}
