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
	"math"
	"reflect"
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

func sample() *Node {
	// log(x + 1) * poly(x, 2)1
	return NewNode(OpMul,
		NewNode(OpLog, NewNode(OpAdd, In("x"), Int(1))),
		NewNode(OpSel, NewNode(OpPoly, In("x"), Int(2)), Int(1)),
	)
}

func TestEqual1(t *testing.T) {
	a := sample()
	b := sample()
	if a == b {
		t.Errorf("expected distinct values")
	}
	if !Equal(a, b) || a.Hash() != b.Hash() {
		t.Errorf("expected structurally equal trees")
	}

	c := NewNode(OpMul,
		NewNode(OpLog, NewNode(OpAdd, In("x"), Int(1))),
		NewNode(OpSel, NewNode(OpPoly, In("x"), Int(2)), Int(2)),
	)
	if Equal(a, c) {
		t.Errorf("expected different trees")
	}
}

func TestEqualKinds(t *testing.T) {
	if Equal(Int(1), Float(1)) {
		t.Errorf("int and float literals should differ")
	}
	if Equal(Str("1"), Int(1)) {
		t.Errorf("string and int literals should differ")
	}
	if !Equal(Float(0), Float(math.Copysign(0, -1))) {
		t.Errorf("zero and negative zero should be equal")
	}
	if Float(0).Hash() != Float(math.Copysign(0, -1)).Hash() {
		t.Errorf("zero and negative zero should hash the same")
	}
	if !Equal(nil, nil) || Equal(Int(1), nil) {
		t.Errorf("unexpected nil comparison")
	}
}

func TestNodeImmutable(t *testing.T) {
	args := []Arg{In("x"), Int(1)}
	n := NewNode(OpAdd, args...)
	h := n.Hash()
	args[1] = Int(2) // the node owns a copy
	if !Equal(n.Arg(1), Int(1)) {
		t.Errorf("node args changed through the caller's slice")
	}
	out := n.Args()
	out[0] = Int(3)
	if !Equal(n.Arg(0), In("x")) {
		t.Errorf("node args changed through Args()")
	}
	if n.Hash() != h {
		t.Errorf("hash changed")
	}
}

func TestWalkPostOrder(t *testing.T) {
	tree := NewNode(OpAdd, NewNode(OpLog, In("x")), Int(1))
	seen := []string{}
	err := tree.Walk(func(x Arg) error {
		switch v := x.(type) {
		case *Node:
			seen = append(seen, v.Type.String())
		default:
			seen = append(seen, v.String())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk failed: %+v", err)
	}
	exp := []string{`"x"`, `"float64[:]"`, "in", "log", "1", "+"}
	if !reflect.DeepEqual(seen, exp) {
		t.Errorf("unexpected order: %s", pretty.Compare(seen, exp))
	}
}

func TestTransformPreOrder(t *testing.T) {
	tree := sample()
	seen := []Operator{}
	out, err := tree.Transform(func(x Arg) (Arg, error) {
		n, ok := x.(*Node)
		if !ok {
			return x, nil
		}
		seen = append(seen, n.Type)
		if n.Type == OpSel { // leave the poly alone
			return nil, ErrSkip
		}
		if n.Type == OpIn {
			return NewNode(OpIn, Str("y"), Str(TypeArray)), nil
		}
		return n, nil
	})
	if err != nil {
		t.Fatalf("transform failed: %+v", err)
	}
	exp := []Operator{OpMul, OpLog, OpAdd, OpIn, OpSel}
	if !reflect.DeepEqual(seen, exp) {
		t.Errorf("unexpected order: %s", pretty.Compare(seen, exp))
	}

	// the input under log was renamed, the one under sel was skipped
	want := NewNode(OpMul,
		NewNode(OpLog, NewNode(OpAdd, In("y"), Int(1))),
		NewNode(OpSel, NewNode(OpPoly, In("x"), Int(2)), Int(1)),
	)
	if !Equal(out, want) {
		t.Errorf("unexpected result: %s", out)
	}
	// the original is untouched
	if !Equal(tree, sample()) {
		t.Errorf("transform mutated its input: %s", tree)
	}
	// and unchanged subtrees are shared, not copied
	if out.(*Node).Arg(1) != tree.Arg(1) {
		t.Errorf("expected the skipped subtree to be shared")
	}
}

func TestTransformRemove(t *testing.T) {
	tree := NewNode(OpAdd, In("x"), Int(0), In("y"))
	out, err := Transform(tree, func(x Arg) (Arg, error) {
		if i, ok := x.(Int); ok && i == 0 {
			return nil, nil
		}
		return x, nil
	})
	if err != nil {
		t.Fatalf("transform failed: %+v", err)
	}
	if !Equal(out, NewNode(OpAdd, In("x"), In("y"))) {
		t.Errorf("unexpected result: %s", out)
	}
}

func TestInputs(t *testing.T) {
	tree := NewNode(OpAdd,
		NewNode(OpMul, In("b"), In("a")),
		NewNode(OpIn, Str("m"), Str(TypeMatrix)),
		In("b"),
	)
	if names := Inputs(tree); !reflect.DeepEqual(names, []string{"b", "a", "m"}) {
		t.Errorf("unexpected inputs: %v", names)
	}
	types := InputTypes(tree)
	if types["m"] != TypeMatrix || types["a"] != TypeArray {
		t.Errorf("unexpected types: %v", types)
	}
	if n := Count(tree, OpIn); n != 4 {
		t.Errorf("expected 4 inputs, got: %d", n)
	}
}

func TestRender1(t *testing.T) {
	tree := NewNode(OpAdd,
		NewNode(OpMul, Float(0.5), NewNode(OpI, In("x"))),
		NewNode(OpMul,
			Float(-1.2),
			NewNode(OpSel, NewNode(OpPoly, NewNode(OpLog, NewNode(OpAdd, In("x"), Int(1))), Int(2)), Int(1)),
		),
	)
	exp := "0.5 * I(x) + -1.2 * poly(log(x + 1), 2)1"
	if s := Render(tree); s != exp {
		t.Errorf("unexpected render: %s", s)
	}
	if s := Float(3).String(); s != "3.0" {
		t.Errorf("floats should render as floats: %s", s)
	}
}

func TestOperatorLookup(t *testing.T) {
	for op := OpAdd; op <= OpPowFn; op++ {
		got, exists := LookupOperator(op.String())
		if !exists || got != op {
			t.Errorf("operator %d did not round trip through %s", op, op)
		}
	}
	if _, exists := LookupOperator("sin"); exists {
		t.Errorf("unexpected operator")
	}
}
