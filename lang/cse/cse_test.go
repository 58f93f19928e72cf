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

package cse

import (
	"fmt"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/projections/formula/lang/ast"
	"github.com/projections/formula/lang/parser"
)

func TestCSE0(t *testing.T) {
	type test struct { // an individual test
		name     string
		code     string
		distinct int // distinct cacheable subtrees
		refs     int // expected var references
	}
	testCases := []test{}

	{
		testCases = append(testCases, test{
			name:     "nothing to share",
			code:     "x + log(y)",
			distinct: 0,
			refs:     0,
		})
	}
	{
		testCases = append(testCases, test{
			name:     "one poly",
			code:     "poly(x, 2)1",
			distinct: 1,
			refs:     0,
		})
	}
	{
		testCases = append(testCases, test{
			name:     "two columns of one basis",
			code:     "poly(log(x + 1), 3)1 + poly(log(x + 1), 3)2 + poly(log(x + 1), 3)3",
			distinct: 1,
			refs:     2,
		})
	}
	{
		testCases = append(testCases, test{
			name:     "different degree",
			code:     "poly(x, 2)1 + poly(x, 3)1",
			distinct: 2,
			refs:     0,
		})
	}
	{
		testCases = append(testCases, test{
			name:     "interactions",
			code:     "factor(r)1 + factor(r)1:poly(x, 2)1 + factor(r)2:poly(x, 2)2 + factor(r)2",
			distinct: 3,
			refs:     3,
		})
	}
	{
		testCases = append(testCases, test{
			name:     "nested",
			code:     "poly(factor(r)1 * x, 2)1 + poly(factor(r)1 * x, 2)2 + factor(r)1",
			distinct: 2,
			refs:     2,
		})
	}

	for index, tc := range testCases { // run all the tests
		name, code, distinct, refs := tc.name, tc.code, tc.distinct, tc.refs
		t.Run(fmt.Sprintf("test #%d (%s)", index, name), func(t *testing.T) {
			tree, err := parser.Parse(code)
			if err != nil {
				t.Fatalf("test #%d: parse failed: %+v", index, err)
			}
			if n := Distinct(tree); n != distinct {
				t.Errorf("test #%d: expected %d distinct subtrees, got: %d", index, distinct, n)
			}

			out := CSE(tree)
			if n := Materialized(out); n != distinct {
				t.Errorf("test #%d: expected %d materialized subtrees, got: %d", index, distinct, n)
				t.Logf("test #%d: tree: %s", index, out)
			}
			if n := len(Bindings(out)); n != distinct {
				t.Errorf("test #%d: expected %d bindings, got: %d", index, distinct, n)
			}
			count := 0
			ast.Walk(out, func(x ast.Arg) error {
				if n, ok := x.(*ast.Node); ok && n.Type == ast.OpVar && n.Len() == 1 {
					count++
				}
				return nil
			})
			if count != refs {
				t.Errorf("test #%d: expected %d references, got: %d", index, refs, count)
			}

			again := CSE(out)
			if !ast.Equal(out, again) {
				t.Errorf("test #%d: not idempotent", index)
				t.Logf("test #%d: first: %s", index, spew.Sdump(out.String()))
				t.Logf("test #%d: again: %s", index, spew.Sdump(again.String()))
			}
			// rendering sees through bindings, so the term is unchanged
			if distinct > 0 && refs == 0 && ast.Render(out) != ast.Render(tree) {
				t.Errorf("test #%d: render changed: %s", index, ast.Render(out))
			}
		})
	}
}

func TestBindingsOrder(t *testing.T) {
	tree, err := parser.Parse("poly(factor(r)1 * x, 2)1 + factor(r)1")
	if err != nil {
		t.Fatalf("parse failed: %+v", err)
	}
	bindings := Bindings(CSE(tree))
	if len(bindings) != 2 {
		t.Fatalf("expected two bindings, got: %d", len(bindings))
	}
	if bindings[0].Expr.Type != ast.OpEq || bindings[1].Expr.Type != ast.OpPoly {
		t.Errorf("expected the comparison to be bound before the poly that uses it")
	}
	if bindings[0].ID == bindings[1].ID {
		t.Errorf("expected distinct ids")
	}
}

func TestAllocProbe(t *testing.T) {
	obj := &state{
		cache: make(map[uint64][]*entry),
		used:  make(map[int64]struct{}),
	}
	a := obj.alloc(42)
	b := obj.alloc(42) // same hash, different subtree
	if a != 42 || b != 43 {
		t.Errorf("unexpected ids: %d, %d", a, b)
	}
}
