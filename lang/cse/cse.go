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

// Package cse implements common subexpression elimination over formula trees.
// Only the operators that are expensive to recompute are shared: the
// orthogonal polynomial basis and the categorical comparison.
package cse

import (
	"github.com/projections/formula/lang/ast"
)

// Cacheable returns true if subtrees of this type are shared by CSE.
func Cacheable(op ast.Operator) bool {
	return op == ast.OpPoly || op == ast.OpEq
}

// Binding is one shared subtree and the id that references it.
type Binding struct {
	ID   int64
	Expr *ast.Node
}

// entry is a materialized subtree, remembered in its pre-CSE form so that two
// occurrences compare equal even after their own children were rewritten.
type entry struct {
	orig *ast.Node
	id   int64
}

type state struct {
	cache map[uint64][]*entry // keyed by the pre-CSE hash
	used  map[int64]struct{}  // every id handed out or found in the tree
}

// CSE rewrites the tree so that every structurally distinct cacheable subtree
// is materialized once. The first occurrence in post-order becomes
// var(id, subtree) and every later occurrence becomes the reference var(id).
// Existing var nodes are left untouched and their ids are reserved, which makes
// running CSE on its own output a no-op.
func CSE(root *ast.Node) *ast.Node {
	obj := &state{
		cache: make(map[uint64][]*entry),
		used:  make(map[int64]struct{}),
	}
	ast.Walk(root, func(x ast.Arg) error {
		if n, ok := x.(*ast.Node); ok && n.Type == ast.OpVar {
			if id, ok := VarID(n); ok {
				obj.used[id] = struct{}{}
			}
		}
		return nil
	})

	out := obj.rewrite(root)
	if n, ok := out.(*ast.Node); ok {
		return n
	}
	return root // unreachable, nodes always rewrite to nodes
}

func (obj *state) rewrite(arg ast.Arg) ast.Arg {
	n, ok := arg.(*ast.Node)
	if !ok || n.Type == ast.OpVar {
		return arg
	}

	// children first, so nested shared subtrees are bound before their
	// parents and come out earlier in the binding order
	changed := false
	args := n.Args()
	for i, x := range args {
		y := obj.rewrite(x)
		if y != x {
			changed = true
		}
		args[i] = y
	}
	out := n
	if changed {
		out = ast.NewNode(n.Type, args...)
	}
	if !Cacheable(n.Type) {
		return out
	}

	h := n.Hash()
	for _, e := range obj.cache[h] {
		if ast.Equal(e.orig, n) { // a hash match is not enough
			return ast.NewNode(ast.OpVar, ast.Int(e.id))
		}
	}
	id := obj.alloc(h)
	obj.cache[h] = append(obj.cache[h], &entry{orig: n, id: id})
	return ast.NewNode(ast.OpVar, ast.Int(id), out)
}

// alloc derives an id from the hash and probes upwards past any id that is
// already taken.
func (obj *state) alloc(h uint64) int64 {
	id := int64(h & 0xffffff)
	for {
		if _, exists := obj.used[id]; !exists {
			break
		}
		id = (id + 1) & 0xffffff
	}
	obj.used[id] = struct{}{}
	return id
}

// VarID returns the id of a var node.
func VarID(n *ast.Node) (int64, bool) {
	if n == nil || n.Type != ast.OpVar || n.Len() == 0 {
		return 0, false
	}
	id, ok := n.Arg(0).(ast.Int)
	return int64(id), ok
}

// Bindings returns the materialized var bindings of the tree in dependency
// order: a binding never refers to a var that comes after it.
func Bindings(root ast.Arg) []*Binding {
	bindings := []*Binding{}
	ast.Walk(root, func(x ast.Arg) error {
		n, ok := x.(*ast.Node)
		if !ok || n.Type != ast.OpVar || n.Len() < 2 {
			return nil
		}
		id, ok := VarID(n)
		if !ok {
			return nil
		}
		expr, ok := n.Arg(1).(*ast.Node)
		if !ok {
			return nil
		}
		bindings = append(bindings, &Binding{ID: id, Expr: expr})
		return nil
	})
	return bindings
}

// Materialized returns the number of cacheable subtrees in the tree that are
// not var references.
func Materialized(root ast.Arg) int {
	count := 0
	ast.Walk(root, func(x ast.Arg) error {
		if n, ok := x.(*ast.Node); ok && Cacheable(n.Type) {
			count++
		}
		return nil
	})
	return count
}

// Distinct returns the number of structurally distinct cacheable subtrees in
// a tree that hasn't been through CSE.
func Distinct(root ast.Arg) int {
	seen := make(map[uint64][]*ast.Node)
	count := 0
	ast.Walk(root, func(x ast.Arg) error {
		n, ok := x.(*ast.Node)
		if !ok || !Cacheable(n.Type) {
			return nil
		}
		for _, m := range seen[n.Hash()] {
			if ast.Equal(m, n) {
				return nil
			}
		}
		seen[n.Hash()] = append(seen[n.Hash()], n)
		count++
		return nil
	})
	return count
}
