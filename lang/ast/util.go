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

// Inputs returns the names of all the input leaves in the tree, in the order
// they are first seen by a post-order walk, without duplicates.
func Inputs(root Arg) []string {
	names := []string{}
	for _, x := range inputNodes(root) {
		names = append(names, string(x.args[0].(Str)))
	}
	return names
}

// InputTypes returns the declared element type of every input leaf, keyed by
// name. The first declaration of a name wins.
func InputTypes(root Arg) map[string]string {
	types := make(map[string]string)
	for _, x := range inputNodes(root) {
		name := string(x.args[0].(Str))
		typ := TypeArray
		if len(x.args) > 1 {
			if s, ok := x.args[1].(Str); ok {
				typ = string(s)
			}
		}
		types[name] = typ
	}
	return types
}

func inputNodes(root Arg) []*Node {
	seen := make(map[string]struct{})
	nodes := []*Node{}
	Walk(root, func(x Arg) error {
		n, ok := x.(*Node)
		if !ok || n.Type != OpIn || len(n.args) == 0 {
			return nil
		}
		s, ok := n.args[0].(Str)
		if !ok {
			return nil
		}
		if _, exists := seen[string(s)]; exists {
			return nil
		}
		seen[string(s)] = struct{}{}
		nodes = append(nodes, n)
		return nil
	})
	return nodes
}

// Count returns the number of nodes of the given type in the tree. Shared
// subtrees are counted once per occurrence.
func Count(root Arg, op Operator) int {
	count := 0
	Walk(root, func(x Arg) error {
		if n, ok := x.(*Node); ok && n.Type == op {
			count++
		}
		return nil
	})
	return count
}

// Floats returns the values of a list node as floats. Int elements are
// converted, anything else is an error signalled by a false return.
func Floats(list *Node) ([]float64, bool) {
	if list == nil || list.Type != OpList {
		return nil, false
	}
	out := make([]float64, 0, len(list.args))
	for _, x := range list.args {
		switch v := x.(type) {
		case Float:
			out = append(out, float64(v))
		case Int:
			out = append(out, float64(v))
		default:
			return nil, false
		}
	}
	return out, true
}

// List builds a list node from floats.
func List(values []float64) *Node {
	args := make([]Arg, 0, len(values))
	for _, v := range values {
		args = append(args, Float(v))
	}
	return NewNode(OpList, args...)
}
