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
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	// TypeArray is the declared element type of an ordinary input.
	TypeArray = "float64[:]"

	// TypeMatrix is the declared element type of an input that carries a
	// whole polynomial basis, one row per element.
	TypeMatrix = "float64[:, :]"
)

// ErrSkip can be returned by a TransformFunc to leave the current node and all
// of its children untouched.
var ErrSkip = errors.New("skip this node")

// Arg is anything that can appear in the argument list of a Node. It is sealed:
// the only implementations are *Node, Str, Int and Float.
type Arg interface {
	fmt.Stringer

	// Hash returns the structural hash of this argument.
	Hash() uint64

	isArg()
}

// Str is a string literal. It is used for input names, declared types and the
// level names of categorical comparisons.
type Str string

// Int is an integer literal.
type Int int64

// Float is a floating point literal.
type Float float64

func (Str) isArg()   {}
func (Int) isArg()   {}
func (Float) isArg() {}

// String returns a quoted representation of the string.
func (obj Str) String() string { return strconv.Quote(string(obj)) }

// String returns the decimal representation of the int.
func (obj Int) String() string { return strconv.FormatInt(int64(obj), 10) }

// String returns the shortest representation of the float that still reads
// back as a float.
func (obj Float) String() string {
	s := strconv.FormatFloat(float64(obj), 'g', -1, 64)
	if strings.ContainsAny(s, ".eEnN") { // NaN and Inf contain an n
		return s
	}
	return s + ".0"
}

// these kind bytes keep Int(1), Float(1) and Str("1") from colliding
const (
	kindStr byte = iota + 1
	kindInt
	kindFloat
	kindNode
)

// Hash returns the structural hash of the string.
func (obj Str) Hash() uint64 {
	d := xxhash.New()
	d.Write([]byte{kindStr})
	d.WriteString(string(obj))
	return d.Sum64()
}

// Hash returns the structural hash of the int.
func (obj Int) Hash() uint64 {
	return hashWord(kindInt, uint64(obj))
}

// Hash returns the structural hash of the float.
func (obj Float) Hash() uint64 {
	f := float64(obj)
	if f == 0 { // fold -0 into 0 since they compare equal
		f = 0
	}
	return hashWord(kindFloat, math.Float64bits(f))
}

func hashWord(kind byte, w uint64) uint64 {
	var b [9]byte
	b[0] = kind
	binary.LittleEndian.PutUint64(b[1:], w)
	return xxhash.Sum64(b[:])
}

// Node is one operator applied to an ordered list of arguments. Nodes are
// immutable: the hash is computed once in NewNode and the args can't be changed
// afterwards. Any pass that needs a different shape builds a new Node.
type Node struct {
	Type Operator

	args []Arg
	hash uint64
}

// NewNode builds a node. The args are copied, so the caller may reuse the slice.
func NewNode(op Operator, args ...Arg) *Node {
	obj := &Node{
		Type: op,
		args: make([]Arg, len(args)),
	}
	copy(obj.args, args)

	d := xxhash.New()
	var b [8]byte
	d.Write([]byte{kindNode})
	binary.LittleEndian.PutUint64(b[:], uint64(op))
	d.Write(b[:])
	for _, x := range obj.args {
		binary.LittleEndian.PutUint64(b[:], x.Hash())
		d.Write(b[:])
	}
	obj.hash = d.Sum64()
	return obj
}

// In builds a named input leaf with the ordinary array type.
func In(name string) *Node {
	return NewNode(OpIn, Str(name), Str(TypeArray))
}

func (*Node) isArg() {}

// Hash returns the cached structural hash of this node.
func (obj *Node) Hash() uint64 { return obj.hash }

// Args returns a copy of the argument list.
func (obj *Node) Args() []Arg {
	args := make([]Arg, len(obj.args))
	copy(args, obj.args)
	return args
}

// Arg returns the i'th argument.
func (obj *Node) Arg(i int) Arg { return obj.args[i] }

// Len returns the number of arguments.
func (obj *Node) Len() int { return len(obj.args) }

// Child returns the i'th argument if it is a node of the given type.
func (obj *Node) Child(i int, op Operator) (*Node, bool) {
	if i >= len(obj.args) {
		return nil, false
	}
	n, ok := obj.args[i].(*Node)
	if !ok || n.Type != op {
		return nil, false
	}
	return n, true
}

// String returns an s-expression representation of the tree.
func (obj *Node) String() string {
	parts := []string{obj.Type.String()}
	for _, x := range obj.args {
		parts = append(parts, x.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Equal returns true if both nodes have the same operator and equal args.
func (obj *Node) Equal(other *Node) bool {
	return Equal(obj, other)
}

// Equal compares two args structurally. A hash mismatch short-circuits to
// false, but a hash match always runs the full comparison.
func Equal(a, b Arg) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Hash() != b.Hash() {
		return false
	}
	switch x := a.(type) {
	case *Node:
		y, ok := b.(*Node)
		if !ok {
			return false
		}
		if x == y {
			return true
		}
		if x.Type != y.Type || len(x.args) != len(y.args) {
			return false
		}
		for i := range x.args {
			if !Equal(x.args[i], y.args[i]) {
				return false
			}
		}
		return true

	case Str:
		y, ok := b.(Str)
		return ok && x == y

	case Int:
		y, ok := b.(Int)
		return ok && x == y

	case Float:
		y, ok := b.(Float)
		if !ok {
			return false
		}
		// NaN only appears in corrupt metadata, but keep it reflexive
		return x == y || (math.IsNaN(float64(x)) && math.IsNaN(float64(y)))
	}
	return false
}

// Walk runs fn on every arg of the tree in post-order: all of a node's children
// are visited before the node itself. Leaves are visited too. Several passes
// depend on this order, since a subtree must be complete before it is compared.
func Walk(root Arg, fn func(Arg) error) error {
	if n, ok := root.(*Node); ok {
		for _, child := range n.args {
			if err := Walk(child, fn); err != nil {
				return err
			}
		}
	}
	return fn(root)
}

// Walk runs fn on every arg of the tree rooted here in post-order.
func (obj *Node) Walk(fn func(Arg) error) error {
	return Walk(obj, fn)
}

// TransformFunc is the substitution function of Transform. It returns the
// replacement arg, or nil to remove the arg from its parent. Returning ErrSkip
// keeps the original arg and doesn't descend into it.
type TransformFunc func(Arg) (Arg, error)

// Transform substitutes args in pre-order: fn runs on a node before any of its
// children, and then the children of whatever fn returned are transformed. A
// node whose children changed is rebuilt, never mutated.
func Transform(root Arg, fn TransformFunc) (Arg, error) {
	out, err := fn(root)
	if err == ErrSkip {
		return root, nil
	}
	if err != nil {
		return nil, err
	}
	node, ok := out.(*Node)
	if !ok { // leaf or removal
		return out, nil
	}

	changed := false
	args := make([]Arg, 0, len(node.args))
	for _, child := range node.args {
		x, err := Transform(child, fn)
		if err != nil {
			return nil, err
		}
		if x == nil {
			changed = true
			continue
		}
		if x != child {
			changed = true
		}
		args = append(args, x)
	}
	if !changed {
		return node, nil
	}
	return NewNode(node.Type, args...), nil
}

// Transform substitutes args in pre-order on the tree rooted here.
func (obj *Node) Transform(fn TransformFunc) (Arg, error) {
	return Transform(obj, fn)
}
