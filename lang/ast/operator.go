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

// Package ast contains the canonical tree representation of a model formula.
// Each node is an operator tag plus an ordered list of arguments, with
// structural equality and a content hash computed once at construction time.
package ast

// Operator is the tag of a Node. It is a closed set, so comparing two operators
// is just an integer comparison.
type Operator int

// These are all of the operators that can appear in a tree. The parser only
// produces a subset of these directly, the rest are introduced by later passes.
const (
	OpInvalid Operator = iota

	OpAdd   // +
	OpSub   // -
	OpMul   // *
	OpDiv   // /
	OpPow   // ^
	OpInter // : (interaction, a product)
	OpGroup // | (grouping, not evaluable)
	OpEq    // ==

	OpIn    // named input: (name, element type)
	OpI     // I(): identity, used to wrap bare literals
	OpVar   // var(id, subtree): a shared binding made by CSE
	OpSel   // sel(poly, power): one column of a polynomial basis
	OpPoly  // poly(expr, degree[, norm2 list, alpha list])
	OpList  // list(floats...): constant vector used by poly
	OpScale // scale(expr, lo, hi[, min, max])

	OpLog      // log()
	OpExp      // exp()
	OpMin      // min(a, b)
	OpMax      // max(a, b)
	OpInvLogit // inv_logit()
	OpPowFn    // pow(a, b)
)

var operatorNames = map[Operator]string{
	OpAdd:      "+",
	OpSub:      "-",
	OpMul:      "*",
	OpDiv:      "/",
	OpPow:      "^",
	OpInter:    ":",
	OpGroup:    "|",
	OpEq:       "==",
	OpIn:       "in",
	OpI:        "I",
	OpVar:      "var",
	OpSel:      "sel",
	OpPoly:     "poly",
	OpList:     "list",
	OpScale:    "scale",
	OpLog:      "log",
	OpExp:      "exp",
	OpMin:      "min",
	OpMax:      "max",
	OpInvLogit: "inv_logit",
	OpPowFn:    "pow",
}

var operatorTags map[string]Operator

func init() {
	operatorTags = make(map[string]Operator, len(operatorNames))
	for op, s := range operatorNames {
		operatorTags[s] = op
	}
}

// String returns the tag of this operator as it appears in formula text.
func (op Operator) String() string {
	if s, exists := operatorNames[op]; exists {
		return s
	}
	return "invalid"
}

// LookupOperator returns the operator with the given tag.
func LookupOperator(tag string) (Operator, bool) {
	op, exists := operatorTags[tag]
	return op, exists
}

// IsBinary returns true for the infix operators that the grammar produces.
func (op Operator) IsBinary() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpPow, OpInter, OpGroup, OpEq:
		return true
	}
	return false
}

// IsAssociative returns true if a chain of this operator can be flattened
// regardless of how it was parenthesized.
func (op Operator) IsAssociative() bool {
	switch op {
	case OpAdd, OpMul, OpInter:
		return true
	}
	return false
}
