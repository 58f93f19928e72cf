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

// Package equation combines the fitted coefficients of a model with its parsed
// terms into one linear predictor tree, wrapped in the inverse link function.
package equation

import (
	"fmt"
	"math"

	"github.com/projections/formula/lang/ast"
	"github.com/projections/formula/lang/interfaces"
	"github.com/projections/formula/lang/parser"
	"github.com/projections/formula/util"
	"github.com/projections/formula/util/errwrap"
)

// Coefficient is one row of a fitted model: the term as the toolchain spells it
// and the value it was fitted to. A NaN value marks a term that was dropped
// during fitting, for example because it was collinear with another one.
type Coefficient struct {
	Term  string
	Value float64
}

// These are the link functions that a model can declare. Each names the link
// of the model, and the builder wraps the linear predictor in its inverse.
const (
	LinkIdentity = "identity"
	LinkLogit    = "logit"
	LinkLog      = "log"
)

// inverse maps a declared link to the operator of its inverse. The inverse
// names themselves are accepted too.
var inverse = map[string]ast.Operator{
	LinkIdentity: ast.OpInvalid,
	LinkLogit:    ast.OpInvLogit,
	"inv_logit":  ast.OpInvLogit,
	LinkLog:      ast.OpExp,
	"exp":        ast.OpExp,
}

// Links returns the sorted names of the links that Build accepts.
func Links() []string {
	return util.StrMapKeys(inverse)
}

// Builder builds model equations.
type Builder struct {
	// Levels maps categorical inputs to their ordered level names. When
	// set, terms that name a level directly are turned into comparisons.
	Levels map[string][]string

	Debug bool
	Logf  func(format string, v ...interface{})
}

// Build parses every term and returns link(sum(term_i * coefficient_i)). Rows
// with a NaN coefficient are dropped first. All bad terms are reported
// together, each error names its term.
func (obj *Builder) Build(coefs []Coefficient, link string) (*ast.Node, error) {
	op, exists := inverse[link]
	if !exists {
		return nil, &interfaces.LinkErr{Link: link}
	}

	categoricals := util.StrMapKeys(obj.Levels)
	walker := &parser.Walker{Levels: obj.Levels}

	var reterr error
	prods := []ast.Arg{}
	for _, c := range coefs {
		if math.IsNaN(c.Value) {
			if obj.Debug {
				obj.Logf("dropping term with no coefficient: %s", c.Term)
			}
			continue
		}
		text := parser.QuoteLevels(c.Term, categoricals)
		term, err := walker.Parse(text)
		if err != nil {
			reterr = errwrap.Append(reterr, errwrap.Wrapf(err, "term `%s`", c.Term))
			continue
		}
		prods = append(prods, ast.NewNode(ast.OpMul, term, ast.Float(c.Value)))
	}
	if reterr != nil {
		return nil, reterr
	}
	if len(prods) == 0 {
		return nil, &interfaces.ValidationErr{
			Term: fmt.Sprintf("%d coefficients", len(coefs)),
			Msg:  "model has no usable terms",
		}
	}

	root := ast.NewNode(ast.OpAdd, prods...)
	if op != ast.OpInvalid {
		root = ast.NewNode(op, root)
	}
	if obj.Debug {
		obj.Logf("equation: %s", root)
	}
	return root, nil
}

// Build builds an equation with the default builder settings.
func Build(coefs []Coefficient, link string) (*ast.Node, error) {
	return (&Builder{}).Build(coefs, link)
}
