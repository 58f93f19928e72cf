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

package poly

import (
	"fmt"
	"math"

	"github.com/projections/formula/lang/ast"
	"github.com/projections/formula/lang/interfaces"
	"github.com/projections/formula/util/errwrap"
)

// Coefs are the constants the fitting toolchain recorded for one polynomial
// term.
type Coefs struct {
	Norm2 []float64 `yaml:"norm2"`
	Alpha []float64 `yaml:"alpha"`
}

// Metadata maps the rendered text of a poly term, such as
// `poly(log(x + 1), 3)`, to its fitted constants.
type Metadata map[string]*Coefs

// Normalize returns the constants in the form the recurrence expects. R stores
// norm2 with an extra leading 1, which is dropped here.
func (obj *Coefs) Normalize(degree int) (*Coefs, error) {
	norm2 := obj.Norm2
	if len(norm2) == degree+2 {
		norm2 = norm2[1:]
	}
	if len(norm2) != degree+1 {
		return nil, fmt.Errorf("expected %d norm2 values, got %d", degree+1, len(obj.Norm2))
	}
	for _, x := range norm2 {
		if math.IsNaN(x) || x <= 0 {
			return nil, fmt.Errorf("norm2 values must be positive")
		}
	}
	if len(obj.Alpha) == 0 || len(obj.Alpha) > degree {
		return nil, fmt.Errorf("expected up to %d alpha values, got %d", degree, len(obj.Alpha))
	}
	return &Coefs{
		Norm2: append([]float64{}, norm2...),
		Alpha: append([]float64{}, obj.Alpha...),
	}, nil
}

// Resolver attaches fitted constants to the poly nodes of a tree.
type Resolver struct {
	Metadata Metadata

	Debug bool
	Logf  func(format string, v ...interface{})
}

// Resolve extends every poly(expr, degree) node to
// poly(expr, degree, list(norm2...), list(alpha...)). Nodes that already carry
// their constants are kept. A term without usable metadata is an error, and
// so is one whose alpha values can't compute every column it's used at. The
// constants are never refit from data, since that would silently change the
// basis the coefficients were fitted against. Every bad term is reported.
func (obj *Resolver) Resolve(root *ast.Node) (*ast.Node, error) {
	// poly terms are keyed by their full text, so references to shared
	// subtrees have to be expanded before rendering
	bindings := make(map[int64]ast.Arg)
	ast.Walk(root, func(x ast.Arg) error {
		n, ok := x.(*ast.Node)
		if !ok || n.Type != ast.OpVar || n.Len() < 2 {
			return nil
		}
		if id, ok := n.Arg(0).(ast.Int); ok {
			bindings[int64(id)] = n.Arg(1)
		}
		return nil
	})

	// the highest column that is selected from each poly term
	selected := make(map[string]int)
	ast.Walk(root, func(x ast.Arg) error {
		n, ok := x.(*ast.Node)
		if !ok || n.Type != ast.OpSel || n.Len() != 2 {
			return nil
		}
		p, ok := expand(n.Arg(0), bindings).(*ast.Node)
		if !ok || p.Type != ast.OpPoly || p.Len() != 2 {
			return nil
		}
		power, ok := n.Arg(1).(ast.Int)
		if !ok {
			return nil
		}
		if term := ast.Render(p); int(power) > selected[term] {
			selected[term] = int(power)
		}
		return nil
	})

	var reterr error
	out, err := ast.Transform(root, func(x ast.Arg) (ast.Arg, error) {
		n, ok := x.(*ast.Node)
		if !ok || n.Type != ast.OpPoly || n.Len() != 2 {
			return x, nil
		}
		term := ast.Render(expand(n, bindings))
		degree, ok := n.Arg(1).(ast.Int)
		if !ok {
			reterr = errwrap.Append(reterr, &interfaces.ValidationErr{Term: term, Msg: "degree of poly is not an int"})
			return x, nil
		}
		coefs, exists := obj.Metadata[term]
		if !exists || coefs == nil {
			reterr = errwrap.Append(reterr, &interfaces.ValidationErr{Term: term, Msg: "no polynomial metadata"})
			return x, nil
		}
		c, err := coefs.Normalize(int(degree))
		if err != nil {
			reterr = errwrap.Append(reterr, &interfaces.ValidationErr{Term: term, Msg: err.Error()})
			return x, nil
		}
		// column i of the basis needs alpha[0] to alpha[i-1]
		if power := selected[term]; power > len(c.Alpha) {
			msg := fmt.Sprintf("column %d is used but only %d alpha values were fitted", power, len(c.Alpha))
			reterr = errwrap.Append(reterr, &interfaces.ValidationErr{Term: term, Msg: msg})
			return x, nil
		}
		if obj.Debug {
			obj.Logf("resolved %s: norm2: %v, alpha: %v", term, c.Norm2, c.Alpha)
		}
		return ast.NewNode(ast.OpPoly, n.Arg(0), degree, ast.List(c.Norm2), ast.List(c.Alpha)), nil
	})
	if err != nil {
		return nil, err
	}
	if reterr != nil {
		return nil, reterr
	}
	return out.(*ast.Node), nil
}

// Resolve attaches fitted constants with the default settings.
func Resolve(root *ast.Node, meta Metadata) (*ast.Node, error) {
	return (&Resolver{Metadata: meta}).Resolve(root)
}

// expand replaces var references with the subtrees they are bound to.
func expand(root ast.Arg, bindings map[int64]ast.Arg) ast.Arg {
	out, err := ast.Transform(root, func(x ast.Arg) (ast.Arg, error) {
		n, ok := x.(*ast.Node)
		if !ok || n.Type != ast.OpVar {
			return x, nil
		}
		if n.Len() > 1 {
			return n.Arg(1), nil
		}
		id, _ := n.Arg(0).(ast.Int)
		if b, exists := bindings[int64(id)]; exists {
			return b, nil
		}
		return x, nil
	})
	if err != nil {
		return root
	}
	return out
}

// Degree returns the degree of a poly node.
func Degree(n *ast.Node) (int, bool) {
	if n == nil || n.Type != ast.OpPoly || n.Len() < 2 {
		return 0, false
	}
	d, ok := n.Arg(1).(ast.Int)
	return int(d), ok
}

// Constants returns the fitted constants of a resolved poly node.
func Constants(n *ast.Node) (*Coefs, bool) {
	if n == nil || n.Type != ast.OpPoly || n.Len() != 4 {
		return nil, false
	}
	norm2, ok := n.Child(2, ast.OpList)
	if !ok {
		return nil, false
	}
	alpha, ok := n.Child(3, ast.OpList)
	if !ok {
		return nil, false
	}
	c := &Coefs{}
	if c.Norm2, ok = ast.Floats(norm2); !ok {
		return nil, false
	}
	if c.Alpha, ok = ast.Floats(alpha); !ok {
		return nil, false
	}
	return c, true
}
