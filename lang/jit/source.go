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
	"bytes"
	"fmt"

	"github.com/projections/formula/lang/interfaces"
	"github.com/projections/formula/lang/ir"
	"github.com/projections/formula/util/errwrap"
	"golang.org/x/tools/imports"
)

// Source renders the kernel as a Go source file in package pkg. The generated
// code expects all of its inputs to have the same length.
func (obj *Kernel) Source(pkg string) ([]byte, error) {
	reserved := []string{"n", "i", "out", "math", "poly"}
	for _, d := range obj.split.Decls {
		reserved = append(reserved, d.Name, d.Name+"In")
	}
	params := ir.GoNames(obj.prog.Inputs, reserved...)
	scalar := make(map[string]bool)
	for _, d := range obj.split.Decls {
		scalar[d.Name] = !ir.Vector(d.Expr)
	}

	leaf := func(e *ir.Expr) (string, error) {
		switch e.Op {
		case ir.OpInput:
			return params[e.Name] + "[i]", nil
		case ir.OpRef:
			if scalar[e.Name] {
				return e.Name, nil
			}
			return e.Name + "[i]", nil // a hoisted scale
		case ir.OpSel:
			if a := e.Args[0]; a.Op == ir.OpRef {
				return fmt.Sprintf("%s[i][%d]", a.Name, e.Index), nil
			}
		}
		return "", &interfaces.UnsupportedErr{Backend: Backend, Type: string(e.Op)}
	}
	// loop writes the scalar steps and then one element of dst per element
	loop := func(b *bytes.Buffer, dst string, steps []*step, e *ir.Expr) error {
		fmt.Fprintf(b, "\t%s := make([]float64, n)\n", dst)
		b.WriteString("\tfor i := 0; i < n; i++ {\n")
		for _, s := range steps {
			x, err := ir.GoExpr(s.expr, leaf)
			if err != nil {
				return errwrap.Wrapf(err, "declaration %s", s.name)
			}
			fmt.Fprintf(b, "\t\t%s := %s\n", s.name, x)
		}
		x, err := ir.GoExpr(e, leaf)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "\t\t%s[i] = %s\n", dst, x)
		b.WriteString("\t}\n")
		return nil
	}

	b := &bytes.Buffer{}
	fmt.Fprintf(b, "// Code generated by formula from model %q. DO NOT EDIT.\n\n", obj.prog.Name)
	fmt.Fprintf(b, "package %s\n\n", pkg)
	fmt.Fprintf(b, "import (\n\t\"math\"\n\n\t%q\n)\n\n", ir.PolyImport)

	name := ir.GoFuncName(obj.prog.Name)
	fmt.Fprintf(b, "// %s computes %s one element at a time. All inputs must have the\n// same length.\n", name, obj.prog.Output)
	fmt.Fprintf(b, "func %s(", name)
	for i, x := range obj.prog.Inputs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(params[x])
	}
	if len(obj.prog.Inputs) > 0 {
		b.WriteString(" []float64")
	}
	b.WriteString(") []float64 {\n")
	if len(obj.prog.Inputs) > 0 {
		fmt.Fprintf(b, "\tn := len(%s)\n", params[obj.prog.Inputs[0]])
	} else {
		b.WriteString("\tn := 1\n")
	}

	for _, h := range obj.hoists {
		e := h.expr
		if err := loop(b, h.name+"In", h.steps, e.Args[0]); err != nil {
			return nil, errwrap.Wrapf(err, "declaration %s", h.name)
		}
		if e.Op == ir.OpPoly {
			fmt.Fprintf(b, "\t%s := poly.OrthoPolyPredict(%sIn, %s, %s, %d)\n", h.name, h.name, ir.GoSlice(e.Norm2), ir.GoSlice(e.Alpha), e.Degree)
			continue
		}
		fmt.Fprintf(b, "\t%s := poly.Scale(%sIn, %s, %s)\n", h.name, h.name, ir.GoLiteral(e.Bounds[0]), ir.GoLiteral(e.Bounds[1]))
	}
	if err := loop(b, "out", obj.steps, obj.split.Result); err != nil {
		return nil, errwrap.Wrapf(err, "result")
	}
	b.WriteString("\treturn out\n}\n")

	src, err := imports.Process(name+".go", b.Bytes(), nil)
	if err != nil {
		return nil, errwrap.Wrapf(err, "generated source is invalid")
	}
	return src, nil
}
