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

package ir

import (
	"fmt"
	"go/token"

	"github.com/iancoleman/strcase"
	"github.com/projections/formula/lang/interfaces"
)

// Bind orders the named input arrays the way the compiled functions take them
// and returns the common length. A length one array broadcasts. Every missing
// input is named in the error.
func (obj *Program) Bind(inputs map[string][]float64) ([][]float64, int, error) {
	args := make([][]float64, 0, len(obj.Inputs))
	missing := []string{}
	for _, name := range obj.Inputs {
		x, exists := inputs[name]
		if !exists {
			missing = append(missing, name)
			continue
		}
		args = append(args, x)
	}
	if len(missing) > 0 {
		return nil, 0, &interfaces.MissingInputErr{Names: missing}
	}

	n, found := 1, false // every input is a scalar, or there are none
	for i, x := range args {
		if len(x) == 1 {
			continue
		}
		if !found {
			n, found = len(x), true
			continue
		}
		if len(x) != n {
			return nil, 0, fmt.Errorf("input %s has length %d, expected %d", obj.Inputs[i], len(x), n)
		}
	}
	return args, n, nil
}

// At reads element i of an input, broadcasting a length one array.
func At(x []float64, i int) float64 {
	if len(x) == 1 {
		return x[0]
	}
	return x[i]
}

// GoNames maps each name to a unique Go identifier for generated code. The
// reserved identifiers are never handed out.
func GoNames(names []string, reserved ...string) map[string]string {
	used := make(map[string]struct{})
	for _, x := range reserved {
		used[x] = struct{}{}
	}
	out := make(map[string]string)
	for _, name := range names {
		id := strcase.ToLowerCamel(name)
		if id == "" || !token.IsIdentifier(id) {
			id = "in" + strcase.ToCamel(name)
		}
		if !token.IsIdentifier(id) {
			id = "in"
		}
		base := id
		for i := 1; ; i++ {
			if _, exists := used[id]; !exists && !token.IsKeyword(id) {
				break
			}
			id = fmt.Sprintf("%s%d", base, i)
		}
		used[id] = struct{}{}
		out[name] = id
	}
	return out
}

// GoFuncName returns the exported Go name of the function generated for a
// model.
func GoFuncName(name string) string {
	id := strcase.ToCamel(name)
	if !token.IsIdentifier(id) || !token.IsExported(id) {
		return "Model" + id
	}
	return id
}
