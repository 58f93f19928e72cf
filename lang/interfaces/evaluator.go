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

package interfaces

// Backend names a code generator.
type Backend string

const (
	// BackendInterpret walks the program directly. It is the reference
	// that the others are checked against.
	BackendInterpret Backend = "interpret"

	// BackendAOT compiles the program ahead of time into a function with
	// one array parameter per input.
	BackendAOT Backend = "aot"

	// BackendJIT compiles the program into a kernel that computes one
	// element at a time.
	BackendJIT Backend = "jit"
)

// Backends returns every known backend.
func Backends() []Backend {
	return []Backend{BackendInterpret, BackendAOT, BackendJIT}
}

// Evaluator is a compiled equation. Implementations hold no per call state, so
// Eval may be called concurrently.
type Evaluator interface {
	// Inputs returns the sorted names of the inputs that Eval requires.
	Inputs() []string

	// Eval computes the output from the named input arrays. All arrays
	// must have the same length, except that an array of length one is
	// broadcast to the others.
	Eval(inputs map[string][]float64) ([]float64, error)
}
