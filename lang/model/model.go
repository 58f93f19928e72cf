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

// Package model wraps a compiled evaluator with what a caller needs to know to
// feed it: the inputs it requires, the name and range of what it computes, and
// the neutral value of each input for computing a baseline.
package model

import (
	"github.com/projections/formula/lang/interfaces"
	"github.com/projections/formula/util/errwrap"
)

// PredictsNeutral is the baseline convention of the PREDICTS land use models.
// The rescaled human population density terms are neutral at their rescaled
// zero, the rescaled road distance at its rescaled one. Anything not listed
// here is neutral at zero.
var PredictsNeutral = map[string]float64{
	"logHPD_rs":   0,
	"LogHPD_s2":   0,
	"LogHPD_diff": 0,
	"logDTR_rs":   1,
}

// Model is a compiled model. It's safe for concurrent use once built.
type Model struct {
	// Name is the name of the model, usually the base name of its artifact.
	Name string

	// Output is the name of the value the model computes.
	Output string

	// Range is the interval the output is expected to fall in. It's empty
	// when the artifact doesn't declare one.
	Range []float64

	// Neutral holds the baseline value of each input. Inputs that are
	// absent are neutral at zero.
	Neutral map[string]float64

	evaluator interfaces.Evaluator
}

// New builds a model around an evaluator.
func New(name, output string, evaluator interfaces.Evaluator) *Model {
	return &Model{
		Name:      name,
		Output:    output,
		evaluator: evaluator,
	}
}

// Evaluator returns the compiled function behind this model.
func (obj *Model) Evaluator() interfaces.Evaluator {
	return obj.evaluator
}

// Syms returns the sorted names of the inputs the model requires.
func (obj *Model) Syms() []string {
	return obj.evaluator.Inputs()
}

// Eval computes the output. Every missing input is named in the error.
func (obj *Model) Eval(inputs map[string][]float64) ([]float64, error) {
	return obj.evaluator.Eval(inputs)
}

// Partial evaluates the model with any input that isn't overridden held at
// zero. The zeros take the length of the longest override, so that a single
// swept input yields a curve, and all scalar overrides yield a scalar.
func (obj *Model) Partial(overrides map[string][]float64) ([]float64, error) {
	n := 1
	for _, x := range overrides {
		if len(x) > n {
			n = len(x)
		}
	}
	inputs := make(map[string][]float64)
	for _, name := range obj.Syms() {
		if x, exists := overrides[name]; exists {
			inputs[name] = x
			continue
		}
		inputs[name] = make([]float64, n)
	}
	out, err := obj.Eval(inputs)
	if err != nil {
		return nil, errwrap.Wrapf(err, "partial evaluation of %s failed", obj.Name)
	}
	return out, nil
}

// Intercept returns the baseline of the model: its output with every input at
// its neutral value.
func (obj *Model) Intercept() (float64, error) {
	inputs := make(map[string][]float64)
	for _, name := range obj.Syms() {
		inputs[name] = []float64{obj.Neutral[name]} // zero when absent
	}
	out, err := obj.Partial(inputs)
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Baseline returns the neutral value of every input the model requires, in the
// order of Syms.
func (obj *Model) Baseline() []float64 {
	out := []float64{}
	for _, name := range obj.Syms() {
		out = append(out, obj.Neutral[name])
	}
	return out
}
