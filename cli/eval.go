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

package cli

import (
	"context"
	"io"
	"os"

	cliUtil "github.com/projections/formula/cli/util"
	"github.com/projections/formula/util/errwrap"
)

// EvalArgs is the CLI parsing structure and type of the parsed result. This
// particular one contains all the flags for the `eval` subcommand.
type EvalArgs struct {
	cliUtil.ModelArgs // embedded config (can't be a pointer) https://github.com/alexflint/go-arg/issues/240

	// Input is a csv table with one column per input, or - for stdin.
	Input string `arg:"positional,required" help:"csv table of inputs (- for stdin)"`

	Output string `arg:"--output" help:"write the result to this file instead of stdout"`

	Partial bool `arg:"--partial" help:"hold any input missing from the table at zero"`
}

// Run evaluates the model over every row of the table and writes one column.
func (obj *EvalArgs) Run(ctx context.Context, data *cliUtil.Data) (bool, error) {
	l, err := newLang(obj.Backend, data, "eval")
	if err != nil {
		return false, err
	}
	m, err := l.Load(obj.Model)
	if err != nil {
		return false, err
	}

	var r io.Reader = os.Stdin
	if obj.Input != "-" {
		f, err := os.Open(obj.Input)
		if err != nil {
			return false, errwrap.Wrapf(err, "can't open input table")
		}
		defer f.Close()
		r = f
	}
	inputs, rows, err := cliUtil.ReadCSV(r)
	if err != nil {
		return false, errwrap.Wrapf(err, "can't read %s", obj.Input)
	}
	if data.Flags.Debug {
		data.Flags.Logf("eval: read %d rows", rows)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var out []float64
	if obj.Partial {
		out, err = m.Partial(inputs)
	} else {
		out, err = m.Eval(inputs)
	}
	if err != nil {
		return false, errwrap.Wrapf(err, "can't evaluate %s", m.Name)
	}

	if obj.Output == "" {
		if err := cliUtil.WriteCSV(os.Stdout, m.Output, out); err != nil {
			return false, errwrap.Wrapf(err, "can't write output")
		}
		return true, nil
	}
	f, err := os.Create(obj.Output)
	if err != nil {
		return false, errwrap.Wrapf(err, "can't create output")
	}
	if err := writeColumn(f, m.Output, out); err != nil {
		return false, errwrap.Wrapf(err, "can't write %s", obj.Output)
	}
	return true, nil
}

// writeColumn writes one column and closes the writer. A failed close is an
// error too, since the data may not have reached the file.
func writeColumn(wc io.WriteCloser, name string, values []float64) error {
	if err := cliUtil.WriteCSV(wc, name, values); err != nil {
		return errwrap.Append(err, wc.Close())
	}
	if err := wc.Close(); err != nil {
		return errwrap.Wrapf(err, "can't close")
	}
	return nil
}
