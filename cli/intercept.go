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
	"fmt"
	"strconv"

	cliUtil "github.com/projections/formula/cli/util"
	"github.com/projections/formula/util"
)

// InterceptArgs is the CLI parsing structure and type of the parsed result.
// This particular one contains all the flags for the `intercept` subcommand.
type InterceptArgs struct {
	cliUtil.ModelArgs // embedded config (can't be a pointer) https://github.com/alexflint/go-arg/issues/240
}

// Run prints the output of the model with every input at its neutral value.
func (obj *InterceptArgs) Run(ctx context.Context, data *cliUtil.Data) (bool, error) {
	l, err := newLang(obj.Backend, data, "intercept")
	if err != nil {
		return false, err
	}
	m, err := l.Load(obj.Model)
	if err != nil {
		return false, err
	}
	v, err := m.Intercept()
	if err != nil {
		return false, err
	}
	if data.Flags.Verbose {
		baseline := m.Baseline()
		width := 0
		for _, name := range m.Syms() {
			if len(name) > width {
				width = len(name)
			}
		}
		for i, name := range m.Syms() {
			data.Flags.Logf("intercept: %s = %v", util.RightPad(name, " ", width), baseline[i])
		}
	}
	fmt.Println(strconv.FormatFloat(v, 'g', -1, 64))
	return true, nil
}
