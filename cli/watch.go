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
	"strings"

	cliUtil "github.com/projections/formula/cli/util"
	"github.com/projections/formula/lang/model"
)

// WatchArgs is the CLI parsing structure and type of the parsed result. This
// particular one contains all the flags for the `watch` subcommand.
type WatchArgs struct {
	Dir string `arg:"positional,required" help:"directory of model artifacts"`

	Backend string `arg:"--backend,env:FORMULA_BACKEND" default:"jit" help:"code generator to use (interpret, aot or jit)"`

	EmitGo  bool   `arg:"--emit-go" help:"also write go source beside each model"`
	Package string `arg:"--package" default:"models" help:"package name of the generated go source"`
}

// Run compiles every model in the directory, and each one again whenever its
// artifact changes. It runs until it's interrupted. A model that fails to
// compile is logged and the watch goes on.
func (obj *WatchArgs) Run(ctx context.Context, data *cliUtil.Data) (bool, error) {
	l, err := newLang(obj.Backend, data, "watch")
	if err != nil {
		return false, err
	}
	err = l.Watch(ctx, obj.Dir, func(path string, m *model.Model, err error) {
		if err != nil {
			data.Flags.Logf("watch: %s: %+v", path, err)
			return
		}
		data.Flags.Logf("watch: %s: %s(%s)", path, m.Output, strings.Join(m.Syms(), ", "))
		if !obj.EmitGo {
			return
		}
		out, err := l.EmitGo(path, obj.Package)
		if err != nil {
			data.Flags.Logf("watch: %s: %+v", path, err)
			return
		}
		if data.Flags.Verbose {
			data.Flags.Logf("watch: wrote %s", out)
		}
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
