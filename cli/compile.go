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
	"os"
	"strings"

	cliUtil "github.com/projections/formula/cli/util"
	"github.com/projections/formula/lang/artifact"
	"github.com/projections/formula/util/errwrap"
)

// CompileArgs is the CLI parsing structure and type of the parsed result. This
// particular one contains all the flags for the `compile` subcommand.
type CompileArgs struct {
	cliUtil.ModelArgs // embedded config (can't be a pointer) https://github.com/alexflint/go-arg/issues/240

	Force bool `arg:"--force" help:"recompile even if the cache file is fresh"`

	EmitGo  bool   `arg:"--emit-go" help:"also write go source beside the model"`
	Package string `arg:"--package" default:"models" help:"package name of the generated go source"`
}

// Run compiles the model, which rewrites its cache file if it's stale. It
// prints the paths that it wrote.
func (obj *CompileArgs) Run(ctx context.Context, data *cliUtil.Data) (bool, error) {
	l, err := newLang(obj.Backend, data, "compile")
	if err != nil {
		return false, err
	}

	cachePath := artifact.CachePath(obj.Model)
	if obj.Force {
		if err := os.Remove(cachePath); err != nil && !os.IsNotExist(err) {
			return false, errwrap.Wrapf(err, "can't remove cache file")
		}
	}

	m, err := l.Load(obj.Model)
	if err != nil {
		return false, err
	}
	if data.Flags.Verbose {
		data.Flags.Logf("compile: %s: %s(%s)", m.Name, m.Output, strings.Join(m.Syms(), ", "))
	}
	fmt.Println(cachePath)

	if !obj.EmitGo {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	out, err := l.EmitGo(obj.Model, obj.Package)
	if err != nil {
		return false, err
	}
	fmt.Println(out)
	return true, nil
}
