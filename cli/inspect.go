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
	"github.com/projections/formula/lang"
	"github.com/projections/formula/lang/artifact"
	"github.com/projections/formula/lang/ast"
	"github.com/projections/formula/lang/cse"
	"github.com/projections/formula/lang/ir"

	"github.com/sanity-io/litter"
	"github.com/spf13/afero"
)

// These are the stages that inspect can show.
const (
	StageParse   = "parse"
	StageCSE     = "cse"
	StageResolve = "resolve"
	StageIR      = "ir"
	StageGo      = "go"
)

// InspectArgs is the CLI parsing structure and type of the parsed result. This
// particular one contains all the flags for the `inspect` subcommand.
type InspectArgs struct {
	cliUtil.ModelArgs // embedded config (can't be a pointer) https://github.com/alexflint/go-arg/issues/240

	Stage string `arg:"--stage" default:"ir" help:"stage to show: parse, cse, resolve, ir or go"`
}

// Run compiles the model without touching its cache and prints one stage.
func (obj *InspectArgs) Run(ctx context.Context, data *cliUtil.Data) (bool, error) {
	l, err := newLang(obj.Backend, data, "inspect")
	if err != nil {
		return false, err
	}
	art, err := artifact.Read(afero.NewOsFs(), obj.Model)
	if err != nil {
		return false, err
	}
	trace, err := l.Stages(art)
	if err != nil {
		return false, err
	}
	s, err := inspect(l, trace, obj.Stage)
	if err != nil {
		return false, err
	}
	fmt.Fprint(os.Stdout, s)
	return true, nil
}

// inspect renders one stage of a trace.
func inspect(l *lang.Lang, trace *lang.Trace, stage string) (string, error) {
	switch stage {
	case StageParse:
		return ast.Render(trace.Equation) + "\n", nil

	case StageCSE:
		return bindings(trace.CSE), nil

	case StageResolve:
		return bindings(trace.Resolved), nil

	case StageIR:
		lo := &litter.Options{
			StripPackageNames: true,
			HidePrivateFields: true,
			HideZeroValues:    true,
		}
		return lo.Sdump(trace.Program) + "\n", nil

	case StageGo:
		src, err := l.Source(trace.Program, "models")
		if err != nil {
			return "", err
		}
		return string(src), nil
	}
	return "", cliUtil.CliParseError(fmt.Errorf("unknown stage: %s", stage))
}

// bindings prints each shared subtree once, then the tree that uses them.
func bindings(root *ast.Node) string {
	b := &strings.Builder{}
	for _, x := range cse.Bindings(root) {
		fmt.Fprintf(b, "%s = %s\n", ir.DeclName(x.ID), x.Expr)
	}
	fmt.Fprintf(b, "%s\n", root)
	return b.String()
}
