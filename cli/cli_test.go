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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cliUtil "github.com/projections/formula/cli/util"
	"github.com/projections/formula/lang"
	"github.com/projections/formula/lang/artifact"
	"github.com/projections/formula/lang/interfaces"

	"github.com/alexflint/go-arg"
)

const modelYAML = `
output: abundance
link: logit
coefficients:
  (Intercept): 0.4
  poly(hpd, 2)1: 1.5
  factor(UI2)1:poly(hpd, 2)1: -0.5
  factor(UI2)1: 0.25
poly:
  poly(hpd, 2):
    norm2: [1, 20, 3, 1.5]
    alpha: [1.2, 0.8]
`

func parse(argv ...string) (*Args, error) {
	args := &Args{}
	parser, err := arg.NewParser(arg.Config{Program: "formula"}, args)
	if err != nil {
		return nil, err
	}
	return args, parser.Parse(argv)
}

func TestArgs(t *testing.T) {
	args, err := parse("--debug", "eval", "--backend", "aot", "--partial", "m.yaml", "in.csv")
	if err != nil {
		t.Fatalf("parse failed: %+v", err)
	}
	cmd := args.EvalCmd
	if !args.Debug || cmd == nil || args.CompileCmd != nil {
		t.Fatalf("unexpected args: %+v", args)
	}
	if cmd.Model != "m.yaml" || cmd.Input != "in.csv" || cmd.Backend != "aot" || !cmd.Partial {
		t.Errorf("unexpected eval args: %+v", cmd)
	}
	if name := cliUtil.LookupSubcommand(args, cmd); name != "eval" {
		t.Errorf("unexpected subcommand: %s", name)
	}

	args, err = parse("inspect", "m.yaml")
	if err != nil {
		t.Fatalf("parse failed: %+v", err)
	}
	if cmd := args.InspectCmd; cmd == nil || cmd.Stage != StageIR {
		t.Errorf("expected the default stage, got: %+v", args.InspectCmd)
	}
	if _, err := parse("eval", "m.yaml"); err == nil {
		t.Errorf("expected a missing input table error")
	}

	args, err = parse("watch", "--emit-go", "models/")
	if err != nil {
		t.Fatalf("parse failed: %+v", err)
	}
	if cmd := args.WatchCmd; cmd == nil || cmd.Dir != "models/" || cmd.Backend != "jit" || !cmd.EmitGo {
		t.Errorf("unexpected watch args: %+v", args.WatchCmd)
	}
}

func TestInspect(t *testing.T) {
	art, err := artifact.Parse([]byte(modelYAML))
	if err != nil {
		t.Fatalf("parse failed: %+v", err)
	}
	art.Name = "ab-cs"
	l := &lang.Lang{Backend: interfaces.BackendJIT}
	trace, err := l.Stages(art)
	if err != nil {
		t.Fatalf("stages failed: %+v", err)
	}

	expected := map[string]string{
		StageParse:   "poly(hpd, 2)1",
		StageCSE:     "v",
		StageResolve: "(list 20.0 3.0 1.5)",
		StageIR:      "Inputs: []string{",
		StageGo:      "func AbCs(",
	}
	for stage, exp := range expected {
		s, err := inspect(l, trace, stage)
		if err != nil {
			t.Errorf("stage %s failed: %+v", stage, err)
			continue
		}
		if !strings.Contains(s, exp) {
			t.Errorf("stage %s: expected %q in:\n%s", stage, exp, s)
		}
	}
	// one binding for the poly, one for the comparison
	if s, _ := inspect(l, trace, StageCSE); strings.Count(s, " = ") != 2 {
		t.Errorf("expected two bindings:\n%s", s)
	}
	if _, err := inspect(l, trace, "asm"); err == nil {
		t.Errorf("expected an unknown stage error")
	}
}

func TestCLI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ab.yaml")
	if err := os.WriteFile(path, []byte(modelYAML), 0644); err != nil {
		t.Fatalf("write failed: %+v", err)
	}
	table := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(table, []byte("hpd,UI2\n0,0\n1,1\n2,1\n"), 0644); err != nil {
		t.Fatalf("write failed: %+v", err)
	}
	out := filepath.Join(dir, "out.csv")

	ctx := context.Background()
	run := func(args ...string) error {
		data := &cliUtil.Data{
			Program: "formula",
			Version: "test",
			Copying: "copying",
			Flags:   cliUtil.Flags{Logf: t.Logf},
			Args:    append([]string{"formula"}, args...),
		}
		return CLI(ctx, data)
	}

	if err := run("compile", "--backend", "aot", "--emit-go", path); err != nil {
		t.Fatalf("compile failed: %+v", err)
	}
	for _, p := range []string{artifact.CachePath(path), artifact.SourcePath(path)} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s: %+v", p, err)
		}
	}

	if err := run("eval", "--output", out, path, table); err != nil {
		t.Fatalf("eval failed: %+v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read failed: %+v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(b)), "\n"); len(lines) != 4 || lines[0] != "abundance" {
		t.Errorf("unexpected output:\n%s", b)
	}

	if err := run("intercept", "--backend", "interpret", path); err != nil {
		t.Errorf("intercept failed: %+v", err)
	}
	if err := run("compile", "--backend", "gpu", path); err == nil {
		t.Errorf("expected a backend error")
	}
	if err := run("eval", path, filepath.Join(dir, "nope.csv")); err == nil {
		t.Errorf("expected a missing table error")
	}

	// a cancelled watch only does its first pass
	if err := os.Remove(artifact.SourcePath(path)); err != nil {
		t.Fatalf("remove failed: %+v", err)
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithCancel(ctx)
	cancel()
	if err := run("watch", "--emit-go", dir); err != nil {
		t.Errorf("watch failed: %+v", err)
	}
	if _, err := os.Stat(artifact.SourcePath(path)); err != nil {
		t.Errorf("expected the watch to emit go: %+v", err)
	}
}

type closer struct {
	strings.Builder
	err    error
	closed bool
}

func (obj *closer) Close() error {
	obj.closed = true
	return obj.err
}

func TestWriteColumn(t *testing.T) {
	ok := &closer{}
	if err := writeColumn(ok, "abundance", []float64{0.5, 1}); err != nil {
		t.Errorf("write failed: %+v", err)
	}
	if !ok.closed || !strings.HasPrefix(ok.String(), "abundance\n") {
		t.Errorf("unexpected output (closed: %t): %q", ok.closed, ok.String())
	}

	full := errors.New("no space left on device")
	bad := &closer{err: full}
	if err := writeColumn(bad, "abundance", []float64{0.5}); !errors.Is(err, full) {
		t.Errorf("expected the close error, got: %+v", err)
	}
}
