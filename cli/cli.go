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

// Package cli handles all of the core command line parsing. It's the first
// entry point after the real main function, and it drives the compiler in
// "lang".
package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	cliUtil "github.com/projections/formula/cli/util"
	"github.com/projections/formula/lang"
	"github.com/projections/formula/prometheus"
	"github.com/projections/formula/util/errwrap"

	"github.com/alexflint/go-arg"
)

// CLI is the entry point for using formula normally from the CLI.
func CLI(ctx context.Context, data *cliUtil.Data) error {
	// test for sanity
	if data == nil {
		return fmt.Errorf("this CLI was not run correctly")
	}
	if data.Program == "" || data.Version == "" {
		return fmt.Errorf("program was not compiled correctly")
	}
	if data.Copying == "" {
		return fmt.Errorf("program copyrights were removed, can't run")
	}

	args := Args{}
	args.version = data.Version // copy this in
	args.description = data.Tagline

	config := arg.Config{
		Program: data.Program,
	}
	parser, err := arg.NewParser(config, &args)
	if err != nil {
		// programming error
		return errwrap.Wrapf(err, "cli config error")
	}
	err = parser.Parse(data.Args[1:]) // args[0] is the program
	if err == arg.ErrHelp {
		parser.WriteHelp(os.Stdout)
		return nil
	}
	if err == arg.ErrVersion {
		fmt.Printf("%s\n", data.Version) // byon: bring your own newline
		return nil
	}
	if err != nil {
		return cliUtil.CliParseError(err) // consistent errors
	}

	// display the license
	if args.License {
		fmt.Printf("%s", data.Copying) // file comes with a trailing nl
		return nil
	}

	data.Flags.Debug = data.Flags.Debug || args.Debug
	data.Flags.Verbose = data.Flags.Verbose || args.Verbose
	if data.Flags.Logf == nil {
		data.Flags.Logf = log.Printf
	}
	cliUtil.Hello(data.Program, data.Version, data.Flags) // say hello!

	if args.Prometheus {
		data.Metrics = &prometheus.Prometheus{
			Listen: args.PrometheusListen,
			Logf:   data.Flags.Logf,
		}
		if err := data.Metrics.Init(); err != nil {
			return errwrap.Wrapf(err, "can't initialize prometheus instance")
		}
		data.Flags.Logf("main: prometheus: starting instance on %s", data.Metrics.Listen)
		if err := data.Metrics.Start(); err != nil {
			return errwrap.Wrapf(err, "can't start prometheus instance")
		}
		defer func() {
			if err := data.Metrics.Stop(); err != nil {
				data.Flags.Logf("main: prometheus: stop: %+v", err)
			}
		}()
	}

	if ok, err := args.Run(ctx, data); err != nil {
		return err
	} else if ok { // did we activate one of the commands?
		return nil
	}

	// print help if no subcommands are set
	parser.WriteHelp(os.Stdout)

	return nil
}

// Args is the CLI parsing structure and type of the parsed result. This
// particular struct is the top-most one.
type Args struct {
	License bool `arg:"--license" help:"display the license and exit"`

	Debug   bool `arg:"--debug,env:FORMULA_DEBUG" help:"add additional log messages"`
	Verbose bool `arg:"--verbose" help:"add extra log message output"`

	Prometheus       bool   `arg:"--prometheus" help:"start a prometheus instance"`
	PrometheusListen string `arg:"--prometheus-listen,env:FORMULA_PROMETHEUS_LISTEN" help:"specify prometheus instance binding"`

	CompileCmd *CompileArgs `arg:"subcommand:compile" help:"compile a model and refresh its cache file"`

	EvalCmd *EvalArgs `arg:"subcommand:eval" help:"evaluate a model over a csv table"`

	InspectCmd *InspectArgs `arg:"subcommand:inspect" help:"show a model at one stage of the compiler"`

	InterceptCmd *InterceptArgs `arg:"subcommand:intercept" help:"print the baseline value of a model"`

	WatchCmd *WatchArgs `arg:"subcommand:watch" help:"recompile the models in a directory as they change"`

	// version is a private handle for our version string.
	version string `arg:"-"` // ignored from parsing

	// description is a private handle for our description string.
	description string `arg:"-"` // ignored from parsing
}

// Version returns the version string. Implementing this signature is part of
// the API for the cli library.
func (obj *Args) Version() string {
	return obj.version
}

// Description returns a description string. Implementing this signature is part
// of the API for the cli library.
func (obj *Args) Description() string {
	return obj.description
}

// Run executes the correct subcommand. It errors if there's ever an error. It
// returns true if we did activate one of the subcommands. It returns false if
// we did not. This information is used so that the top-level parser can return
// usage or help information if no subcommand activates.
func (obj *Args) Run(ctx context.Context, data *cliUtil.Data) (bool, error) {
	var cmd interface {
		Run(context.Context, *cliUtil.Data) (bool, error)
	}
	switch {
	case obj.CompileCmd != nil:
		cmd = obj.CompileCmd
	case obj.EvalCmd != nil:
		cmd = obj.EvalCmd
	case obj.InspectCmd != nil:
		cmd = obj.InspectCmd
	case obj.InterceptCmd != nil:
		cmd = obj.InterceptCmd
	case obj.WatchCmd != nil:
		cmd = obj.WatchCmd
	default:
		return false, nil // nobody activated
	}

	if data.Flags.Debug {
		data.Flags.Logf("main: running: %s", cliUtil.LookupSubcommand(obj, cmd))
	}
	return cmd.Run(ctx, data)
}

// newLang builds the compiler for a command.
func newLang(backendName string, data *cliUtil.Data, name string) (*lang.Lang, error) {
	backend, err := cliUtil.ParseBackend(backendName)
	if err != nil {
		return nil, cliUtil.CliParseError(err)
	}
	return &lang.Lang{
		Backend: backend,
		Metrics: data.Metrics,
		Debug:   data.Flags.Debug,
		Logf: func(format string, v ...interface{}) {
			data.Flags.Logf(name+": "+format, v...)
		},
	}, nil
}
