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

// Package util has some CLI related utility code.
package util

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/projections/formula/lang/interfaces"
	"github.com/projections/formula/prometheus"
	"github.com/projections/formula/util"
	"github.com/projections/formula/util/errwrap"
)

// Error is a constant error type that implements error.
type Error string

// Error fulfills the error interface of this type.
func (e Error) Error() string { return string(e) }

const (
	// UnknownBackend means a backend flag named no known code generator.
	UnknownBackend = Error("unknown backend")

	// EmptyTable means an input table had a header but no rows.
	EmptyTable = Error("input table has no rows")
)

// CliParseError returns a consistent error if we have a CLI parsing issue.
func CliParseError(err error) error {
	return errwrap.Wrapf(err, "cli parse error")
}

// Flags are some constant flags which are used throughout the program.
type Flags struct {
	Debug   bool // add additional log messages
	Verbose bool // add extra log message output
	Logf    func(format string, v ...interface{})
}

// Data is a struct of values that we usually pass to the main CLI function.
type Data struct {
	Program string
	Version string
	Copying string
	Tagline string
	Flags   Flags
	Args    []string // os.Args usually

	// Metrics is set when the metrics server is enabled.
	Metrics *prometheus.Prometheus
}

// SafeProgram returns the correct program string when given a buggy variant.
func SafeProgram(program string) string {
	// in sub commands, the program name can get the sub command name
	// appended after a space, so only use the first bit
	split := strings.Split(program, " ")
	return split[0]
}

// ParseBackend validates a backend name.
func ParseBackend(name string) (interfaces.Backend, error) {
	names := []string{}
	for _, b := range interfaces.Backends() {
		names = append(names, string(b))
	}
	if !util.StrInList(name, names) {
		return "", errwrap.Wrapf(UnknownBackend, "backend %q", name)
	}
	return interfaces.Backend(name), nil
}

// ReadCSV reads a table with a header row of input names into one column per
// name. Every cell must be a number. An empty cell, or NA, is missing and reads
// as NaN.
func ReadCSV(r io.Reader) (map[string][]float64, int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, 0, EmptyTable
	} else if err != nil {
		return nil, 0, errwrap.Wrapf(err, "can't read header")
	}
	names := append([]string{}, header...)
	seen := make(map[string]struct{})
	for _, name := range names {
		if _, exists := seen[name]; exists {
			return nil, 0, fmt.Errorf("duplicate column: %s", name)
		}
		seen[name] = struct{}{}
	}

	out := make(map[string][]float64)
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, 0, errwrap.Wrapf(err, "can't read row %d", rows+1)
		}
		for i, cell := range record {
			v, err := parseCell(cell)
			if err != nil {
				return nil, 0, errwrap.Wrapf(err, "row %d, column %s", rows+1, names[i])
			}
			out[names[i]] = append(out[names[i]], v)
		}
		rows++
	}
	if rows == 0 {
		return nil, 0, EmptyTable
	}
	return out, rows, nil
}

func parseCell(cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	switch strings.ToLower(s) {
	case "", "na", "nan":
		return strconv.ParseFloat("NaN", 64)
	}
	return strconv.ParseFloat(s, 64)
}

// WriteCSV writes one named column.
func WriteCSV(w io.Writer, name string, values []float64) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{name}); err != nil {
		return err
	}
	for _, v := range values {
		if err := writer.Write([]string{strconv.FormatFloat(v, 'g', -1, 64)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
