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

package util

import "strings"

// LogWriter is a simple interface that wraps our logf interface. It's useful
// to route a *log.Logger, such as the error log of an http server, through the
// Logf of whoever owns it.
type LogWriter struct {
	Prefix string
	Logf   func(format string, v ...interface{})
}

// Write satisfies the io.Writer interface. Each write is one log line.
func (obj *LogWriter) Write(p []byte) (n int, err error) {
	obj.Logf("%s%s", obj.Prefix, strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
