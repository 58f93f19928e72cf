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

// Package parser contains the lexer, the grammar and the term walker of the
// formula language. The grammar is the one used by R model formulas: numbers,
// identifiers, quoted strings, function calls with an optional integer index
// such as poly(x, 3)2, and the infix operators ^, : and |, * and /, + and -,
// from tightest to loosest binding.
package parser

import (
	"regexp"
	"strings"

	"github.com/projections/formula/lang/ast"
)

// newrange = c(0, 1) is how the rescale() helper spells its bounds.
var newrangeRegexp = regexp.MustCompile(`newrange\s*=\s*c\(\s*(-?[0-9.eE+-]+)\s*,\s*(-?[0-9.eE+-]+)\s*\)`)

var rescaleRegexp = regexp.MustCompile(`\brescale\(`)

// Preprocess rewrites spellings that the toolchain emits but the grammar
// doesn't know. The rescale(x, newrange = c(lo, hi)) helper is an alias for
// scale(x, lo, hi).
func Preprocess(text string) string {
	text = newrangeRegexp.ReplaceAllString(text, "$1, $2")
	return rescaleRegexp.ReplaceAllString(text, "scale(")
}

// Parse parses formula text into a canonical tree. It fails with a
// *interfaces.SyntaxErr for malformed text and with a *interfaces.ValidationErr
// for misused special forms.
func Parse(text string) (*ast.Node, error) {
	return (&Walker{}).Parse(text)
}

// Parse parses formula text into a canonical tree using the walker settings.
func (obj *Walker) Parse(text string) (*ast.Node, error) {
	text = strings.TrimSpace(Preprocess(text))
	raw, err := ParseRaw(text)
	if err != nil {
		return nil, err
	}
	return obj.Walk(text, raw)
}

// QuoteLevels wraps every categorical level token in the term in double
// quotes, so that level names which aren't identifiers (they may contain
// spaces) survive the grammar. The walker then resolves the quoted string
// against its Levels table. A level token is a categorical name followed by
// anything up to the next operator or paren.
func QuoteLevels(term string, categoricals []string) string {
	if len(categoricals) == 0 {
		return term
	}
	names := []string{}
	for _, c := range categoricals {
		names = append(names, regexp.QuoteMeta(c))
	}
	re := regexp.MustCompile(`(^|[\s:*+(])((` + strings.Join(names, "|") + `)[^:()*^%$~+,"]+)`)
	return re.ReplaceAllStringFunc(term, func(m string) string {
		sub := re.FindStringSubmatch(m)
		level := strings.TrimRight(sub[2], " ")
		trail := sub[2][len(level):]
		return sub[1] + `"` + level + `"` + trail
	})
}
