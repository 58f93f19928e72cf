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

package parser

import (
	"strings"

	"github.com/projections/formula/lang/interfaces"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokInt
	tokFloat
	tokIdent
	tokString
	tokLParen
	tokRParen
	tokComma
	tokOp // one of ^ : | * / + -
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokInt:
		return "integer"
	case tokFloat:
		return "number"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokLParen:
		return "`(`"
	case tokRParen:
		return "`)`"
	case tokComma:
		return "`,`"
	case tokOp:
		return "operator"
	}
	return "unknown"
}

type token struct {
	kind tokenKind
	text string // raw text, or the unquoted value for strings
	col  int    // zero-indexed
	end  int    // one past the last char
}

const operatorChars = "^:|*/+-"

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentBody(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// lex splits formula text into tokens. The returned list always ends with an
// EOF token.
func lex(text string) ([]token, error) {
	tokens := []token{}
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", col: i, end: i + 1})
			i++

		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", col: i, end: i + 1})
			i++

		case c == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", col: i, end: i + 1})
			i++

		case strings.IndexByte(operatorChars, c) >= 0:
			tokens = append(tokens, token{kind: tokOp, text: string(c), col: i, end: i + 1})
			i++

		case isDigit(c) || (c == '.' && i+1 < len(text) && isDigit(text[i+1])):
			tok, err := lexNumber(text, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = tok.end

		case isIdentStart(c):
			j := i + 1
			for j < len(text) && isIdentBody(text[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokIdent, text: text[i:j], col: i, end: j})
			i = j

		case c == '"':
			tok, err := lexString(text, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = tok.end

		default:
			return nil, &interfaces.SyntaxErr{
				Msg:  "unrecognized character",
				Str:  string(c),
				Text: text,
				Col:  i,
			}
		}
	}
	tokens = append(tokens, token{kind: tokEOF, col: len(text), end: len(text)})
	return tokens, nil
}

func lexNumber(text string, start int) (token, error) {
	i := start
	float := false
	for i < len(text) && isDigit(text[i]) {
		i++
	}
	if i < len(text) && text[i] == '.' {
		float = true
		i++
		for i < len(text) && isDigit(text[i]) {
			i++
		}
	}
	if i < len(text) && (text[i] == 'e' || text[i] == 'E') {
		j := i + 1
		if j < len(text) && (text[j] == '+' || text[j] == '-') {
			j++
		}
		if j < len(text) && isDigit(text[j]) {
			float = true
			for j < len(text) && isDigit(text[j]) {
				j++
			}
			i = j
		}
	}
	if i < len(text) && isIdentStart(text[i]) { // eg: 12abc
		return token{}, &interfaces.SyntaxErr{
			Msg:  "malformed number",
			Str:  text[start : i+1],
			Text: text,
			Col:  start,
		}
	}
	kind := tokInt
	if float {
		kind = tokFloat
	}
	return token{kind: kind, text: text[start:i], col: start, end: i}, nil
}

func lexString(text string, start int) (token, error) {
	var b strings.Builder
	i := start + 1
	for i < len(text) {
		c := text[i]
		if c == '"' {
			return token{kind: tokString, text: b.String(), col: start, end: i + 1}, nil
		}
		if c == '\\' {
			if i+1 >= len(text) {
				break
			}
			switch n := text[i+1]; n {
			case '"', '\\':
				b.WriteByte(n)
			default:
				return token{}, &interfaces.SyntaxErr{
					Msg:  "bad escaping",
					Str:  text[i : i+2],
					Text: text,
					Col:  i,
				}
			}
			i += 2
			continue
		}
		b.WriteByte(c)
		i++
	}
	return token{}, &interfaces.SyntaxErr{
		Msg:  "unterminated string",
		Str:  text[start:],
		Text: text,
		Col:  start,
	}
}
