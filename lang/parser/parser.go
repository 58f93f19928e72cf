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
	"fmt"
	"strconv"

	"github.com/projections/formula/lang/interfaces"
)

// RawKind is the kind of a raw parse tree element.
type RawKind int

// These are the kinds of raw parse tree elements.
const (
	RawInt RawKind = iota
	RawFloat
	RawIdent
	RawString
	RawCall
	RawChain
)

// Raw is the parse tree as the grammar sees it, before any special forms are
// resolved. Chains keep every operand of one precedence level in a flat list
// with the operators between them, so Ops has one element less than Args.
type Raw struct {
	Kind RawKind

	Int   int64
	Float float64
	Text  string // identifier, string value, or function name

	Args []*Raw
	Ops  []string

	// HasSuffix is set when a call is followed by an integer, as in
	// factor(x)12 or poly(x, 3)2.
	HasSuffix bool
	Suffix    int64

	// Paren is set when the element was written inside parentheses.
	Paren bool

	Start int // zero-indexed offset of the first char
	End   int // one past the last char
}

// precedence levels, loosest first
var levels = [][]string{
	{"+", "-"},
	{"*", "/"},
	{":", "|"},
}

type rawParser struct {
	text   string
	tokens []token
	pos    int
}

// ParseRaw runs the lexer and the grammar over the text and returns the raw
// parse tree. The whole text must be consumed.
func ParseRaw(text string) (*Raw, error) {
	tokens, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &rawParser{
		text:   text,
		tokens: tokens,
	}
	if p.peek().kind == tokEOF {
		return nil, p.errorf(p.peek(), "empty formula")
	}
	raw, err := p.parseLevel(0)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s", tok.kind)
	}
	return raw, nil
}

func (obj *rawParser) peek() token { return obj.tokens[obj.pos] }

func (obj *rawParser) next() token {
	tok := obj.tokens[obj.pos]
	if tok.kind != tokEOF {
		obj.pos++
	}
	return tok
}

func (obj *rawParser) errorf(tok token, msg string, args ...interface{}) error {
	str := tok.text
	if tok.kind == tokEOF {
		str = "<EOF>"
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &interfaces.SyntaxErr{
		Msg:  msg,
		Str:  str,
		Text: obj.text,
		Col:  tok.col,
	}
}

func (obj *rawParser) isOp(tok token, ops []string) bool {
	if tok.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if tok.text == op {
			return true
		}
	}
	return false
}

// parseLevel parses a left associative chain at precedence level i.
func (obj *rawParser) parseLevel(i int) (*Raw, error) {
	if i >= len(levels) {
		return obj.parsePow()
	}
	first, err := obj.parseLevel(i + 1)
	if err != nil {
		return nil, err
	}
	chain := &Raw{
		Kind:  RawChain,
		Args:  []*Raw{first},
		Start: first.Start,
	}
	for obj.isOp(obj.peek(), levels[i]) {
		op := obj.next()
		operand, err := obj.parseLevel(i + 1)
		if err != nil {
			return nil, err
		}
		chain.Ops = append(chain.Ops, op.text)
		chain.Args = append(chain.Args, operand)
	}
	if len(chain.Ops) == 0 {
		return first, nil
	}
	chain.End = chain.Args[len(chain.Args)-1].End
	return chain, nil
}

// parsePow parses the right associative exponent operator.
func (obj *rawParser) parsePow() (*Raw, error) {
	base, err := obj.parseOperand()
	if err != nil {
		return nil, err
	}
	if !obj.isOp(obj.peek(), []string{"^"}) {
		return base, nil
	}
	obj.next()
	exponent, err := obj.parsePow()
	if err != nil {
		return nil, err
	}
	return &Raw{
		Kind:  RawChain,
		Args:  []*Raw{base, exponent},
		Ops:   []string{"^"},
		Start: base.Start,
		End:   exponent.End,
	}, nil
}

func (obj *rawParser) parseOperand() (*Raw, error) {
	tok := obj.next()
	switch tok.kind {
	case tokInt, tokFloat:
		return obj.number(tok, false, tok.col)

	case tokOp:
		// a minus in operand position is part of a signed literal
		if tok.text == "-" {
			if n := obj.peek(); (n.kind == tokInt || n.kind == tokFloat) && n.col == tok.end {
				obj.next()
				return obj.number(n, true, tok.col)
			}
		}
		return nil, obj.errorf(tok, "unexpected operator")

	case tokString:
		return &Raw{Kind: RawString, Text: tok.text, Start: tok.col, End: tok.end}, nil

	case tokIdent:
		if obj.peek().kind != tokLParen {
			return &Raw{Kind: RawIdent, Text: tok.text, Start: tok.col, End: tok.end}, nil
		}
		return obj.parseCall(tok)

	case tokLParen:
		inner, err := obj.parseLevel(0)
		if err != nil {
			return nil, err
		}
		closing := obj.next()
		if closing.kind != tokRParen {
			return nil, obj.errorf(closing, "expected `)`, got %s", closing.kind)
		}
		inner.Paren = true
		return inner, nil
	}
	return nil, obj.errorf(tok, "unexpected %s", tok.kind)
}

func (obj *rawParser) parseCall(name token) (*Raw, error) {
	obj.next() // (
	call := &Raw{
		Kind:  RawCall,
		Text:  name.text,
		Start: name.col,
	}
	if obj.peek().kind != tokRParen {
		for {
			arg, err := obj.parseLevel(0)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if obj.peek().kind != tokComma {
				break
			}
			obj.next()
		}
	}
	closing := obj.next()
	if closing.kind != tokRParen {
		return nil, obj.errorf(closing, "expected `)` to close `%s(`, got %s", name.text, closing.kind)
	}
	call.End = closing.end

	// an integer after the closing paren selects a level or column
	if n := obj.peek(); n.kind == tokInt {
		obj.next()
		v, err := strconv.ParseInt(n.text, 10, 64)
		if err != nil {
			return nil, obj.errorf(n, "integer overflow")
		}
		call.HasSuffix = true
		call.Suffix = v
		call.End = n.end
	}
	return call, nil
}

func (obj *rawParser) number(tok token, negative bool, start int) (*Raw, error) {
	text := tok.text
	if negative {
		text = "-" + text
	}
	if tok.kind == tokInt {
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, obj.errorf(tok, "integer overflow")
		}
		return &Raw{Kind: RawInt, Int: v, Start: start, End: tok.end}, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, obj.errorf(tok, "float overflow")
	}
	return &Raw{Kind: RawFloat, Float: v, Start: start, End: tok.end}, nil
}
