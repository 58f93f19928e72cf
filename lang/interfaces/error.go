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

package interfaces

import (
	"fmt"
	"strings"
)

// Error is a constant error type that implements error.
type Error string

// Error fulfills the error interface of this type.
func (e Error) Error() string { return string(e) }

const (
	// ErrSyntax is the class of errors returned for malformed formula text.
	// These are permanent, retrying the same input will fail again.
	ErrSyntax = Error("syntax error")

	// ErrValidation is the class of errors returned when a term is well
	// formed but can't be used, such as an arity mismatch in a special
	// form, an unknown categorical level, or missing polynomial metadata.
	// This usually means the model artifact is incompatible.
	ErrValidation = Error("validation error")

	// ErrMissingInput is returned at evaluation time when a required input
	// was not supplied. The caller can recover by supplying it.
	ErrMissingInput = Error("missing input")

	// ErrUnsupported is returned when a node or instruction reaches a code
	// generator that has no rule for it. A tree produced by our own passes
	// should never trigger this.
	ErrUnsupported = Error("unsupported operator")

	// ErrUnknownLink is returned when a model declares an inverse link that
	// we don't know how to build.
	ErrUnknownLink = Error("unknown link function")
)

// SyntaxErr is a permanent failure error to notify about malformed input.
type SyntaxErr struct {
	Msg  string
	Str  string // the offending text
	Text string // the whole input
	Col  int    // this is zero-indexed (the first char is 0)
}

// Error displays this error with all the relevant state information.
func (e *SyntaxErr) Error() string {
	return fmt.Sprintf("%s: %s: `%s` @%d in `%s`", ErrSyntax, e.Msg, e.Str, e.Col+1, e.Text)
}

// Unwrap lets errors.Is match this against ErrSyntax.
func (e *SyntaxErr) Unwrap() error { return ErrSyntax }

// ValidationErr is returned when a parsed term fails a semantic check. The Term
// is the offending construct, rendered as text.
type ValidationErr struct {
	Term string
	Msg  string
}

// Error displays this error with the offending term.
func (e *ValidationErr) Error() string {
	return fmt.Sprintf("%s: %s in `%s`", ErrValidation, e.Msg, e.Term)
}

// Unwrap lets errors.Is match this against ErrValidation.
func (e *ValidationErr) Unwrap() error { return ErrValidation }

// MissingInputErr names every required input that was absent from an eval.
type MissingInputErr struct {
	Names []string
}

// Error displays this error with the names of the missing inputs.
func (e *MissingInputErr) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingInput, strings.Join(e.Names, ", "))
}

// Unwrap lets errors.Is match this against ErrMissingInput.
func (e *MissingInputErr) Unwrap() error { return ErrMissingInput }

// UnsupportedErr is returned by a code generator for a node type it has no rule
// for. The Backend is empty when lowering to the shared representation fails.
type UnsupportedErr struct {
	Backend string
	Type    string
}

// Error displays this error with the offending node type.
func (e *UnsupportedErr) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("%s: unexpected node type: %s", ErrUnsupported, e.Type)
	}
	return fmt.Sprintf("%s: %s: unexpected node type: %s", ErrUnsupported, e.Backend, e.Type)
}

// Unwrap lets errors.Is match this against ErrUnsupported.
func (e *UnsupportedErr) Unwrap() error { return ErrUnsupported }

// LinkErr is returned for a model with an inverse link we can't build.
type LinkErr struct {
	Link string
}

// Error displays this error with the offending link name.
func (e *LinkErr) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnknownLink, e.Link)
}

// Unwrap lets errors.Is match this against ErrUnknownLink.
func (e *LinkErr) Unwrap() error { return ErrUnknownLink }
