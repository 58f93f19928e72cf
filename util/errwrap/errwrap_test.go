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

package errwrap

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapfErr1(t *testing.T) {
	if err := Wrapf(nil, "whatever: %d", 42); err != nil {
		t.Errorf("expected nil result")
	}
}

func TestWrapfIs1(t *testing.T) {
	sentinel := fmt.Errorf("sentinel")
	err := Wrapf(Wrapf(sentinel, "inner"), "outer: %s", "term")
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped error to match its cause")
	}
	if Cause(err) != sentinel {
		t.Errorf("expected cause to be the sentinel")
	}
	if s := err.Error(); s != "outer: term: inner: sentinel" {
		t.Errorf("unexpected message: %s", s)
	}
}

func TestAppendErr1(t *testing.T) {
	if err := Append(nil, nil); err != nil {
		t.Errorf("expected nil result")
	}
}

func TestAppendErr2(t *testing.T) {
	reterr := fmt.Errorf("reterr")
	if err := Append(reterr, nil); err != reterr {
		t.Errorf("expected reterr")
	}
}

func TestAppendErr3(t *testing.T) {
	err := fmt.Errorf("err")
	if reterr := Append(nil, err); reterr != err {
		t.Errorf("expected err")
	}
}

func TestErrors1(t *testing.T) {
	if errs := Errors(nil); errs != nil {
		t.Errorf("expected nil list")
	}
	e1 := fmt.Errorf("one")
	e2 := fmt.Errorf("two")
	e3 := fmt.Errorf("three")
	var reterr error
	for _, e := range []error{e1, e2, e3} {
		reterr = Append(reterr, e)
	}
	errs := Errors(reterr)
	if len(errs) != 3 {
		t.Errorf("expected 3 errors, got: %d", len(errs))
		return
	}
	if errs[0] != e1 || errs[1] != e2 || errs[2] != e3 {
		t.Errorf("errors out of order: %+v", errs)
	}
	if !errors.Is(reterr, e2) {
		t.Errorf("expected appended error to match a member")
	}
}

func TestString1(t *testing.T) {
	var err error
	if String(err) != "" {
		t.Errorf("expected empty result")
	}

	msg := "this is an error"
	if err := errors.New(msg); String(err) != msg {
		t.Errorf("expected different result")
	}
}
