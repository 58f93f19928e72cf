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

//go:build !root

package util

import (
	"reflect"
	"testing"
)

func TestStrInList(t *testing.T) {
	backends := []string{"interpret", "aot", "jit"}
	if !StrInList("aot", backends) {
		t.Errorf("aot was not found")
	}
	if StrInList("llvm", backends) || StrInList("", nil) {
		t.Errorf("found a missing string")
	}
}

func TestStrMapKeys(t *testing.T) {
	levels := map[string][]string{
		"UI2":     {"minimal", "light"},
		"landuse": {"cropland"},
		"LU":      nil,
	}
	if keys := StrMapKeys(levels); !reflect.DeepEqual(keys, []string{"LU", "UI2", "landuse"}) {
		t.Errorf("unexpected keys: %v", keys)
	}
	if keys := StrMapKeys(map[string]float64{}); len(keys) != 0 {
		t.Errorf("expected no keys, got: %v", keys)
	}
}

func TestSortedStrSliceCompare0(t *testing.T) {
	slice0 := []string{"logHPD_rs", "UI2", "logDTR_rs"}
	slice1 := []string{"UI2", "logDTR_rs", "logHPD_rs"}

	if err := SortedStrSliceCompare(slice0, slice1); err != nil {
		t.Errorf("slices were not evaluated as equivalent: %v, %v", slice0, slice1)
	}
	// the inputs are never reordered
	if slice0[0] != "logHPD_rs" || slice1[0] != "UI2" {
		t.Errorf("input slices reordered to: %v, %v", slice0, slice1)
	}
}

func TestSortedStrSliceCompare1(t *testing.T) {
	testCases := [][2][]string{
		{{"hpd", "UI2"}, {"hpd", "UI3"}},
		{{"hpd", "UI2"}, {"hpd"}},
		{{"hpd", "hpd"}, {"hpd", "UI2"}},
	}
	for i, tc := range testCases {
		if err := SortedStrSliceCompare(tc[0], tc[1]); err == nil {
			t.Errorf("test #%d: slices were evaluated as equivalent: %v, %v", i, tc[0], tc[1])
		}
	}
}
