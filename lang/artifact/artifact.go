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

// Package artifact reads the model files that the fitting toolchain exports,
// and reads and writes the compiled program cache that is kept beside them.
package artifact

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/projections/formula/lang/equation"
	"github.com/projections/formula/lang/ir"
	"github.com/projections/formula/lang/poly"
	"github.com/projections/formula/util/errwrap"

	"github.com/spf13/afero"
	yaml "gopkg.in/yaml.v2"
)

const (
	// CacheExt is the extension of the compiled program cache file. It
	// replaces the extension of the artifact.
	CacheExt = ".ir.yaml"

	// SourceExt is the extension of generated Go source.
	SourceExt = ".go"
)

// Artifact is a fitted model as exported by the fitting toolchain.
type Artifact struct {
	// Name of the model. It defaults to the base name of the file.
	Name string `yaml:"name,omitempty"`

	// Output is the name of the value the model computes.
	Output string `yaml:"output"`

	// Range is the interval the output is expected to fall in.
	Range []float64 `yaml:"range,flow,omitempty"`

	// Link is the link function the model was fitted with.
	Link string `yaml:"link"`

	// Coefficients maps each term to its fitted value, in the order the
	// toolchain listed them. Missing values (null, NA, NaN) mark dropped
	// terms.
	Coefficients yaml.MapSlice `yaml:"coefficients"`

	// Poly holds the orthogonal polynomial constants of each poly term.
	Poly poly.Metadata `yaml:"poly,omitempty"`

	// Levels maps each categorical input to its ordered level names.
	Levels map[string][]string `yaml:"levels,omitempty"`

	// Neutral is the baseline value of each input. When it's absent the
	// default table of the model family is used.
	Neutral map[string]float64 `yaml:"neutral,omitempty"`
}

// Parse decodes an artifact. Unknown fields are an error.
func Parse(data []byte) (*Artifact, error) {
	obj := &Artifact{}
	if err := yaml.UnmarshalStrict(data, obj); err != nil {
		return nil, errwrap.Wrapf(err, "can't decode artifact")
	}
	if err := obj.Validate(); err != nil {
		return nil, err
	}
	return obj, nil
}

// Read reads and decodes the artifact at path. An unnamed model takes the base
// name of the file.
func Read(fs afero.Fs, path string) (*Artifact, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errwrap.Wrapf(err, "can't read artifact")
	}
	obj, err := Parse(data)
	if err != nil {
		return nil, errwrap.Wrapf(err, "artifact %s", path)
	}
	if obj.Name == "" {
		obj.Name = Base(path)
	}
	return obj, nil
}

// Validate checks the parts of the artifact that don't need compiling.
func (obj *Artifact) Validate() error {
	if obj.Output == "" {
		return fmt.Errorf("missing output name")
	}
	if len(obj.Range) != 0 && len(obj.Range) != 2 {
		return fmt.Errorf("range must have two elements, got %d", len(obj.Range))
	}
	if len(obj.Coefficients) == 0 {
		return fmt.Errorf("no coefficients")
	}
	if _, err := obj.Terms(); err != nil {
		return err
	}
	return nil
}

// Terms returns the coefficient table in its original order.
func (obj *Artifact) Terms() ([]equation.Coefficient, error) {
	var reterr error
	out := []equation.Coefficient{}
	for _, item := range obj.Coefficients {
		term := fmt.Sprintf("%v", item.Key)
		v, err := number(item.Value)
		if err != nil {
			reterr = errwrap.Append(reterr, errwrap.Wrapf(err, "coefficient of `%s`", term))
			continue
		}
		out = append(out, equation.Coefficient{Term: term, Value: v})
	}
	if reterr != nil {
		return nil, reterr
	}
	return out, nil
}

// number decodes one coefficient value. The missing value spellings all turn
// into NaN.
func number(x interface{}) (float64, error) {
	switch v := x.(type) {
	case nil:
		return math.NaN(), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		switch strings.ToLower(v) {
		case "na", "nan", ".nan":
			return math.NaN(), nil
		}
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("unexpected value: %v", x)
}

// IsArtifact reports whether the file at path looks like a model artifact. It
// has a yaml extension and isn't a cache file.
func IsArtifact(path string) bool {
	if strings.HasSuffix(path, CacheExt) {
		return false
	}
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

// Find returns the sorted paths of every artifact under dir.
func Find(fs afero.Fs, dir string) ([]string, error) {
	paths := []string{}
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && IsArtifact(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errwrap.Wrapf(err, "can't search %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}

// Base returns the model name for an artifact path.
func Base(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// sibling swaps the extension of path.
func sibling(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// CachePath returns the path of the program cache of an artifact.
func CachePath(path string) string { return sibling(path, CacheExt) }

// SourcePath returns the path of the generated source of an artifact.
func SourcePath(path string) string { return sibling(path, SourceExt) }

// Cache is the compiled form of an artifact, as stored beside it.
type Cache struct {
	Neutral map[string]float64 `yaml:"neutral,omitempty"`
	Program *ir.Program        `yaml:"program"`
}

// Fresh reports whether the file at cache was modified after the artifact at
// path. A missing cache file is stale.
func Fresh(fs afero.Fs, path, cache string) (bool, error) {
	src, err := fs.Stat(path)
	if err != nil {
		return false, errwrap.Wrapf(err, "can't stat artifact")
	}
	dst, err := fs.Stat(cache)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, errwrap.Wrapf(err, "can't stat cache")
	}
	return dst.ModTime().After(src.ModTime()), nil
}

// ReadCache reads the cache file at path and validates the program in it.
func ReadCache(fs afero.Fs, path string) (*Cache, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errwrap.Wrapf(err, "can't read cache")
	}
	obj := &Cache{}
	if err := yaml.UnmarshalStrict(data, obj); err != nil {
		return nil, errwrap.Wrapf(err, "can't decode cache %s", path)
	}
	if obj.Program == nil {
		return nil, fmt.Errorf("cache %s has no program", path)
	}
	if err := obj.Program.Validate(); err != nil {
		return nil, errwrap.Wrapf(err, "cache %s is invalid", path)
	}
	return obj, nil
}

// WriteCache overwrites the cache file at path.
func WriteCache(fs afero.Fs, path string, cache *Cache) error {
	data, err := yaml.Marshal(cache)
	if err != nil {
		return errwrap.Wrapf(err, "can't encode cache")
	}
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return errwrap.Wrapf(err, "can't write cache")
	}
	return nil
}
