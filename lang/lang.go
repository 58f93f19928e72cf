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

// Package lang is the formula compiler. A Lang turns the model artifacts that
// the fitting toolchain exports into evaluators, and keeps the ones it built.
package lang

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/projections/formula/lang/aot"
	"github.com/projections/formula/lang/artifact"
	"github.com/projections/formula/lang/ast"
	"github.com/projections/formula/lang/cse"
	"github.com/projections/formula/lang/equation"
	"github.com/projections/formula/lang/interfaces"
	"github.com/projections/formula/lang/interpret"
	"github.com/projections/formula/lang/ir"
	"github.com/projections/formula/lang/jit"
	"github.com/projections/formula/lang/model"
	"github.com/projections/formula/lang/poly"
	"github.com/projections/formula/prometheus"
	"github.com/projections/formula/util"
	"github.com/projections/formula/util/errwrap"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
)

// DefaultBackend is used when a Lang doesn't name one.
const DefaultBackend = interfaces.BackendJIT

// Lang is the compiler context. It holds every compiled model, so two Lang
// structs never share state. It's safe for concurrent use.
type Lang struct {
	// Fs is where the artifacts and their cache files live. It defaults to
	// the os filesystem.
	Fs afero.Fs

	// Backend is the code generator to use.
	Backend interfaces.Backend

	// Metrics, when set, receives the compile, cache and eval counts.
	Metrics *prometheus.Prometheus

	Debug bool
	Logf  func(format string, v ...interface{})

	mutex  sync.Mutex
	models map[string]*entry // keyed by artifact path
	group  singleflight.Group
}

// entry is a loaded model along with the artifact version it came from.
type entry struct {
	modTime time.Time
	prog    *ir.Program
	model   *model.Model
}

// Trace holds the tree at each stage of the pipeline.
type Trace struct {
	Equation *ast.Node // as built from the coefficients
	CSE      *ast.Node // with shared subtrees bound once
	Resolved *ast.Node // with the polynomial constants attached
	Program  *ir.Program
}

func (obj *Lang) fs() afero.Fs {
	if obj.Fs == nil {
		return afero.NewOsFs()
	}
	return obj.Fs
}

func (obj *Lang) backend() interfaces.Backend {
	if obj.Backend == "" {
		return DefaultBackend
	}
	return obj.Backend
}

func (obj *Lang) logf(format string, v ...interface{}) {
	if obj.Logf == nil {
		return
	}
	obj.Logf(format, v...)
}

// Stages runs the pipeline up to the program and keeps every stage.
func (obj *Lang) Stages(art *artifact.Artifact) (*Trace, error) {
	terms, err := art.Terms()
	if err != nil {
		return nil, err
	}
	builder := &equation.Builder{
		Levels: art.Levels,
		Debug:  obj.Debug,
		Logf: func(format string, v ...interface{}) {
			obj.logf("equation: "+format, v...)
		},
	}
	trace := &Trace{}
	if trace.Equation, err = builder.Build(terms, art.Link); err != nil {
		return nil, errwrap.Wrapf(err, "could not build the equation of %s", art.Name)
	}

	trace.CSE = cse.CSE(trace.Equation)
	if obj.Debug {
		obj.logf("cse: %d shared subtrees", cse.Materialized(trace.CSE))
	}

	resolver := &poly.Resolver{
		Metadata: art.Poly,
		Debug:    obj.Debug,
		Logf: func(format string, v ...interface{}) {
			obj.logf("poly: "+format, v...)
		},
	}
	if trace.Resolved, err = resolver.Resolve(trace.CSE); err != nil {
		return nil, errwrap.Wrapf(err, "could not resolve the polynomials of %s", art.Name)
	}

	if trace.Program, err = ir.Lower(trace.Resolved, art.Name, art.Output); err != nil {
		return nil, errwrap.Wrapf(err, "could not lower %s", art.Name)
	}
	trace.Program.Range = art.Range
	return trace, nil
}

// Program compiles an artifact down to the shared representation.
func (obj *Lang) Program(art *artifact.Artifact) (*ir.Program, error) {
	trace, err := obj.Stages(art)
	if err != nil {
		return nil, err
	}
	return trace.Program, nil
}

// Evaluator builds the configured backend for a program.
func (obj *Lang) Evaluator(prog *ir.Program) (interfaces.Evaluator, error) {
	start := time.Now()
	evaluator, err := obj.evaluator(prog)
	if obj.Metrics != nil {
		obj.Metrics.UpdateCompileTotal(string(obj.backend()), err != nil, time.Since(start))
	}
	if err != nil {
		return nil, errwrap.Wrapf(err, "backend %s failed", obj.backend())
	}
	if obj.Metrics != nil {
		evaluator = &metered{
			Evaluator: evaluator,
			backend:   string(obj.backend()),
			metrics:   obj.Metrics,
		}
	}
	return evaluator, nil
}

func (obj *Lang) evaluator(prog *ir.Program) (interfaces.Evaluator, error) {
	switch b := obj.backend(); b {
	case interfaces.BackendInterpret:
		i, err := interpret.New(prog)
		if err != nil {
			return nil, err
		}
		i.Debug = obj.Debug
		i.Logf = func(format string, v ...interface{}) {
			obj.logf("interpret: "+format, v...)
		}
		return i, nil

	case interfaces.BackendAOT:
		return aot.Compile(prog)

	case interfaces.BackendJIT:
		return jit.Compile(prog)

	default:
		return nil, fmt.Errorf("unknown backend: %s", b)
	}
}

// Source renders a program as Go source in package pkg, with the configured
// backend. The interpreter has no source form.
func (obj *Lang) Source(prog *ir.Program, pkg string) ([]byte, error) {
	switch b := obj.backend(); b {
	case interfaces.BackendAOT:
		fn, err := aot.Compile(prog)
		if err != nil {
			return nil, err
		}
		return fn.Source(pkg)

	case interfaces.BackendJIT:
		k, err := jit.Compile(prog)
		if err != nil {
			return nil, err
		}
		return k.Source(pkg)

	default:
		return nil, fmt.Errorf("backend %s can't generate source", b)
	}
}

// Model wraps a program in a model, compiled with the configured backend.
func (obj *Lang) Model(prog *ir.Program, neutral map[string]float64) (*model.Model, error) {
	evaluator, err := obj.Evaluator(prog)
	if err != nil {
		return nil, err
	}
	m := model.New(prog.Name, prog.Output, evaluator)
	m.Range = prog.Range
	m.Neutral = maps.Clone(neutral) // every model owns its table
	return m, nil
}

// Compile runs the whole pipeline on an artifact. It doesn't touch the cache.
func (obj *Lang) Compile(art *artifact.Artifact) (*model.Model, error) {
	prog, err := obj.Program(art)
	if err != nil {
		return nil, err
	}
	return obj.Model(prog, neutral(art))
}

// neutral returns the baseline table of an artifact.
func neutral(art *artifact.Artifact) map[string]float64 {
	if art.Neutral != nil {
		return art.Neutral
	}
	return model.PredictsNeutral
}

// Load returns the model of the artifact at path. A model that was already
// loaded is returned again unless the artifact changed since. Otherwise the
// cache file beside the artifact is used if it's newer, and is rewritten if
// not. Concurrent loads of one path compile it once.
func (obj *Lang) Load(path string) (*model.Model, error) {
	e, err := obj.load(path)
	if err != nil {
		return nil, err
	}
	return e.model, nil
}

func (obj *Lang) load(path string) (*entry, error) {
	fi, err := obj.fs().Stat(path)
	if err != nil {
		return nil, errwrap.Wrapf(err, "no such artifact")
	}

	obj.mutex.Lock()
	e, exists := obj.models[path]
	obj.mutex.Unlock()
	if exists && e.modTime.Equal(fi.ModTime()) {
		if obj.Metrics != nil {
			obj.Metrics.UpdateCacheTotal(prometheus.CacheHit)
		}
		return e, nil
	}

	v, err, _ := obj.group.Do(path, func() (interface{}, error) {
		e, err := obj.build(path, fi.ModTime())
		if err != nil {
			return nil, err
		}
		obj.mutex.Lock()
		defer obj.mutex.Unlock()
		if obj.models == nil {
			obj.models = make(map[string]*entry)
		}
		obj.models[path] = e
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

// build loads the model of an artifact from its cache file, or compiles it and
// rewrites the cache file.
func (obj *Lang) build(path string, modTime time.Time) (*entry, error) {
	fs := obj.fs()
	cachePath := artifact.CachePath(path)

	fresh, err := artifact.Fresh(fs, path, cachePath)
	if err != nil {
		return nil, err
	}
	if fresh {
		cache, err := artifact.ReadCache(fs, cachePath)
		if err == nil {
			if obj.Debug {
				obj.logf("load: reusing %s", cachePath)
			}
			m, err := obj.Model(cache.Program, cache.Neutral)
			if err != nil {
				return nil, err
			}
			if obj.Metrics != nil {
				obj.Metrics.UpdateCacheTotal(prometheus.CacheReuse)
			}
			return &entry{modTime: modTime, prog: cache.Program, model: m}, nil
		}
		// a broken cache is rebuilt, it's never the source of truth
		obj.logf("load: ignoring cache: %+v", err)
	}

	if obj.Debug {
		obj.logf("load: compiling %s", path)
		if tree, err := util.FsTree(fs, filepath.Dir(path)); err == nil {
			obj.logf("load: beside it:\n%s", tree)
		}
	}
	art, err := artifact.Read(fs, path)
	if err != nil {
		return nil, err
	}
	prog, err := obj.Program(art)
	if err != nil {
		return nil, err
	}
	m, err := obj.Model(prog, neutral(art))
	if err != nil {
		return nil, err
	}
	cache := &artifact.Cache{
		Neutral: m.Neutral,
		Program: prog,
	}
	if err := artifact.WriteCache(fs, cachePath, cache); err != nil {
		return nil, err
	}
	if obj.Metrics != nil {
		obj.Metrics.UpdateCacheTotal(prometheus.CacheMiss)
	}
	return &entry{modTime: modTime, prog: prog, model: m}, nil
}

// EmitGo writes the Go source of the artifact at path beside it, in package
// pkg, and returns the path it wrote.
func (obj *Lang) EmitGo(path, pkg string) (string, error) {
	e, err := obj.load(path)
	if err != nil {
		return "", err
	}
	src, err := obj.Source(e.prog, pkg)
	if err != nil {
		return "", errwrap.Wrapf(err, "could not generate source for %s", path)
	}
	out := artifact.SourcePath(path)
	if err := afero.WriteFile(obj.fs(), out, src, 0644); err != nil {
		return "", errwrap.Wrapf(err, "could not write %s", out)
	}
	return out, nil
}

// Forget drops a loaded model, so that the next load reads its cache file or
// artifact again.
func (obj *Lang) Forget(path string) {
	obj.mutex.Lock()
	defer obj.mutex.Unlock()
	delete(obj.models, path)
}

// metered counts the evaluations of a model.
type metered struct {
	interfaces.Evaluator
	backend string
	metrics *prometheus.Prometheus
}

func (obj *metered) Eval(inputs map[string][]float64) ([]float64, error) {
	out, err := obj.Evaluator.Eval(inputs)
	obj.metrics.UpdateEvalTotal(obj.backend, err != nil, len(out))
	return out, err
}

// IsNotExist reports whether err says an artifact doesn't exist.
func IsNotExist(err error) bool {
	return os.IsNotExist(errwrap.Cause(err))
}
