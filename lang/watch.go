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

package lang

import (
	"context"

	"github.com/projections/formula/lang/artifact"
	"github.com/projections/formula/lang/model"
	"github.com/projections/formula/util/errwrap"
	"github.com/projections/formula/util/recwatch"

	"github.com/fsnotify/fsnotify"
)

// WatchFunc receives the result of every load that Watch performs.
type WatchFunc func(path string, m *model.Model, err error)

// Watch loads every artifact under dir, and then loads each one again whenever
// it changes on disk, until the context is cancelled. Each new model, or load
// error, is passed to fn. A load that finds the model unchanged isn't reported.
// The watch is on the real filesystem, so Fs must be backed by it.
func (obj *Lang) Watch(ctx context.Context, dir string, fn WatchFunc) error {
	rw := &recwatch.RecWatcher{
		Path:    dir,
		Recurse: true,
		Debug:   obj.Debug,
		Logf: func(format string, v ...interface{}) {
			obj.logf("watch: "+format, v...)
		},
	}
	if err := rw.Init(); err != nil {
		return errwrap.Wrapf(err, "can't watch %s", dir)
	}
	defer rw.Close()

	last := make(map[string]*model.Model)
	load := func(path string) {
		m, err := obj.Load(path)
		if err == nil && last[path] == m {
			return // nothing changed
		}
		last[path] = m
		fn(path, m, err)
	}

	paths, err := artifact.Find(obj.fs(), dir)
	if err != nil {
		return err
	}
	for _, path := range paths {
		load(path)
	}

	for {
		select {
		case event, ok := <-rw.Events():
			if !ok {
				return nil
			}
			if err := event.Error; err != nil {
				return errwrap.Wrapf(err, "watch of %s failed", dir)
			}
			path := event.Body.Name
			if !artifact.IsArtifact(path) {
				continue
			}
			if event.Body.Has(fsnotify.Remove) || event.Body.Has(fsnotify.Rename) {
				if obj.Debug {
					obj.logf("watch: dropping %s", path)
				}
				obj.Forget(path)
				delete(last, path)
				continue
			}
			load(path)

		case <-ctx.Done():
			return nil
		}
	}
}
