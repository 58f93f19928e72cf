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

// Package recwatch provides recursive file watching events via fsnotify.
package recwatch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/projections/formula/util/errwrap"

	"github.com/fsnotify/fsnotify"
)

// Event represents a watcher event. These can include errors.
type Event struct {
	Error error
	Body  *fsnotify.Event
}

// RecWatcher is the struct for the recursive watcher. Run Init() on it.
type RecWatcher struct {
	// Path is the directory that we're watching.
	Path string

	// Recurse specifies if we should watch the directories below it too.
	Recurse bool

	Debug bool
	Logf  func(format string, v ...interface{})

	watcher *fsnotify.Watcher
	watches map[string]struct{}
	events  chan Event // one channel for events and err...
	closed  bool       // is the events channel closed?
	mutex   sync.Mutex // lock guarding the channel closing
	wg      sync.WaitGroup
	exit    chan struct{}
}

// NewRecWatcher creates an initializes a new recursive watcher.
func NewRecWatcher(path string, recurse bool) (*RecWatcher, error) {
	obj := &RecWatcher{
		Path:    path,
		Recurse: recurse,
	}
	return obj, obj.Init()
}

// Init starts the recursive file watcher.
func (obj *RecWatcher) Init() error {
	obj.watches = make(map[string]struct{})
	obj.events = make(chan Event)
	obj.exit = make(chan struct{})
	if obj.Logf == nil {
		obj.Logf = func(format string, v ...interface{}) {} // noop
	}

	var err error
	obj.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := obj.add(filepath.Clean(obj.Path)); err != nil {
		obj.watcher.Close()
		return err
	}

	obj.wg.Add(1)
	go func() {
		defer obj.wg.Done()
		if err := obj.Watch(); err != nil {
			// we need this mutex, because if we Init and then Close
			// immediately, this can send after closed which panics!
			obj.mutex.Lock()
			if !obj.closed {
				select {
				case obj.events <- Event{Error: err}:
				case <-obj.exit:
					// pass
				}
			}
			obj.mutex.Unlock()
		}
	}()
	return nil
}

// add watches a directory, and every directory below it when recursing.
func (obj *RecWatcher) add(dir string) error {
	if err := obj.addOne(dir); err != nil {
		return err
	}
	if !obj.Recurse {
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == dir {
			return nil
		}
		return obj.addOne(path)
	})
}

func (obj *RecWatcher) addOne(dir string) error {
	if _, exists := obj.watches[dir]; exists {
		return nil
	}
	if obj.Debug {
		obj.Logf("watching: %s", dir)
	}
	if err := obj.watcher.Add(dir); err != nil {
		if err == syscall.ENOSPC {
			// no space left on device, out of inotify watches
			return fmt.Errorf("out of inotify watches: %v", err)
		} else if os.IsPermission(err) {
			return fmt.Errorf("permission denied adding a watch: %v", err)
		}
		return errwrap.Wrapf(err, "can't watch %s", dir)
	}
	obj.watches[dir] = struct{}{}
	return nil
}

// Close shuts down the watcher.
func (obj *RecWatcher) Close() error {
	var err error
	close(obj.exit) // send exit signal
	obj.wg.Wait()
	if obj.watcher != nil {
		err = obj.watcher.Close()
		obj.watcher = nil
	}
	obj.mutex.Lock()
	obj.closed = true
	close(obj.events)
	obj.mutex.Unlock()
	return err
}

// Events returns a channel of events. These include events for errors.
func (obj *RecWatcher) Events() chan Event { return obj.events }

// Watch is the primary listener and it outputs events. It returns when the
// watcher is closed.
func (obj *RecWatcher) Watch() error {
	if obj.watcher == nil {
		return fmt.Errorf("the watcher is not initialized")
	}
	for {
		select {
		case event, ok := <-obj.watcher.Events:
			if !ok {
				return nil
			}
			if obj.Debug {
				obj.Logf("event(%s): %v", event.Name, event.Op)
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				delete(obj.watches, event.Name) // fsnotify drops it
			}
			if obj.Recurse && event.Has(fsnotify.Create) && isDir(event.Name) {
				if err := obj.add(event.Name); err != nil {
					return err
				}
			}
			e := event
			select {
			case obj.events <- Event{Body: &e}:
			case <-obj.exit:
				return nil
			}

		case err, ok := <-obj.watcher.Errors:
			if !ok {
				return nil
			}
			return errwrap.Wrapf(err, "unknown watcher error")

		case <-obj.exit:
			return nil
		}
	}
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.IsDir()
}
