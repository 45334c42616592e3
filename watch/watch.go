// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package watch reloads a filter from a YAML file whenever the file changes.
package watch

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/itsManjeet/eventfilter/dispatch"
	"github.com/itsManjeet/eventfilter/filter"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// ReloadFile loads the filter config at path and reloads h with it.
func ReloadFile(h dispatch.ReloadHandle, path string) (uint64, error) {
	spec, err := filter.LoadFile(path)
	if err != nil {
		return 0, err
	}
	return h.Reload(spec)
}

// A Watcher reloads a filter from a file.
type Watcher struct {
	path   string
	h      dispatch.ReloadHandle
	logger *zap.Logger

	// added is closed once the directory is first being watched.
	added     chan struct{}
	addedOnce sync.Once
}

// New returns a Watcher for the file at path. logger may be nil.
func New(path string, h dispatch.ReloadHandle, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:   filepath.Clean(path),
		h:      h,
		logger: logger.With(zap.String("path", path)),
		added:  make(chan struct{}),
	}
}

// Run watches the file until ctx is done or the handle is closed, and
// returns nil in both cases. The directory holding the file is watched, so
// that editors replacing the file are noticed. A file that fails to load
// is logged and the active filter stays in place. Run may be called again
// after it returns.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return xerrors.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return xerrors.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}
	w.addedOnce.Do(func() { close(w.added) })
	w.logger.Info("watching filter file")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.reload(); xerrors.Is(err, dispatch.ErrClosed) {
				w.logger.Info("dispatcher closed, stopped watching")
				return nil
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() error {
	gen, err := ReloadFile(w.h, w.path)
	if err != nil {
		w.logger.Error("filter file not applied", zap.Error(err))
		return err
	}
	w.logger.Info("filter file applied", zap.Uint64("generation", gen))
	return nil
}
