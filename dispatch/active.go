// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/itsManjeet/eventfilter/filter"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// ErrClosed is returned by ReloadHandle.Reload once the dispatcher has been
// closed.
var ErrClosed = xerrors.New("dispatch: reload after close")

// state is one generation of the active filter.
// It is never modified after being published.
type state struct {
	gen  uint64
	spec *filter.Spec
}

// activeFilter holds the current state.
// Readers load the pointer without locking; writers serialize on mu.
type activeFilter struct {
	cur     atomic.Pointer[state]
	reloads atomic.Uint64

	mu     sync.Mutex
	closed bool
}

func newActiveFilter(spec *filter.Spec) *activeFilter {
	a := &activeFilter{}
	a.cur.Store(&state{spec: spec})
	return a
}

func (a *activeFilter) load() *state { return a.cur.Load() }

func (a *activeFilter) replace(spec *filter.Spec) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, ErrClosed
	}
	next := &state{gen: a.cur.Load().gen + 1, spec: spec}
	a.cur.Store(next)
	a.reloads.Add(1)
	return next.gen, nil
}

func (a *activeFilter) close() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	was := a.closed
	a.closed = true
	return !was
}

// A ReloadHandle replaces the filter of the dispatcher it came from.
//
// Handles are small values and may be copied and used from any number of
// goroutines. The zero ReloadHandle behaves as if its dispatcher were closed.
type ReloadHandle struct {
	active *activeFilter
	logger *zap.Logger
}

// Reload makes spec the active filter and returns its generation, which is
// one more than the generation active just before the call.
//
// Reload is visible to everything that happens after it returns on the same
// goroutine, and to other goroutines that synchronize with it afterwards,
// for example by receiving from a channel the caller sends on. Goroutines
// with no such edge see the new filter eventually, with no bound on when.
// Spans that are already live keep the enablement they were entered with.
func (h ReloadHandle) Reload(spec *filter.Spec) (uint64, error) {
	if h.active == nil {
		return 0, ErrClosed
	}
	gen, err := h.active.replace(spec)
	if err != nil {
		h.logger.Warn("filter reload rejected", zap.Error(err))
		return 0, err
	}
	h.logger.Debug("filter reloaded", zap.Uint64("generation", gen), zap.Stringer("filter", spec))
	return gen, nil
}

// Current returns the active generation and its filter as one consistent
// pair.
func (h ReloadHandle) Current() (uint64, *filter.Spec) {
	if h.active == nil {
		return 0, nil
	}
	st := h.active.load()
	return st.gen, st.spec
}
