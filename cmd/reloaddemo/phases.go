// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/itsManjeet/eventfilter/dispatch"
	"github.com/itsManjeet/eventfilter/export/eventtest"
	"github.com/itsManjeet/eventfilter/filter"
	"golang.org/x/xerrors"
)

const target = "reloaddemo"

// sites are the call sites every phase emits from, one per level.
type sites struct {
	d      *dispatch.Dispatcher
	events []*dispatch.CallSite
}

func newSites(d *dispatch.Dispatcher) *sites {
	return &sites{d: d, events: []*dispatch.CallSite{
		d.Register(dispatch.Here(dispatch.EventKind, "trace", target, filter.TraceLevel)),
		d.Register(dispatch.Here(dispatch.EventKind, "debug", target, filter.DebugLevel)),
		d.Register(dispatch.Here(dispatch.EventKind, "info", target, filter.InfoLevel)),
		d.Register(dispatch.Here(dispatch.EventKind, "warn", target, filter.WarnLevel)),
		d.Register(dispatch.Here(dispatch.EventKind, "error", target, filter.ErrorLevel)),
	}}
}

// emit enters an info span called name on st and emits the first n events
// inside it, most verbose first.
func (s *sites) emit(st *dispatch.Stack, name string, n int) {
	span := s.d.Register(dispatch.Metadata{Name: name, Target: target, Level: filter.InfoLevel, Kind: dispatch.SpanKind})
	defer st.Enter(span).Exit()
	for _, site := range s.events[:n] {
		s.d.Event(st, site, site.Name)
	}
}

// A result is the number of events a phase's span delivered.
type result struct {
	Phase  string
	Events int
}

var phaseNames = []string{
	"0-doesn't print-main",
	"1-always-goroutine2",
	"2-always-main",
	"3-always-goroutine3",
	"4-always-main",
}

// runPhases replays the reload scenario: a filter reloaded to trace by one
// goroutine must be seen by every goroutine that synchronized with it. The
// dispatcher's sink must include rec.
func runPhases(d *dispatch.Dispatcher, rec *eventtest.Recorder) ([]result, error) {
	s := newSites(d)
	h := d.Handle()
	primary := d.NewStack()

	// Under the initial filter, and only the three most verbose levels.
	s.emit(primary, phaseNames[0], 3)

	reloaded := make(chan error)
	finished := make(chan struct{}, 2)
	go func() {
		_, err := h.Reload(filter.MustParse("trace"))
		reloaded <- err
		if err == nil {
			s.emit(d.NewStack(), phaseNames[1], 5)
		}
		finished <- struct{}{}
	}()
	if err := <-reloaded; err != nil {
		return nil, xerrors.Errorf("phase 1: %w", err)
	}

	s.emit(primary, phaseNames[2], 5)

	if _, err := h.Reload(filter.MustParse("trace")); err != nil {
		return nil, xerrors.Errorf("phase 3: %w", err)
	}
	go func() {
		_, err := h.Reload(filter.MustParse("trace"))
		reloaded <- err
		if err == nil {
			s.emit(d.NewStack(), phaseNames[3], 5)
		}
		finished <- struct{}{}
	}()
	if err := <-reloaded; err != nil {
		return nil, xerrors.Errorf("phase 3: %w", err)
	}

	s.emit(primary, phaseNames[4], 5)
	<-finished
	<-finished

	results := make([]result, len(phaseNames))
	for i, name := range phaseNames {
		results[i] = result{Phase: name, Events: rec.CountIn(name)}
	}
	return results, nil
}
