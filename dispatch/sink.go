// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dispatch

import (
	"context"
	"time"

	"github.com/itsManjeet/eventfilter/filter"
)

// A Field is a key value pair attached to an event or span.
type Field struct {
	Key   string
	Value interface{}
}

// F returns a Field.
func F(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// An Event is an accepted event on its way to a Sink.
// Sinks must not retain the Event or its slices after returning.
type Event struct {
	Site    *CallSite
	Level   filter.Level
	Message string
	Fields  []Field
	// SpanID is the innermost live span on the emitting stack, or zero.
	SpanID uint64
	// SpanPath holds the names of the live spans, outermost first.
	SpanPath []string
	// Generation is the filter generation the event was accepted under.
	Generation uint64
	At         time.Time
}

// A Sink receives accepted events and the transitions of enabled spans.
//
// Sink methods are called synchronously from the goroutine emitting the
// event, possibly concurrently with each other, and should return quickly.
type Sink interface {
	Event(*Event)
	SpanEnter(*Span)
	SpanExit(*Span)
}

// shutdowner is implemented by sinks holding resources released by
// Dispatcher.Close.
type shutdowner interface {
	Shutdown(context.Context) error
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Event(*Event)    {}
func (discard) SpanEnter(*Span) {}
func (discard) SpanExit(*Span)  {}

// Tee returns a Sink that delivers to each of sinks in order.
func Tee(sinks ...Sink) Sink {
	return tee(append([]Sink(nil), sinks...))
}

type tee []Sink

func (t tee) Event(e *Event) {
	for _, s := range t {
		s.Event(e)
	}
}

func (t tee) SpanEnter(s *Span) {
	for _, sk := range t {
		sk.SpanEnter(s)
	}
}

func (t tee) SpanExit(s *Span) {
	for _, sk := range t {
		sk.SpanExit(s)
	}
}

// Shutdown shuts down every sink that needs it and returns the first error.
func (t tee) Shutdown(ctx context.Context) error {
	var first error
	for _, s := range t {
		if sd, ok := s.(shutdowner); ok {
			if err := sd.Shutdown(ctx); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
