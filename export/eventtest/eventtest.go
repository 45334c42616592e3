// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package eventtest provides a Sink that records what it receives, for
// tests and demonstrations.
package eventtest

import (
	"sync"
	"time"

	"github.com/itsManjeet/eventfilter/dispatch"
	"github.com/itsManjeet/eventfilter/filter"
)

// Kinds of Record.
const (
	EventRecord = "event"
	EnterRecord = "enter"
	ExitRecord  = "exit"
)

// A Record is a copy of one delivery to a Recorder.
type Record struct {
	Kind string
	// Name is the event message or the span name.
	Name       string
	Target     string
	Level      filter.Level
	SpanID     uint64
	SpanPath   []string
	Fields     []dispatch.Field
	Generation uint64
	At         time.Time
}

// A Recorder is a dispatch.Sink that keeps a copy of everything delivered.
// It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

var _ dispatch.Sink = (*Recorder)(nil)

// Event implements dispatch.Sink.
func (r *Recorder) Event(e *dispatch.Event) {
	r.add(Record{
		Kind:       EventRecord,
		Name:       e.Message,
		Target:     e.Site.Target,
		Level:      e.Level,
		SpanID:     e.SpanID,
		SpanPath:   append([]string(nil), e.SpanPath...),
		Fields:     append([]dispatch.Field(nil), e.Fields...),
		Generation: e.Generation,
		At:         e.At,
	})
}

// SpanEnter implements dispatch.Sink.
func (r *Recorder) SpanEnter(s *dispatch.Span) { r.add(spanRecord(EnterRecord, s)) }

// SpanExit implements dispatch.Sink.
func (r *Recorder) SpanExit(s *dispatch.Span) { r.add(spanRecord(ExitRecord, s)) }

func spanRecord(kind string, s *dispatch.Span) Record {
	return Record{
		Kind:       kind,
		Name:       s.Name(),
		Target:     s.Site().Target,
		Level:      s.Site().Level,
		SpanID:     s.ID(),
		SpanPath:   s.Path(),
		Fields:     append([]dispatch.Field(nil), s.Fields()...),
		Generation: s.Generation(),
		At:         s.EnteredAt(),
	}
}

func (r *Recorder) add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Events returns the recorded events, without span transitions.
func (r *Recorder) Events() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evs []Record
	for _, rec := range r.records {
		if rec.Kind == EventRecord {
			evs = append(evs, rec)
		}
	}
	return evs
}

// Messages returns the messages of the recorded events in order.
func (r *Recorder) Messages() []string {
	var msgs []string
	for _, rec := range r.Events() {
		msgs = append(msgs, rec.Name)
	}
	return msgs
}

// CountIn returns how many recorded events had span as their innermost span.
func (r *Recorder) CountIn(span string) int {
	n := 0
	for _, rec := range r.Events() {
		if len(rec.SpanPath) > 0 && rec.SpanPath[len(rec.SpanPath)-1] == span {
			n++
		}
	}
	return n
}

// Reset discards everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}
