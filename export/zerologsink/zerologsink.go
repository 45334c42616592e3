// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zerologsink writes accepted events to a zerolog logger.
package zerologsink

import (
	"github.com/itsManjeet/eventfilter/dispatch"
	"github.com/itsManjeet/eventfilter/filter"
	"github.com/rs/zerolog"
)

// A Sink is a dispatch.Sink backed by a zerolog.Logger.
// Span transitions are not written; events carry the path of their spans.
// The logger's own level and zerolog's global level still apply.
type Sink struct {
	logger zerolog.Logger
}

var _ dispatch.Sink = (*Sink)(nil)

// New returns a Sink writing to l.
func New(l zerolog.Logger) *Sink {
	return &Sink{logger: l}
}

func zerologLevel(l filter.Level) zerolog.Level {
	switch l {
	case filter.ErrorLevel:
		return zerolog.ErrorLevel
	case filter.WarnLevel:
		return zerolog.WarnLevel
	case filter.InfoLevel:
		return zerolog.InfoLevel
	case filter.DebugLevel:
		return zerolog.DebugLevel
	case filter.TraceLevel:
		return zerolog.TraceLevel
	}
	return zerolog.NoLevel
}

// Event implements dispatch.Sink.
func (s *Sink) Event(e *dispatch.Event) {
	ev := s.logger.WithLevel(zerologLevel(e.Level))
	if ev == nil {
		return
	}
	ev = ev.Time(zerolog.TimestampFieldName, e.At).Str("target", e.Site.Target)
	if e.SpanID != 0 {
		ev = ev.Uint64("span", e.SpanID).Strs("spans", e.SpanPath)
	}
	for _, f := range e.Fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(e.Message)
}

// SpanEnter implements dispatch.Sink.
func (*Sink) SpanEnter(*dispatch.Span) {}

// SpanExit implements dispatch.Sink.
func (*Sink) SpanExit(*dispatch.Span) {}
