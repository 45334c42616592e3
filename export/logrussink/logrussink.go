// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logrussink writes accepted events to a logrus logger.
package logrussink

import (
	"github.com/itsManjeet/eventfilter/dispatch"
	"github.com/itsManjeet/eventfilter/filter"
	"github.com/sirupsen/logrus"
)

// A Sink is a dispatch.Sink backed by a *logrus.Logger.
type Sink struct {
	logger *logrus.Logger
}

var _ dispatch.Sink = (*Sink)(nil)

// New returns a Sink writing to l.
func New(l *logrus.Logger) *Sink {
	return &Sink{logger: l}
}

var levels = [...]logrus.Level{
	filter.ErrorLevel: logrus.ErrorLevel,
	filter.WarnLevel:  logrus.WarnLevel,
	filter.InfoLevel:  logrus.InfoLevel,
	filter.DebugLevel: logrus.DebugLevel,
	filter.TraceLevel: logrus.TraceLevel,
}

// Event implements dispatch.Sink.
func (s *Sink) Event(e *dispatch.Event) {
	if e.Level <= filter.OffLevel || int(e.Level) >= len(levels) {
		return
	}
	level := levels[e.Level]
	if !s.logger.IsLevelEnabled(level) {
		return
	}
	data := make(logrus.Fields, 3+len(e.Fields))
	data["target"] = e.Site.Target
	if e.SpanID != 0 {
		data["span"] = e.SpanID
		data["spans"] = append([]string(nil), e.SpanPath...)
	}
	for _, f := range e.Fields {
		data[f.Key] = f.Value
	}
	s.logger.WithFields(data).WithTime(e.At).Log(level, e.Message)
}

// SpanEnter implements dispatch.Sink.
func (*Sink) SpanEnter(*dispatch.Span) {}

// SpanExit implements dispatch.Sink.
func (*Sink) SpanExit(*dispatch.Span) {}
