// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zapsink writes accepted events and span transitions to a zap
// logger.
//
// zap has no trace level; trace events are written at debug level with a
// "trace" field set to true.
package zapsink

import (
	"context"

	"github.com/itsManjeet/eventfilter/dispatch"
	"github.com/itsManjeet/eventfilter/filter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// A Sink is a dispatch.Sink backed by a *zap.Logger.
type Sink struct {
	logger *zap.Logger
	spans  bool
}

var _ dispatch.Sink = (*Sink)(nil)

// An Option configures a Sink.
type Option func(*Sink)

// WithSpans makes the sink also write a line for every enabled span entered
// and exited.
func WithSpans() Option { return func(s *Sink) { s.spans = true } }

// New returns a Sink writing to l.
func New(l *zap.Logger, opts ...Option) *Sink {
	s := &Sink{logger: l}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func zapLevel(l filter.Level) zapcore.Level {
	switch l {
	case filter.ErrorLevel:
		return zapcore.ErrorLevel
	case filter.WarnLevel:
		return zapcore.WarnLevel
	case filter.InfoLevel:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

func common(fs []zap.Field, level filter.Level, target string) []zap.Field {
	fs = append(fs, zap.String("target", target))
	if level == filter.TraceLevel {
		fs = append(fs, zap.Bool("trace", true))
	}
	return fs
}

func userFields(fs []zap.Field, fields []dispatch.Field) []zap.Field {
	for _, f := range fields {
		fs = append(fs, zap.Any(f.Key, f.Value))
	}
	return fs
}

// Event implements dispatch.Sink.
func (s *Sink) Event(e *dispatch.Event) {
	ce := s.logger.Check(zapLevel(e.Level), e.Message)
	if ce == nil {
		return
	}
	ce.Time = e.At
	fs := make([]zap.Field, 0, 4+len(e.Fields))
	fs = common(fs, e.Level, e.Site.Target)
	if e.SpanID != 0 {
		fs = append(fs, zap.Uint64("span", e.SpanID), zap.Strings("spans", e.SpanPath))
	}
	ce.Write(userFields(fs, e.Fields)...)
}

// SpanEnter implements dispatch.Sink.
func (s *Sink) SpanEnter(sp *dispatch.Span) { s.span("enter", sp) }

// SpanExit implements dispatch.Sink.
func (s *Sink) SpanExit(sp *dispatch.Span) { s.span("exit", sp) }

func (s *Sink) span(msg string, sp *dispatch.Span) {
	if !s.spans {
		return
	}
	site := sp.Site()
	ce := s.logger.Check(zapLevel(site.Level), msg+" "+sp.Name())
	if ce == nil {
		return
	}
	if msg == "enter" {
		ce.Time = sp.EnteredAt()
	}
	fs := make([]zap.Field, 0, 4+len(sp.Fields()))
	fs = common(fs, site.Level, site.Target)
	fs = append(fs, zap.Uint64("span", sp.ID()), zap.Strings("spans", sp.Path()))
	ce.Write(userFields(fs, sp.Fields())...)
}

// Shutdown flushes the logger.
func (s *Sink) Shutdown(context.Context) error {
	return s.logger.Sync()
}
