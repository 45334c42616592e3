// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elogr is a logr.LogSink that routes log calls through a Dispatcher,
// so that logr output obeys the active filter.
//
// The logger's name, joined with "/", is used as the target. Verbosity 0 is
// info, 1 is debug and anything higher is trace. Error calls are at error
// level.
package elogr

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/itsManjeet/eventfilter/dispatch"
	"github.com/itsManjeet/eventfilter/filter"
)

type sink struct {
	d      *dispatch.Dispatcher
	stack  *dispatch.Stack
	name   string
	sep    string
	values []dispatch.Field
	sites  [filter.TraceLevel + 1]*dispatch.CallSite
}

var _ logr.LogSink = (*sink)(nil)

// An Option configures the sink.
type Option func(*sink)

// WithStack makes events be checked against, and carry, the spans live on
// st. The stack must belong to the goroutine doing the logging.
func WithStack(st *dispatch.Stack) Option { return func(s *sink) { s.stack = st } }

// WithNameSeparator sets the separator WithName uses. The default is "/".
func WithNameSeparator(sep string) Option { return func(s *sink) { s.sep = sep } }

// NewLogger returns a logr.Logger delivering to d. A nil d means
// dispatch.Default(), resolved now.
func NewLogger(d *dispatch.Dispatcher, opts ...Option) logr.Logger {
	if d == nil {
		d = dispatch.Default()
	}
	s := &sink{d: d, sep: "/"}
	for _, opt := range opts {
		opt(s)
	}
	s.register()
	return logr.New(s)
}

func (s *sink) register() {
	for l := filter.ErrorLevel; l <= filter.TraceLevel; l++ {
		s.sites[l] = s.d.Register(dispatch.Metadata{Name: "logr", Target: s.name, Level: l})
	}
}

func (s *sink) site(verbosity int) *dispatch.CallSite {
	switch {
	case verbosity <= 0:
		return s.sites[filter.InfoLevel]
	case verbosity == 1:
		return s.sites[filter.DebugLevel]
	}
	return s.sites[filter.TraceLevel]
}

// Init is a no-op.
func (s *sink) Init(logr.RuntimeInfo) {}

func (s *sink) Enabled(level int) bool {
	return s.d.Enabled(s.stack, s.site(level))
}

func (s *sink) Info(level int, msg string, keysAndValues ...interface{}) {
	s.d.Event(s.stack, s.site(level), msg, s.fields(keysAndValues)...)
}

func (s *sink) Error(err error, msg string, keysAndValues ...interface{}) {
	site := s.sites[filter.ErrorLevel]
	if !s.d.Enabled(s.stack, site) {
		return
	}
	fs := append(s.fields(keysAndValues), dispatch.F("error", err))
	s.d.Event(s.stack, site, msg, fs...)
}

func (s *sink) fields(keysAndValues []interface{}) []dispatch.Field {
	fs := make([]dispatch.Field, len(s.values), len(s.values)+(len(keysAndValues)+1)/2)
	copy(fs, s.values)
	return appendPairs(fs, keysAndValues)
}

func appendPairs(fs []dispatch.Field, keysAndValues []interface{}) []dispatch.Field {
	for i := 0; i < len(keysAndValues); i += 2 {
		var v interface{}
		if i+1 < len(keysAndValues) {
			v = keysAndValues[i+1]
		}
		k, ok := keysAndValues[i].(string)
		if !ok {
			k = fmt.Sprint(keysAndValues[i])
		}
		fs = append(fs, dispatch.F(k, v))
	}
	return fs
}

func (s *sink) WithValues(keysAndValues ...interface{}) logr.LogSink {
	s2 := *s
	s2.values = appendPairs(append([]dispatch.Field(nil), s.values...), keysAndValues)
	return &s2
}

// WithName appends name to the logger's name, which changes its target.
func (s *sink) WithName(name string) logr.LogSink {
	s2 := *s
	if s.name == "" {
		s2.name = name
	} else {
		s2.name = s.name + s.sep + name
	}
	s2.register()
	return &s2
}
