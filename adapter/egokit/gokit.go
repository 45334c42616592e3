// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package egokit provides a go-kit logger that routes through a Dispatcher.
//
// The level of a log call is read from its "level" key, as set by
// github.com/go-kit/kit/log/level, and the message from its "msg" or
// "message" key. All other pairs become fields.
package egokit

import (
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/itsManjeet/eventfilter/dispatch"
	"github.com/itsManjeet/eventfilter/filter"
)

type logger struct {
	d     *dispatch.Dispatcher
	stack *dispatch.Stack
	def   filter.Level
	sites [filter.TraceLevel + 1]*dispatch.CallSite
}

// An Option configures the logger.
type Option func(*logger)

// WithStack makes events be checked against, and carry, the spans live on
// st. The stack must belong to the goroutine doing the logging.
func WithStack(st *dispatch.Stack) Option { return func(l *logger) { l.stack = st } }

// WithDefaultLevel sets the level of calls without a recognized "level"
// value. The default is info.
func WithDefaultLevel(lv filter.Level) Option { return func(l *logger) { l.def = lv } }

// NewLogger returns a go-kit logger whose events have the given target.
// A nil d means dispatch.Default(), resolved now.
func NewLogger(d *dispatch.Dispatcher, target string, opts ...Option) log.Logger {
	if d == nil {
		d = dispatch.Default()
	}
	l := &logger{d: d, def: filter.InfoLevel}
	for _, opt := range opts {
		opt(l)
	}
	for lv := filter.ErrorLevel; lv <= filter.TraceLevel; lv++ {
		l.sites[lv] = d.Register(dispatch.Metadata{Name: "gokit", Target: target, Level: lv})
	}
	return l
}

func keyString(k interface{}) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

func (l *logger) Log(keyvals ...interface{}) error {
	lv := l.def
	for i := 0; i+1 < len(keyvals); i += 2 {
		if keyString(keyvals[i]) != "level" {
			continue
		}
		if parsed, err := filter.ParseLevel(fmt.Sprint(keyvals[i+1])); err == nil && parsed != filter.OffLevel {
			lv = parsed
		}
	}
	if lv <= filter.OffLevel || lv > filter.TraceLevel {
		return nil
	}
	site := l.sites[lv]
	if !l.d.Enabled(l.stack, site) {
		return nil
	}

	var msg string
	fields := make([]dispatch.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := keyString(keyvals[i])
		var value interface{} = log.ErrMissingValue
		if i+1 < len(keyvals) {
			value = keyvals[i+1]
		}
		switch key {
		case "msg", "message":
			msg = fmt.Sprint(value)
		case "level":
		default:
			fields = append(fields, dispatch.F(key, value))
		}
	}
	l.d.Event(l.stack, site, msg, fields...)
	return nil
}
