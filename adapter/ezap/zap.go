// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ezap provides a zapcore.Core that routes zap log calls through a
// Dispatcher.
//
// The logger name is the target; unnamed loggers use the target given to
// NewCore. Levels below debug are trace and levels above error are error.
package ezap

import (
	"sort"
	"sync"

	"github.com/itsManjeet/eventfilter/dispatch"
	"github.com/itsManjeet/eventfilter/filter"
	"go.uber.org/zap/zapcore"
)

type siteKey struct {
	target string
	level  filter.Level
}

type core struct {
	d      *dispatch.Dispatcher
	stack  *dispatch.Stack
	target string
	fields []zapcore.Field
	sites  *sync.Map // siteKey to *dispatch.CallSite
}

var _ zapcore.Core = (*core)(nil)

// NewCore returns a core delivering to d. A nil d means dispatch.Default(),
// resolved now. A non-nil stack must belong to the goroutine doing the
// logging.
func NewCore(d *dispatch.Dispatcher, target string, stack *dispatch.Stack) zapcore.Core {
	if d == nil {
		d = dispatch.Default()
	}
	return &core{d: d, stack: stack, target: target, sites: &sync.Map{}}
}

func level(l zapcore.Level) filter.Level {
	switch {
	case l < zapcore.DebugLevel:
		return filter.TraceLevel
	case l == zapcore.DebugLevel:
		return filter.DebugLevel
	case l == zapcore.InfoLevel:
		return filter.InfoLevel
	case l == zapcore.WarnLevel:
		return filter.WarnLevel
	}
	return filter.ErrorLevel
}

func (c *core) site(name string, l zapcore.Level) *dispatch.CallSite {
	if name == "" {
		name = c.target
	}
	k := siteKey{name, level(l)}
	if s, ok := c.sites.Load(k); ok {
		return s.(*dispatch.CallSite)
	}
	s := c.d.Register(dispatch.Metadata{Name: "zap", Target: k.target, Level: k.level})
	c.sites.Store(k, s)
	return s
}

// Enabled reports true: zap asks before it knows the logger name, so the
// filter is consulted in Check.
func (c *core) Enabled(zapcore.Level) bool { return true }

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	c2 := *c
	c2.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &c2
}

func (c *core) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.d.Enabled(c.stack, c.site(e.LoggerName, e.Level)) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *core) Write(e zapcore.Entry, fs []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fs {
		f.AddTo(enc)
	}
	if e.Stack != "" {
		enc.AddString("stack", e.Stack)
	}
	if e.Caller.Defined {
		enc.AddString("caller", e.Caller.String())
	}
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]dispatch.Field, len(keys))
	for i, k := range keys {
		fields[i] = dispatch.F(k, enc.Fields[k])
	}
	c.d.Event(c.stack, c.site(e.LoggerName, e.Level), e.Message, fields...)
	return nil
}

func (c *core) Sync() error { return nil }
