// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package filter describes which events and spans are enabled.
//
// A Spec is an immutable, ordered set of directives plus a default level.
// It answers one question: is an event at a given level for a given target
// enabled? Specs are usually produced by Parse from a human readable string
// such as "warn" or "myapp/storage=trace,warn", or by LoadConfig from a YAML
// document.
package filter

import (
	"sort"
	"strings"
)

// A Directive maps the targets starting with Target to a maximum level.
//
// An empty Target matches every target. A directive with a non-empty Span is
// dynamic: it only applies while a span of that name is live around the
// event being checked.
type Directive struct {
	Target string
	Span   string
	Level  Level
}

func (d Directive) matches(target string) bool {
	return strings.HasPrefix(target, d.Target)
}

func (d Directive) dynamic() bool { return d.Span != "" }

// String returns the directive in the syntax accepted by Parse.
func (d Directive) String() string {
	var b strings.Builder
	b.WriteString(d.Target)
	if d.dynamic() {
		b.WriteByte('[')
		b.WriteString(d.Span)
		b.WriteByte(']')
	}
	if b.Len() > 0 {
		b.WriteByte('=')
	}
	b.WriteString(strings.ToLower(d.Level.String()))
	return b.String()
}

// Interest is the cacheable part of a filtering decision for a call site.
type Interest uint8

const (
	// Never means no event from the call site is enabled.
	Never Interest = iota + 1
	// Sometimes means the decision depends on the spans live at the time of
	// the event.
	Sometimes
	// Always means every event from the call site is enabled.
	Always
)

func (i Interest) String() string {
	switch i {
	case Never:
		return "never"
	case Sometimes:
		return "sometimes"
	case Always:
		return "always"
	}
	return "unknown"
}

// A Spec is an immutable filter.
// A nil *Spec is valid and enables nothing.
type Spec struct {
	def     Level
	static  []Directive
	dynamic []Directive
}

// New returns a Spec with default level def and the given directives.
//
// Directives are ordered by specificity: longer targets are consulted first
// and, among equal targets, the directive given last wins.
func New(def Level, ds ...Directive) *Spec {
	s := &Spec{def: def}
	for _, d := range ds {
		if d.dynamic() {
			s.dynamic = append(s.dynamic, d)
		} else {
			s.static = append(s.static, d)
		}
	}
	bySpecificity(s.static)
	bySpecificity(s.dynamic)
	return s
}

func bySpecificity(ds []Directive) {
	// Reverse first so that the stable sort keeps later duplicates ahead of
	// earlier ones.
	for i, j := 0, len(ds)-1; i < j; i, j = i+1, j-1 {
		ds[i], ds[j] = ds[j], ds[i]
	}
	sort.SliceStable(ds, func(i, j int) bool {
		return len(ds[i].Target) > len(ds[j].Target)
	})
}

// Default returns the level applied when no directive matches.
func (s *Spec) Default() Level {
	if s == nil {
		return OffLevel
	}
	return s.def
}

// Directives returns a copy of the directives in evaluation order, dynamic
// directives first.
func (s *Spec) Directives() []Directive {
	if s == nil || len(s.dynamic)+len(s.static) == 0 {
		return nil
	}
	ds := make([]Directive, 0, len(s.dynamic)+len(s.static))
	ds = append(ds, s.dynamic...)
	return append(ds, s.static...)
}

// Evaluate reports whether an event at level for target is enabled outside
// of any span directive.
func (s *Spec) Evaluate(target string, level Level) bool {
	if s == nil {
		return false
	}
	for _, d := range s.static {
		if d.matches(target) {
			return d.Level.Enables(level)
		}
	}
	return s.def.Enables(level)
}

// Interest classifies a call site with the given target and level.
func (s *Spec) Interest(target string, level Level) Interest {
	if s.Evaluate(target, level) {
		return Always
	}
	if s == nil {
		return Never
	}
	for _, d := range s.dynamic {
		if d.matches(target) && d.Level.Enables(level) {
			return Sometimes
		}
	}
	return Never
}

// EvaluateIn is like Evaluate but also reports true when any dynamic
// directive matching target whose span name appears in spans enables level.
func (s *Spec) EvaluateIn(target string, level Level, spans []string) bool {
	if s.Evaluate(target, level) {
		return true
	}
	if s == nil {
		return false
	}
	for _, d := range s.dynamic {
		if d.matches(target) && contains(spans, d.Span) && d.Level.Enables(level) {
			return true
		}
	}
	return false
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// String returns the spec in the syntax accepted by Parse.
func (s *Spec) String() string {
	if s == nil {
		return "off"
	}
	// Emit each group lowest priority first so that Parse, where the last of
	// equally specific directives wins, rebuilds the same order.
	parts := make([]string, 0, 1+len(s.static)+len(s.dynamic))
	for _, ds := range [][]Directive{s.dynamic, s.static} {
		for i := len(ds) - 1; i >= 0; i-- {
			parts = append(parts, ds[i].String())
		}
	}
	return strings.Join(append(parts, strings.ToLower(s.def.String())), ",")
}
