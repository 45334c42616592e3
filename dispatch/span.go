// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dispatch

import (
	"context"
	"fmt"
	"time"
)

// A Span is a live, named execution context on a Stack.
//
// Whether a span is enabled is decided once, when it is entered, against the
// filter generation visible at that moment. Later reloads do not change it.
type Span struct {
	id      uint64
	site    *CallSite
	parent  *Span
	enabled bool
	gen     uint64
	fields  []Field
	at      time.Time
	depth   int
}

// ID returns the dispatcher-unique id of the span.
func (s *Span) ID() uint64 { return s.id }

// Name returns the name of the span's call site.
func (s *Span) Name() string { return s.site.Name }

// Site returns the span's call site.
func (s *Span) Site() *CallSite { return s.site }

// Parent returns the enclosing span on the same stack, or nil.
func (s *Span) Parent() *Span { return s.parent }

// Enabled reports whether the span was enabled when it was entered.
func (s *Span) Enabled() bool { return s.enabled }

// Generation returns the filter generation the span was entered under.
func (s *Span) Generation() uint64 { return s.gen }

// Fields returns the fields the span was entered with.
func (s *Span) Fields() []Field { return s.fields }

// EnteredAt returns the time the span was entered.
func (s *Span) EnteredAt() time.Time { return s.at }

// Path returns the names of s and its ancestors, outermost first.
func (s *Span) Path() []string {
	if s == nil {
		return nil
	}
	path := make([]string, s.depth+1)
	for p := s; p != nil; p = p.parent {
		path[p.depth] = p.site.Name
	}
	return path
}

// A Stack is the sequence of spans entered, and not yet exited, by one
// goroutine.
//
// A Stack must only be used by the goroutine that owns it. Spans are exited
// in the reverse order they were entered; violating that order is a
// programming error and panics.
type Stack struct {
	d   *Dispatcher
	top *Span
}

// Top returns the innermost live span, or nil.
func (st *Stack) Top() *Span {
	if st == nil {
		return nil
	}
	return st.top
}

// Depth returns the number of live spans.
func (st *Stack) Depth() int {
	if st == nil || st.top == nil {
		return 0
	}
	return st.top.depth + 1
}

// Enter enters a span for site and pushes it on the stack.
// The returned Guard must be exited, typically with
//
//	defer st.Enter(site).Exit()
func (st *Stack) Enter(site *CallSite, fields ...Field) *Guard {
	return &Guard{stack: st, span: st.d.enter(st, site, fields)}
}

// A Guard exits the span it was returned for.
type Guard struct {
	stack  *Stack
	span   *Span
	exited bool
}

// Span returns the guarded span.
func (g *Guard) Span() *Span { return g.span }

// Exit pops the guarded span. It panics if the span has already been
// exited or is not the innermost live span of its stack.
func (g *Guard) Exit() {
	if g.exited {
		panic(fmt.Sprintf("dispatch: span %q (id %d) exited twice", g.span.Name(), g.span.id))
	}
	if g.stack.top != g.span {
		panic(fmt.Sprintf("dispatch: span %q (id %d) exited out of order", g.span.Name(), g.span.id))
	}
	g.exited = true
	g.stack.top = g.span.parent
	g.stack.d.exit(g.span)
}

type stackKey struct{}

// NewContext returns a context that carries st.
func NewContext(ctx context.Context, st *Stack) context.Context {
	return context.WithValue(ctx, stackKey{}, st)
}

// FromContext returns the Stack carried by ctx, or nil.
func FromContext(ctx context.Context) *Stack {
	st, _ := ctx.Value(stackKey{}).(*Stack)
	return st
}
