// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dispatch decides, per call site and per live span, whether events
// are recorded, and lets the filter making that decision be replaced while
// other goroutines keep emitting.
//
// Call sites cache their verdict together with the filter generation it was
// computed against. A reload publishes a new generation; every later check
// of a call site notices the mismatch and recomputes. Nothing walks live
// stacks at reload time, so propagation is lazy:
//
//   - a goroutine always sees its own reloads;
//   - a goroutine that synchronizes with a reloader after Reload returns
//     (a channel receive, a mutex, a WaitGroup) sees at least that
//     generation;
//   - any other goroutine sees it eventually.
//
// Spans decide whether they are enabled once, when entered. An event is
// recorded when its call site is enabled and the innermost live span on its
// stack, if any, is enabled.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/itsManjeet/eventfilter/filter"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// A Dispatcher is the single entry point call sites use to ask whether they
// are enabled and to record what they emit.
// It is safe for concurrent use.
type Dispatcher struct {
	id       string
	active   *activeFilter
	registry Registry
	sink     Sink
	logger   *zap.Logger
	clock    clockz.Clock

	lastSpan      atomic.Uint64
	recorded      atomic.Uint64
	misses        atomic.Uint64
	spansEntered  atomic.Uint64
	spansDisabled atomic.Uint64
}

// An Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for the dispatcher's own operational messages.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithClock sets the clock used to timestamp events and spans.
func WithClock(c clockz.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// New returns a Dispatcher whose generation 0 filter is spec and which
// delivers to sink. A nil sink discards.
func New(spec *filter.Spec, sink Sink, opts ...Option) *Dispatcher {
	if sink == nil {
		sink = Discard
	}
	d := &Dispatcher{
		id:     uuid.NewString(),
		active: newActiveFilter(spec),
		sink:   sink,
		logger: zap.NewNop(),
		clock:  clockz.RealClock,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(zap.String("dispatcher", d.id))
	return d
}

// ID returns a random identifier of this dispatcher instance.
func (d *Dispatcher) ID() string { return d.id }

// Register returns the call site for md, creating it on first use.
func (d *Dispatcher) Register(md Metadata) *CallSite { return d.registry.Register(md) }

// Registry returns the dispatcher's call sites.
func (d *Dispatcher) Registry() *Registry { return &d.registry }

// Handle returns a handle that reloads this dispatcher's filter.
func (d *Dispatcher) Handle() ReloadHandle {
	return ReloadHandle{active: d.active, logger: d.logger}
}

// Current returns the active generation and filter as one consistent pair.
func (d *Dispatcher) Current() (uint64, *filter.Spec) {
	st := d.active.load()
	return st.gen, st.spec
}

// NewStack returns an empty span stack for use by a single goroutine.
func (d *Dispatcher) NewStack() *Stack { return &Stack{d: d} }

// interest returns the interest of site under st, recomputing and caching it
// if the cached value belongs to another generation.
func (d *Dispatcher) interest(site *CallSite, st *state) Interest {
	if site.registry != &d.registry {
		panic(fmt.Sprintf("dispatch: call site %v used with a dispatcher it was not registered with", site))
	}
	old := site.interest.Load()
	if gen, in := unpack(old); in != 0 && gen == st.gen {
		return in
	}
	in := st.spec.Interest(site.Target, site.Level)
	// Losing the race to another goroutine is fine: whichever value stays,
	// the next check compares its generation with the active one.
	site.interest.CompareAndSwap(old, pack(st.gen, in))
	d.misses.Add(1)
	return in
}

// Check reports whether site is enabled under the active filter, ignoring
// spans.
func (d *Dispatcher) Check(site *CallSite) bool {
	return d.interest(site, d.active.load()) != Never
}

func (d *Dispatcher) accepts(st *state, stack *Stack, site *CallSite) bool {
	in := d.interest(site, st)
	if in == Never {
		return false
	}
	top := stack.Top()
	if top != nil && !top.enabled {
		return false
	}
	if in == Sometimes {
		return st.spec.EvaluateIn(site.Target, site.Level, top.Path())
	}
	return true
}

// Enabled reports whether an event from site emitted on stack would be
// recorded. Callers can use it to skip building expensive fields.
// A nil stack has no live spans.
func (d *Dispatcher) Enabled(stack *Stack, site *CallSite) bool {
	return d.accepts(d.active.load(), stack, site)
}

var eventPool = sync.Pool{New: func() interface{} { return &Event{} }}

// Event records an event from site with the given message and fields if it
// is enabled, and reports whether it was. A nil stack has no live spans.
func (d *Dispatcher) Event(stack *Stack, site *CallSite, msg string, fields ...Field) bool {
	st := d.active.load()
	if !d.accepts(st, stack, site) {
		return false
	}
	e := eventPool.Get().(*Event)
	*e = Event{
		Site:       site,
		Level:      site.Level,
		Message:    msg,
		Fields:     fields,
		Generation: st.gen,
		At:         d.clock.Now(),
	}
	if top := stack.Top(); top != nil {
		e.SpanID = top.id
		e.SpanPath = top.Path()
	}
	d.sink.Event(e)
	*e = Event{}
	eventPool.Put(e)
	d.recorded.Add(1)
	return true
}

func (d *Dispatcher) enter(stack *Stack, site *CallSite, fields []Field) *Span {
	st := d.active.load()
	parent := stack.top
	in := d.interest(site, st)
	s := &Span{
		id:     d.lastSpan.Add(1),
		site:   site,
		parent: parent,
		gen:    st.gen,
		at:     d.clock.Now(),
	}
	if parent != nil {
		s.depth = parent.depth + 1
	}
	s.enabled = in != Never && (parent == nil || parent.enabled)
	if s.enabled && in == Sometimes {
		s.enabled = st.spec.EvaluateIn(site.Target, site.Level, s.Path())
	}
	stack.top = s
	d.spansEntered.Add(1)
	if !s.enabled {
		d.spansDisabled.Add(1)
		return s
	}
	s.fields = append([]Field(nil), fields...)
	d.sink.SpanEnter(s)
	return s
}

func (d *Dispatcher) exit(s *Span) {
	if s.enabled {
		d.sink.SpanExit(s)
	}
}

// Stats is a snapshot of a dispatcher's counters.
type Stats struct {
	Generation    uint64
	Reloads       uint64
	CallSites     int
	Recorded      uint64
	CacheMisses   uint64
	SpansEntered  uint64
	SpansDisabled uint64
}

// Stats returns a snapshot of the dispatcher's counters.
// The counters are read independently and need not be mutually consistent.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Generation:    d.active.load().gen,
		Reloads:       d.active.reloads.Load(),
		CallSites:     d.registry.Len(),
		Recorded:      d.recorded.Load(),
		CacheMisses:   d.misses.Load(),
		SpansEntered:  d.spansEntered.Load(),
		SpansDisabled: d.spansDisabled.Load(),
	}
}

// Close rejects further reloads and shuts down the sink if it holds
// resources. Filtering keeps working with the last active filter.
func (d *Dispatcher) Close(ctx context.Context) error {
	if !d.active.close() {
		return nil
	}
	d.logger.Debug("dispatcher closed")
	if sd, ok := d.sink.(shutdowner); ok {
		return sd.Shutdown(ctx)
	}
	return nil
}

var defaultDispatcher atomic.Pointer[Dispatcher]

// Default returns the default Dispatcher. Unless SetDefault was called it
// enables nothing and discards.
func Default() *Dispatcher {
	if d := defaultDispatcher.Load(); d != nil {
		return d
	}
	defaultDispatcher.CompareAndSwap(nil, New(nil, Discard))
	return defaultDispatcher.Load()
}

// SetDefault makes d the default Dispatcher.
func SetDefault(d *Dispatcher) {
	defaultDispatcher.Store(d)
}
