// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dispatch

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/itsManjeet/eventfilter/filter"
)

// Interest is the cached verdict of a call site.
type Interest = filter.Interest

// The interests a call site can cache.
const (
	Never     = filter.Never
	Sometimes = filter.Sometimes
	Always    = filter.Always
)

// Kind says whether a call site emits events or enters spans.
type Kind uint8

const (
	EventKind Kind = iota
	SpanKind
)

func (k Kind) String() string {
	if k == SpanKind {
		return "span"
	}
	return "event"
}

// Metadata identifies a call site.
type Metadata struct {
	Name   string
	Target string
	Level  filter.Level
	Kind   Kind
	File   string
	Line   int
}

// Here returns the Metadata for the caller's source line.
func Here(kind Kind, name, target string, level filter.Level) Metadata {
	md := Metadata{Name: name, Target: target, Level: level, Kind: kind}
	_, md.File, md.Line, _ = runtime.Caller(1)
	return md
}

// A CallSite is a registered source location that emits events or enters
// spans. It lives as long as the Registry that created it.
type CallSite struct {
	Metadata

	registry *Registry
	// interest packs generation<<2 | Interest so that both halves are read
	// and replaced together. Zero means never computed.
	interest atomic.Uint64
}

func pack(gen uint64, in Interest) uint64 { return gen<<2 | uint64(in) }

func unpack(v uint64) (uint64, Interest) { return v >> 2, Interest(v & 3) }

// Cached returns the last interest computed for the site and the generation
// it was computed against. The interest is zero if none was computed yet.
func (c *CallSite) Cached() (uint64, Interest) {
	return unpack(c.interest.Load())
}

func (c *CallSite) String() string {
	return fmt.Sprintf("%s %s %s@%s", c.Kind, c.Level, c.Name, c.Target)
}

// A Registry is an append-only arena of call sites.
type Registry struct {
	mu    sync.Mutex
	byKey map[Metadata]*CallSite
	sites []*CallSite
}

// Register returns the call site for md, creating it on first use.
// Registering equal metadata again returns the same site.
func (r *Registry) Register(md Metadata) *CallSite {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byKey[md]; ok {
		return c
	}
	if r.byKey == nil {
		r.byKey = make(map[Metadata]*CallSite)
	}
	c := &CallSite{Metadata: md, registry: r}
	r.byKey[md] = c
	r.sites = append(r.sites, c)
	return c
}

// Sites returns the registered call sites in registration order.
func (r *Registry) Sites() []*CallSite {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*CallSite(nil), r.sites...)
}

// Len returns the number of registered call sites.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sites)
}
