// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package otelsink turns enabled spans into OpenTelemetry spans and accepted
// events into span events.
//
// Events emitted outside of any span have no OpenTelemetry span to attach to
// and are dropped.
package otelsink

import (
	"context"
	"fmt"
	"sync"

	"github.com/itsManjeet/eventfilter/dispatch"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/xerrors"
)

// A Sink is a dispatch.Sink that forwards to an OpenTelemetry tracer.
// It is safe for concurrent use.
type Sink struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider

	mu    sync.Mutex
	spans map[uint64]live // by dispatch span id
}

type live struct {
	ctx  context.Context
	span trace.Span
}

var _ dispatch.Sink = (*Sink)(nil)

// New returns a Sink that starts spans with t.
func New(t trace.Tracer) *Sink {
	return &Sink{tracer: t, spans: map[uint64]live{}}
}

// NewWithProvider returns a Sink using a tracer from tp. Shutting down the
// sink shuts down tp, flushing its exporters.
func NewWithProvider(tp *sdktrace.TracerProvider, name string) *Sink {
	s := New(tp.Tracer(name))
	s.provider = tp
	return s
}

func fieldAttr(k string, v interface{}) attribute.KeyValue {
	switch v := v.(type) {
	case string:
		return attribute.String(k, v)
	case bool:
		return attribute.Bool(k, v)
	case int:
		return attribute.Int(k, v)
	case int8:
		return attribute.Int64(k, int64(v))
	case int16:
		return attribute.Int64(k, int64(v))
	case int32:
		return attribute.Int64(k, int64(v))
	case int64:
		return attribute.Int64(k, v)
	case uint8:
		return attribute.Int64(k, int64(v))
	case uint16:
		return attribute.Int64(k, int64(v))
	case uint32:
		return attribute.Int64(k, int64(v))
	case float32:
		return attribute.Float64(k, float64(v))
	case float64:
		return attribute.Float64(k, v)
	case []string:
		return attribute.StringSlice(k, v)
	case error:
		return attribute.String(k, v.Error())
	case fmt.Stringer:
		return attribute.Stringer(k, v)
	}
	return attribute.String(k, fmt.Sprint(v))
}

func attrs(target string, fields []dispatch.Field, extra ...attribute.KeyValue) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, 1+len(extra)+len(fields))
	kvs = append(kvs, attribute.String("target", target))
	kvs = append(kvs, extra...)
	for _, f := range fields {
		kvs = append(kvs, fieldAttr(f.Key, f.Value))
	}
	return kvs
}

// SpanEnter implements dispatch.Sink.
func (s *Sink) SpanEnter(sp *dispatch.Span) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// An enabled span only has enabled ancestors, so its parent, if any, is
	// already live here.
	ctx := context.Background()
	if p := sp.Parent(); p != nil {
		if l, ok := s.spans[p.ID()]; ok {
			ctx = l.ctx
		}
	}
	ctx, span := s.tracer.Start(ctx, sp.Name(),
		trace.WithTimestamp(sp.EnteredAt()),
		trace.WithAttributes(attrs(sp.Site().Target, sp.Fields())...))
	s.spans[sp.ID()] = live{ctx, span}
}

// SpanExit implements dispatch.Sink.
func (s *Sink) SpanExit(sp *dispatch.Span) {
	s.mu.Lock()
	l, ok := s.spans[sp.ID()]
	delete(s.spans, sp.ID())
	s.mu.Unlock()
	if ok {
		l.span.End()
	}
}

// Event implements dispatch.Sink.
func (s *Sink) Event(e *dispatch.Event) {
	if e.SpanID == 0 {
		return
	}
	s.mu.Lock()
	l, ok := s.spans[e.SpanID]
	s.mu.Unlock()
	if !ok {
		return
	}
	l.span.AddEvent(e.Message,
		trace.WithTimestamp(e.At),
		trace.WithAttributes(attrs(e.Site.Target, e.Fields, attribute.String("level", e.Level.String()))...))
}

// Shutdown ends any spans still live and shuts down the provider passed to
// NewWithProvider.
func (s *Sink) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for id, l := range s.spans {
		l.span.End()
		delete(s.spans, id)
	}
	s.mu.Unlock()
	if s.provider == nil {
		return nil
	}
	if err := s.provider.Shutdown(ctx); err != nil {
		return xerrors.Errorf("shutting down tracer provider: %w", err)
	}
	return nil
}
