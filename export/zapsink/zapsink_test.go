// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zapsink

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/itsManjeet/eventfilter/dispatch"
	"github.com/itsManjeet/eventfilter/filter"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEvents(t *testing.T) {
	at := time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC)
	core, logs := observer.New(zapcore.DebugLevel)
	d := dispatch.New(filter.MustParse("trace"), New(zap.New(core), WithSpans()),
		dispatch.WithClock(clockz.NewFakeClockAt(at)))
	span := d.Register(dispatch.Metadata{Name: "request", Target: "app", Level: filter.InfoLevel, Kind: dispatch.SpanKind})
	warn := d.Register(dispatch.Metadata{Name: "w", Target: "app/db", Level: filter.WarnLevel})
	trace := d.Register(dispatch.Metadata{Name: "t", Target: "app", Level: filter.TraceLevel})

	st := d.NewStack()
	g := st.Enter(span, dispatch.F("user", "u1"))
	d.Event(st, warn, "slow query", dispatch.F("ms", 250))
	g.Exit()
	d.Event(st, trace, "idle")
	if err := d.Close(context.Background()); err != nil {
		t.Fatal(err)
	}

	type line struct {
		Level   zapcore.Level
		Message string
		Time    time.Time
		Context map[string]interface{}
	}
	var got []line
	for _, e := range logs.All() {
		got = append(got, line{e.Level, e.Message, e.Time, e.ContextMap()})
	}
	id := g.Span().ID()
	want := []line{
		{zapcore.InfoLevel, "enter request", at, map[string]interface{}{
			"target": "app", "span": id, "spans": []interface{}{"request"}, "user": "u1",
		}},
		{zapcore.WarnLevel, "slow query", at, map[string]interface{}{
			"target": "app/db", "span": id, "spans": []interface{}{"request"}, "ms": int64(250),
		}},
		{zapcore.DebugLevel, "idle", at, map[string]interface{}{
			"target": "app", "trace": true,
		}},
	}
	// The exit line carries zap's own timestamp.
	if len(got) != 4 || got[2].Message != "exit request" {
		t.Fatalf("got %d lines: %+v", len(got), got)
	}
	got = append(got[:2], got[3])
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}

func TestLoggerLevelStillApplies(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := dispatch.New(filter.MustParse("trace"), New(zap.New(core)))
	info := d.Register(dispatch.Metadata{Name: "i", Target: "app", Level: filter.InfoLevel})
	span := d.Register(dispatch.Metadata{Name: "s", Target: "app", Level: filter.ErrorLevel, Kind: dispatch.SpanKind})
	st := d.NewStack()
	g := st.Enter(span)
	if !d.Event(st, info, "accepted but below the logger level") {
		t.Fatal("event rejected by the filter")
	}
	g.Exit()
	if n := logs.Len(); n != 0 {
		t.Errorf("%d lines written; want none", n)
	}
}
