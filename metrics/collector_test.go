// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metrics

import (
	"fmt"
	"strings"
	"testing"

	"github.com/itsManjeet/eventfilter/dispatch"
	"github.com/itsManjeet/eventfilter/filter"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector(t *testing.T) {
	d := dispatch.New(filter.MustParse("info"), nil)
	span := d.Register(dispatch.Metadata{Name: "s", Target: "app", Level: filter.DebugLevel, Kind: dispatch.SpanKind})
	ev := d.Register(dispatch.Metadata{Name: "e", Target: "app", Level: filter.InfoLevel})
	st := d.NewStack()
	d.Event(st, ev, "one")
	st.Enter(span).Exit()
	if _, err := d.Handle().Reload(filter.MustParse("debug")); err != nil {
		t.Fatal(err)
	}
	d.Event(st, ev, "two")

	c := NewCollector(d)
	if n := testutil.CollectAndCount(c); n != 7 {
		t.Errorf("collected %d metrics, want 7", n)
	}
	expected := fmt.Sprintf(`
# HELP eventfilter_events_recorded_total The number of events delivered to the sink.
# TYPE eventfilter_events_recorded_total counter
eventfilter_events_recorded_total{dispatcher=%[1]q} 2
# HELP eventfilter_filter_generation The generation of the active filter.
# TYPE eventfilter_filter_generation gauge
eventfilter_filter_generation{dispatcher=%[1]q} 1
# HELP eventfilter_spans_disabled_total The number of spans entered disabled.
# TYPE eventfilter_spans_disabled_total counter
eventfilter_spans_disabled_total{dispatcher=%[1]q} 1
`, d.ID())
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"eventfilter_events_recorded_total", "eventfilter_filter_generation", "eventfilter_spans_disabled_total")
	if err != nil {
		t.Error(err)
	}
}
