// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/itsManjeet/eventfilter/dispatch"
	"github.com/itsManjeet/eventfilter/export/eventtest"
	"github.com/itsManjeet/eventfilter/filter"
)

func TestPhases(t *testing.T) {
	// Repeat to give an unsynchronized reload a chance to show up.
	for i := 0; i < 50; i++ {
		rec := &eventtest.Recorder{}
		d := dispatch.New(filter.MustParse("warn"), rec)
		got, err := runPhases(d, rec)
		if err != nil {
			t.Fatal(err)
		}
		want := []result{
			{phaseNames[0], 0},
			{phaseNames[1], 5},
			{phaseNames[2], 5},
			{phaseNames[3], 5},
			{phaseNames[4], 5},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("run %d mismatch (-want, +got):\n%s", i, diff)
		}
		if gen, _ := d.Current(); gen != 3 {
			t.Errorf("run %d ended at generation %d, want 3", i, gen)
		}
	}
}

func TestPhasesAfterClose(t *testing.T) {
	rec := &eventtest.Recorder{}
	d := dispatch.New(filter.MustParse("warn"), rec)
	d.Close(context.Background())
	if _, err := runPhases(d, rec); err == nil {
		t.Error("phases ran against a closed dispatcher")
	}
}
