// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dispatch

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/itsManjeet/eventfilter/filter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/xerrors"
)

func TestPack(t *testing.T) {
	for _, test := range []struct {
		gen uint64
		in  Interest
	}{
		{0, Never}, {0, Always}, {1, Sometimes}, {1 << 40, Always},
	} {
		gen, in := unpack(pack(test.gen, test.in))
		if gen != test.gen || in != test.in {
			t.Errorf("unpack(pack(%d, %s)) = %d, %s", test.gen, test.in, gen, in)
		}
	}
	if _, in := unpack(0); in != 0 {
		t.Errorf("zero value unpacked to %s", in)
	}
}

func TestReloadIncrementsGeneration(t *testing.T) {
	d := New(filter.MustParse("warn"), nil)
	h := d.Handle()
	last, _ := d.Current()
	if last != 0 {
		t.Fatalf("initial generation %d, want 0", last)
	}
	for i := 0; i < 10; i++ {
		spec := filter.MustParse("trace")
		gen, err := h.Reload(spec)
		if err != nil {
			t.Fatal(err)
		}
		if gen != last+1 {
			t.Fatalf("reload returned generation %d after %d", gen, last)
		}
		cur, got := h.Current()
		if cur != gen || got != spec {
			t.Fatalf("Current() = %d, %v; want %d, %v", cur, got, gen, spec)
		}
		last = gen
	}
	if got := d.Stats().Reloads; got != 10 {
		t.Errorf("Stats().Reloads = %d, want 10", got)
	}
}

func TestConcurrentReloadsGetDistinctGenerations(t *testing.T) {
	const writers, each = 8, 50
	d := New(filter.MustParse("warn"), nil)
	var (
		mu   sync.Mutex
		gens []uint64
		wg   sync.WaitGroup
	)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := d.Handle()
			for i := 0; i < each; i++ {
				gen, err := h.Reload(filter.MustParse("info"))
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				gens = append(gens, gen)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	for i, gen := range gens {
		if gen != uint64(i+1) {
			t.Fatalf("generations not 1..%d: position %d holds %d", writers*each, i, gen)
		}
	}
}

func TestCurrentNeverTorn(t *testing.T) {
	const n = 500
	specs := make([]*filter.Spec, n+1)
	for i := range specs {
		specs[i] = filter.New(filter.Level(i % 6))
	}
	d := New(specs[0], nil)
	done := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for {
				select {
				case <-done:
					return
				default:
				}
				gen, spec := d.Current()
				if specs[gen] != spec {
					t.Errorf("generation %d paired with the filter of another generation", gen)
					return
				}
				if gen < last {
					t.Errorf("generation went from %d back to %d", last, gen)
					return
				}
				last = gen
			}
		}()
	}
	h := d.Handle()
	for i := 1; i <= n; i++ {
		if _, err := h.Reload(specs[i]); err != nil {
			t.Fatal(err)
		}
	}
	close(done)
	wg.Wait()
}

func TestZeroHandleIsClosed(t *testing.T) {
	var h ReloadHandle
	if _, err := h.Reload(filter.MustParse("trace")); !xerrors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}

func TestReloadAfterClose(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	d := New(filter.MustParse("warn"), nil, WithLogger(zap.New(core)))
	h := d.Handle()
	if _, err := h.Reload(filter.MustParse("info")); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Reload(filter.MustParse("trace")); !xerrors.Is(err, ErrClosed) {
		t.Fatalf("got %v, want ErrClosed", err)
	}
	if gen, spec := d.Current(); gen != 1 || spec.String() != "info" {
		t.Errorf("Current() = %d, %v; want the last accepted filter", gen, spec)
	}
	if got := logs.FilterMessage("filter reloaded").Len(); got != 1 {
		t.Errorf("%d reload messages logged, want 1", got)
	}
	if got := logs.FilterMessage("filter reload rejected").Len(); got != 1 {
		t.Errorf("%d rejection messages logged, want 1", got)
	}
	// Closing twice is harmless.
	if err := d.Close(context.Background()); err != nil {
		t.Error(err)
	}
}
