// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Reloaddemo replays a filter reload scenario across goroutines and reports
// how many events each phase delivered.
//
// Usage:
//
//	reloaddemo [--filter spec] [--sink zap|zerolog|logrus] [--otlp-endpoint host:port]
//	           [--admin addr] [--config file.yaml]
//
// The filter defaults to $EVENTFILTER, or warn when that is unset. With
// --admin or --config the program keeps running after the phases, serving
// the admin endpoint and reloading from the config file, until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/itsManjeet/eventfilter/admin"
	"github.com/itsManjeet/eventfilter/dispatch"
	"github.com/itsManjeet/eventfilter/export/eventtest"
	"github.com/itsManjeet/eventfilter/export/logrussink"
	"github.com/itsManjeet/eventfilter/export/otelsink"
	"github.com/itsManjeet/eventfilter/export/zapsink"
	"github.com/itsManjeet/eventfilter/export/zerologsink"
	"github.com/itsManjeet/eventfilter/filter"
	"github.com/itsManjeet/eventfilter/metrics"
	"github.com/itsManjeet/eventfilter/watch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

var (
	filterFlag   string
	sinkFlag     string
	otlpEndpoint string
	adminAddr    string
	configPath   string
)

func init() {
	def := os.Getenv("EVENTFILTER")
	if def == "" {
		def = "warn"
	}
	RootCmd.Flags().StringVar(&filterFlag, "filter", def, "initial filter directives (default $EVENTFILTER or warn)")
	RootCmd.Flags().StringVar(&sinkFlag, "sink", "zap", "where accepted events are written: zap, zerolog or logrus")
	RootCmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "also export enabled spans over OTLP/gRPC to this endpoint")
	RootCmd.Flags().StringVar(&adminAddr, "admin", "", "serve the admin endpoint on this address after the phases")
	RootCmd.Flags().StringVar(&configPath, "config", "", "reload the filter from this YAML file whenever it changes")
}

// RootCmd is the reloaddemo command.
var RootCmd = &cobra.Command{
	Use:          "reloaddemo",
	Short:        "`reloaddemo` replays a filter reload scenario across goroutines",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := RootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newSink(name string) (dispatch.Sink, error) {
	switch name {
	case "zap":
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		return zapsink.New(l, zapsink.WithSpans()), nil
	case "zerolog":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
		return zerologsink.New(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})), nil
	case "logrus":
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetLevel(logrus.TraceLevel)
		return logrussink.New(l), nil
	}
	return nil, xerrors.Errorf("unknown sink %q", name)
}

func run(ctx context.Context) error {
	ops, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	ops = ops.Named("eventfilter")
	defer ops.Sync()

	spec, err := filter.Parse(filterFlag)
	if err != nil {
		return err
	}
	out, err := newSink(sinkFlag)
	if err != nil {
		return err
	}
	rec := &eventtest.Recorder{}
	sinks := []dispatch.Sink{rec, out}
	if otlpEndpoint != "" {
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(otlpEndpoint), otlptracegrpc.WithInsecure())
		if err != nil {
			return xerrors.Errorf("creating OTLP exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithSampler(sdktrace.AlwaysSample()))
		sinks = append(sinks, otelsink.NewWithProvider(tp, "reloaddemo"))
	}

	d := dispatch.New(spec, dispatch.Tee(sinks...), dispatch.WithLogger(ops))
	dispatch.SetDefault(d)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.Close(sctx); err != nil {
			ops.Warn("closing dispatcher", zap.Error(err))
		}
	}()

	results, err := runPhases(d, rec)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tEVENTS")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d\n", r.Phase, r.Events)
	}
	tw.Flush()

	if adminAddr == "" && configPath == "" {
		return nil
	}
	rec.Reset()
	return serve(ctx, d, ops)
}

// serve runs the admin endpoint and the config watcher until ctx is done,
// emitting a heartbeat at every level so that reloads can be observed.
func serve(ctx context.Context, d *dispatch.Dispatcher, ops *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	if configPath != "" {
		if gen, err := watch.ReloadFile(d.Handle(), configPath); err != nil {
			ops.Warn("initial config not applied", zap.Error(err))
		} else {
			ops.Info("initial config applied", zap.Uint64("generation", gen))
		}
		w := watch.New(configPath, d.Handle(), ops)
		g.Go(func() error { return w.Run(ctx) })
	}
	if adminAddr != "" {
		prometheus.MustRegister(metrics.NewCollector(d))
		srv := &http.Server{Addr: adminAddr, Handler: admin.NewHandler(d, ops)}
		g.Go(func() error {
			ops.Info("serving admin", zap.String("addr", adminAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	g.Go(func() error {
		s := newSites(d)
		st := d.NewStack()
		tick := time.NewTicker(2 * time.Second)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-tick.C:
				s.emit(st, "heartbeat", len(s.events))
			}
		}
	})
	return g.Wait()
}
