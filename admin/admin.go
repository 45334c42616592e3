// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package admin serves an HTTP interface for inspecting and replacing the
// filter of a running Dispatcher.
//
//	GET  /filter     the active generation and filter
//	PUT  /filter     reload; the body is a directive string, or
//	                 {"filter": "..."} with Content-Type application/json
//	GET  /callsites  registered call sites and their cached interest
//	GET  /metrics    Prometheus metrics
package admin

import (
	"io/ioutil"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-metrics"
	"github.com/gorilla/mux"
	"github.com/itsManjeet/eventfilter/dispatch"
	"github.com/itsManjeet/eventfilter/filter"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

const (
	routeNameFilter    = "filter"
	routeNameCallSites = "callsites"
	routeNameMetrics   = "metrics"
)

// maxBody bounds the size of a PUT /filter body.
const maxBody = 64 << 10

var (
	namespace = metrics.NewNamespace("eventfilter", "admin", nil)

	requests = namespace.NewLabeledCounter("requests", "The number of admin requests", "route", "method")
	latency  = namespace.NewLabeledTimer("request_duration", "The latency of admin requests", "route")
)

func init() {
	metrics.Register(namespace)
}

type handler struct {
	d      *dispatch.Dispatcher
	logger *zap.Logger
	arenas fastjson.ArenaPool
	parser fastjson.ParserPool
}

// NewHandler returns the admin handler for d. Reloads and rejected reloads
// are logged to logger, which may be nil.
func NewHandler(d *dispatch.Dispatcher, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{d: d, logger: logger.With(zap.String("dispatcher", d.ID()))}

	router := mux.NewRouter()
	router.Use(countRequests)
	router.Path("/filter").Methods(http.MethodGet).HandlerFunc(h.getFilter).Name(routeNameFilter)
	router.Path("/filter").Methods(http.MethodPut).HandlerFunc(h.putFilter).Name(routeNameFilter)
	router.Path("/callsites").Methods(http.MethodGet).HandlerFunc(h.callSites).Name(routeNameCallSites)
	router.Path("/metrics").Methods(http.MethodGet).Handler(metrics.Handler()).Name(routeNameMetrics)
	return router
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := "unknown"
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}
		start := time.Now()
		next.ServeHTTP(w, r)
		requests.WithValues(name, r.Method).Inc(1)
		latency.WithValues(name).UpdateSince(start)
	})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, build func(a *fastjson.Arena) *fastjson.Value) {
	a := h.arenas.Get()
	defer h.arenas.Put(a)
	body := build(a).MarshalTo(nil)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func (h *handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, func(a *fastjson.Arena) *fastjson.Value {
		o := a.NewObject()
		o.Set("error", a.NewString(err.Error()))
		return o
	})
}

func uint64Value(a *fastjson.Arena, n uint64) *fastjson.Value {
	return a.NewNumberString(strconv.FormatUint(n, 10))
}

func (h *handler) writeState(w http.ResponseWriter, gen uint64, spec *filter.Spec) {
	h.writeJSON(w, http.StatusOK, func(a *fastjson.Arena) *fastjson.Value {
		o := a.NewObject()
		o.Set("generation", uint64Value(a, gen))
		o.Set("filter", a.NewString(spec.String()))
		o.Set("instance", a.NewString(h.d.ID()))
		return o
	})
}

func (h *handler) getFilter(w http.ResponseWriter, r *http.Request) {
	gen, spec := h.d.Current()
	h.writeState(w, gen, spec)
}

// readFilter returns the directive string carried by the request body.
func (h *handler) readFilter(w http.ResponseWriter, r *http.Request) (string, error) {
	body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		return "", xerrors.Errorf("reading body: %w", err)
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/json" {
		return strings.TrimSpace(string(body)), nil
	}
	p := h.parser.Get()
	defer h.parser.Put(p)
	v, err := p.ParseBytes(body)
	if err != nil {
		return "", xerrors.Errorf("decoding body: %w", err)
	}
	f := v.Get("filter")
	if f == nil || f.Type() != fastjson.TypeString {
		return "", xerrors.New(`body has no "filter" string`)
	}
	return string(f.GetStringBytes()), nil
}

func (h *handler) putFilter(w http.ResponseWriter, r *http.Request) {
	text, err := h.readFilter(w, r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	spec, err := filter.Parse(text)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	gen, err := h.d.Handle().Reload(spec)
	if xerrors.Is(err, dispatch.ErrClosed) {
		h.logger.Warn("admin reload after dispatcher closed", zap.String("filter", text))
		h.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if err != nil {
		h.logger.Error("admin reload failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.logger.Info("filter replaced over admin",
		zap.Uint64("generation", gen),
		zap.Stringer("filter", spec),
		zap.String("remote", r.RemoteAddr))
	h.writeState(w, gen, spec)
}

func (h *handler) callSites(w http.ResponseWriter, r *http.Request) {
	sites := h.d.Registry().Sites()
	h.writeJSON(w, http.StatusOK, func(a *fastjson.Arena) *fastjson.Value {
		arr := a.NewArray()
		for i, s := range sites {
			gen, in := s.Cached()
			o := a.NewObject()
			o.Set("name", a.NewString(s.Name))
			o.Set("target", a.NewString(s.Target))
			o.Set("level", a.NewString(s.Level.String()))
			o.Set("kind", a.NewString(s.Kind.String()))
			if s.File != "" {
				o.Set("file", a.NewString(s.File))
				o.Set("line", a.NewNumberInt(s.Line))
			}
			if in == 0 {
				o.Set("interest", a.NewNull())
			} else {
				o.Set("generation", uint64Value(a, gen))
				o.Set("interest", a.NewString(in.String()))
			}
			arr.SetArrayItem(i, o)
		}
		return arr
	})
}
