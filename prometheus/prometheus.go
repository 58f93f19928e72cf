// Formula
// Copyright (C) 2024+ The formula project contributors
// Written by the formula project contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package prometheus provides functions that are useful to control and manage
// the metrics of the formula compiler.
package prometheus

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/projections/formula/util"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPrometheusListen is the address the metrics are served on when no
// other one is given.
const DefaultPrometheusListen = "127.0.0.1:9233"

// These are the results of a model load, as counted by the cache metric.
const (
	// CacheHit is a model that was already compiled in this process.
	CacheHit = "hit"

	// CacheReuse is a model read back from a fresh cache file.
	CacheReuse = "reuse"

	// CacheMiss is a model that had to be compiled from its artifact.
	CacheMiss = "miss"
)

// Prometheus is the struct that contains information about the
// prometheus instance. Run Init() on it.
type Prometheus struct {
	Listen string // the listen specification for the net/http server

	// Registerer is where the metrics are registered. It defaults to the
	// global prometheus registry.
	Registerer prometheus.Registerer

	// Gatherer is what Start serves. It defaults to the global prometheus
	// registry.
	Gatherer prometheus.Gatherer

	Logf func(format string, v ...interface{})

	compileTotal            *prometheus.CounterVec   // total of compilations
	compileSeconds          *prometheus.HistogramVec // time spent compiling
	cacheTotal              *prometheus.CounterVec   // total of model loads by cache result
	evalTotal               *prometheus.CounterVec   // total of evaluations
	evalElements            *prometheus.CounterVec   // total of output elements computed
	processStartTimeSeconds prometheus.Gauge         // process start time in seconds since unix epoch

	server *http.Server
}

// Init creates and registers the metrics.
func (obj *Prometheus) Init() error {
	if len(obj.Listen) == 0 {
		obj.Listen = DefaultPrometheusListen
	}
	if obj.Registerer == nil {
		obj.Registerer = prometheus.DefaultRegisterer
	}
	if obj.Gatherer == nil {
		obj.Gatherer = prometheus.DefaultGatherer
	}

	obj.compileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formula_compile_total",
			Help: "Number of models that were compiled.",
		},
		// Labels for this metric.
		// backend: interpret, aot or jit
		// errorful: did the compilation fail
		[]string{"backend", "errorful"},
	)
	obj.compileSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "formula_compile_seconds",
			Help:    "Time spent compiling a model.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
		[]string{"backend"},
	)
	obj.cacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formula_cache_total",
			Help: "Number of model loads by cache result.",
		},
		// result: hit, reuse or miss
		[]string{"result"},
	)
	obj.evalTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formula_eval_total",
			Help: "Number of model evaluations.",
		},
		[]string{"backend", "errorful"},
	)
	obj.evalElements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formula_eval_elements_total",
			Help: "Number of output elements computed.",
		},
		[]string{"backend"},
	)
	obj.processStartTimeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "formula_process_start_time_seconds",
			Help: "Start time of the process since unix epoch in seconds.",
		},
	)

	for _, c := range []prometheus.Collector{
		obj.compileTotal,
		obj.compileSeconds,
		obj.cacheTotal,
		obj.evalTotal,
		obj.evalElements,
		obj.processStartTimeSeconds,
	} {
		if err := obj.Registerer.Register(c); err != nil {
			return err
		}
	}
	// directly set the processStartTimeSeconds
	obj.processStartTimeSeconds.SetToCurrentTime()

	return nil
}

// Start runs a http server in a go routine, that responds to /metrics
// as prometheus would expect.
func (obj *Prometheus) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(obj.Gatherer, promhttp.HandlerOpts{}))
	obj.server = &http.Server{
		Addr:    obj.Listen,
		Handler: mux,
	}
	if obj.Logf != nil {
		obj.server.ErrorLog = log.New(&util.LogWriter{
			Prefix: "prometheus: ",
			Logf:   obj.Logf,
		}, "", 0)
	}
	go func() {
		err := obj.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed && obj.Logf != nil {
			obj.Logf("prometheus: server stopped: %+v", err)
		}
	}()
	return nil
}

// Stop the http server.
func (obj *Prometheus) Stop() error {
	if obj.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return obj.server.Shutdown(ctx)
}

// UpdateCompileTotal counts one compilation and how long it took.
func (obj *Prometheus) UpdateCompileTotal(backend string, errorful bool, d time.Duration) error {
	labels := prometheus.Labels{"backend": backend, "errorful": strconv.FormatBool(errorful)}
	obj.compileTotal.With(labels).Inc()
	if !errorful {
		obj.compileSeconds.With(prometheus.Labels{"backend": backend}).Observe(d.Seconds())
	}
	return nil
}

// UpdateCacheTotal counts one model load with its cache result.
func (obj *Prometheus) UpdateCacheTotal(result string) error {
	obj.cacheTotal.With(prometheus.Labels{"result": result}).Inc()
	return nil
}

// UpdateEvalTotal counts one evaluation and the elements it produced.
func (obj *Prometheus) UpdateEvalTotal(backend string, errorful bool, elements int) error {
	labels := prometheus.Labels{"backend": backend, "errorful": strconv.FormatBool(errorful)}
	obj.evalTotal.With(labels).Inc()
	obj.evalElements.With(prometheus.Labels{"backend": backend}).Add(float64(elements))
	return nil
}
