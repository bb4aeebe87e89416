// Copyright 2026 Esteban Alvarez. All Rights Reserved.
//
// Created: February 2026
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry exposes process-level Prometheus metrics for the
// trainer. Metrics are global only; no per-word or per-document labels, so
// cardinality stays bounded regardless of corpus size.
package telemetry

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tokensSampledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lightlda_tokens_sampled_total",
		Help: "Total tokens run through the Metropolis-Hastings sampler",
	})
	aliasBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lightlda_alias_build_seconds",
		Help:    "Wall time of the per-slice alias build phase",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
	})
	samplingSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lightlda_sampling_seconds",
		Help:    "Wall time of the per-slice sampling phase",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
	})
	flushBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lightlda_delta_flush_batches_total",
		Help: "Total aggregator flushes delivered to the parameter server",
	})
	flushRowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lightlda_delta_flush_rows_total",
		Help: "Total word rows carried across all aggregator flushes",
	})
	docLikelihood = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lightlda_doc_likelihood",
		Help: "Doc likelihood of the latest evaluation",
	})
	wordLikelihood = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lightlda_word_likelihood",
		Help: "Word likelihood of the latest evaluation",
	})
)

func init() {
	// Registration is harmless when no /metrics endpoint is exposed.
	prometheus.MustRegister(tokensSampledTotal, aliasBuildSeconds,
		samplingSeconds, flushBatchesTotal, flushRowsTotal,
		docLikelihood, wordLikelihood)
}

// AddTokensSampled counts n sampled tokens.
func AddTokensSampled(n int64) {
	if n > 0 {
		tokensSampledTotal.Add(float64(n))
	}
}

// ObserveAliasBuild records one alias build phase.
func ObserveAliasBuild(d time.Duration) { aliasBuildSeconds.Observe(d.Seconds()) }

// ObserveSampling records one sampling phase.
func ObserveSampling(d time.Duration) { samplingSeconds.Observe(d.Seconds()) }

// ObserveFlush records one aggregator flush carrying rows word rows.
func ObserveFlush(rows int) {
	flushBatchesTotal.Inc()
	flushRowsTotal.Add(float64(rows))
}

// SetDocLikelihood publishes the latest doc likelihood.
func SetDocLikelihood(v float64) { docLikelihood.Set(v) }

// SetWordLikelihood publishes the latest word likelihood.
func SetWordLikelihood(v float64) { wordLikelihood.Set(v) }

// Serve exposes /metrics on addr in a background goroutine. A listen
// failure is logged, not fatal: training does not depend on telemetry.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics endpoint failed", "addr", addr, "err", err)
		}
	}()
}
