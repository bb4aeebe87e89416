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

package model

import (
	"context"
	"fmt"

	"lightlda"
	"lightlda/internal/meta"
	"lightlda/internal/ps"
	"lightlda/internal/telemetry"
)

// Cache holds the parameter-server rows of the current slice. One Cache is
// shared read-only by all workers during a slice; worker 0 reloads it at
// each slice boundary, after the previous slice's deltas were flushed.
type Cache struct {
	cfg     *lightlda.Config
	meta    *meta.Meta
	server  ps.Server
	rows    []*Int32Row
	summary *SummaryRow
	empty   *Int32Row
	loaded  []int32
}

// NewCache returns an empty cache for cfg.
func NewCache(cfg *lightlda.Config, m *meta.Meta, server ps.Server) *Cache {
	return &Cache{
		cfg:     cfg,
		meta:    m,
		server:  server,
		rows:    make([]*Int32Row, cfg.NumVocabs),
		summary: NewSummaryRow(cfg.NumTopics),
		empty:   NewSparseRow(1),
	}
}

// LoadSlice drops the previous slice's rows and pulls the rows of every
// word in the given slice, plus the summary row.
func (c *Cache) LoadSlice(ctx context.Context, block, slice int32) error {
	for _, w := range c.loaded {
		c.rows[w] = nil
	}
	c.loaded = c.loaded[:0]

	for _, w := range c.meta.Vocab(block).Slice(slice) {
		cols, err := c.server.GetRow(ctx, lightlda.WordTopicTable, w)
		if err != nil {
			return fmt.Errorf("load word row %d: %w", w, err)
		}
		row := NewWordRow(c.meta.TF(w), c.cfg.NumTopics)
		for k, v := range cols {
			if k < 0 || k >= c.cfg.NumTopics {
				return fmt.Errorf("load word row %d: topic %d out of range", w, k)
			}
			row.Add(k, int32(v))
		}
		c.rows[w] = row
		c.loaded = append(c.loaded, w)
	}

	cols, err := c.server.GetRow(ctx, lightlda.SummaryTable, 0)
	if err != nil {
		return fmt.Errorf("load summary row: %w", err)
	}
	c.summary.Reset()
	for k, v := range cols {
		if k < 0 || k >= c.cfg.NumTopics {
			return fmt.Errorf("load summary row: topic %d out of range", k)
		}
		c.summary.Add(k, v)
	}
	return nil
}

// Row returns word's cached row, or an empty row if the word is not part of
// the loaded slice.
func (c *Cache) Row(word int32) *Int32Row {
	if row := c.rows[word]; row != nil {
		return row
	}
	return c.empty
}

// Summary returns the cached per-topic totals.
func (c *Cache) Summary() *SummaryRow { return c.summary }

// NewDeltaRow sizes a word's delta row: dense once the word is frequent
// enough locally, else sparse kv storage at the load factor.
func NewDeltaRow(localTF, numTopics int32) *Int32Row {
	if localTF > numTopics/(4*lightlda.LoadFactor) {
		return NewDenseRow(numTopics)
	}
	return NewSparseRow(localTF * lightlda.LoadFactor)
}

// Aggregator buffers one worker's signed deltas between flushes. Strictly
// worker-local; the shared parameter server sees batched, coalesced rows at
// slice boundaries only, never per-sample traffic.
type Aggregator struct {
	cfg     *lightlda.Config
	meta    *meta.Meta
	server  ps.Server
	rows    map[int32]*Int32Row
	summary []int64
}

// NewAggregator returns an empty aggregator flushing to server.
func NewAggregator(cfg *lightlda.Config, m *meta.Meta, server ps.Server) *Aggregator {
	return &Aggregator{
		cfg:     cfg,
		meta:    m,
		server:  server,
		rows:    make(map[int32]*Int32Row),
		summary: make([]int64, cfg.NumTopics),
	}
}

// AddWordTopic records a relative delta for (word, topic).
func (a *Aggregator) AddWordTopic(word, topic, delta int32) {
	row := a.rows[word]
	if row == nil {
		row = NewDeltaRow(a.meta.LocalTF(word), a.cfg.NumTopics)
		a.rows[word] = row
	}
	row.Add(topic, delta)
}

// AddSummary records a relative delta for topic's total mass.
func (a *Aggregator) AddSummary(topic int32, delta int64) {
	a.summary[topic] += delta
}

// Flush pushes the coalesced deltas to the parameter server and clears the
// buffers.
func (a *Aggregator) Flush(ctx context.Context) error {
	var rows int
	for word, row := range a.rows {
		row.ForEach(func(k, v int32) {
			a.server.AddDelta(lightlda.WordTopicTable, word, k, int64(v))
		})
		rows++
		delete(a.rows, word)
	}
	for k, v := range a.summary {
		if v != 0 {
			a.server.AddDelta(lightlda.SummaryTable, 0, int32(k), v)
			a.summary[k] = 0
		}
	}
	if err := a.server.Flush(ctx); err != nil {
		return err
	}
	telemetry.ObserveFlush(rows)
	return nil
}

// PSModel is the training-time accessor of one worker: reads come from the
// shared slice cache, mutations go to the worker's own aggregator. The
// sampler tolerates the staleness this introduces within a slice.
type PSModel struct {
	cache *Cache
	agg   *Aggregator
}

// NewPSModel binds a worker's aggregator to the shared cache.
func NewPSModel(cache *Cache, agg *Aggregator) *PSModel {
	return &PSModel{cache: cache, agg: agg}
}

// WordTopicRow returns the cached row of word.
func (m *PSModel) WordTopicRow(word int32) *Int32Row { return m.cache.Row(word) }

// Summary returns the cached per-topic totals.
func (m *PSModel) Summary() *SummaryRow { return m.cache.Summary() }

// AddWordTopic buffers the delta in the worker's aggregator.
func (m *PSModel) AddWordTopic(word, topic, delta int32) {
	m.agg.AddWordTopic(word, topic, delta)
}

// AddSummary buffers the delta in the worker's aggregator.
func (m *PSModel) AddSummary(topic int32, delta int64) {
	m.agg.AddSummary(topic, delta)
}

// Flush delivers the worker's buffered deltas.
func (m *PSModel) Flush(ctx context.Context) error { return m.agg.Flush(ctx) }
