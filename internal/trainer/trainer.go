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

// Package trainer coordinates the worker pool: per slice, every worker
// builds its share of alias rows, samples its share of documents, and
// flushes its deltas, synchronizing at three barriers. A single worker's
// failure terminates the run; a partial joint computation is meaningless.
package trainer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"lightlda"
	"lightlda/internal/alias"
	"lightlda/internal/corpus"
	"lightlda/internal/meta"
	"lightlda/internal/model"
	"lightlda/internal/sampler"
	"lightlda/internal/telemetry"
)

// evalInterval is how often (in iterations) likelihood is evaluated.
const evalInterval = 5

// flusher is the delta-delivery capability of a training model accessor.
type flusher interface {
	Flush(ctx context.Context) error
}

// shared is the cross-worker state of one engine run.
type shared struct {
	mu      sync.Mutex
	cur     *corpus.DataBlock
	err     error
	docLLH  float64
	wordLLH float64
}

func (s *shared) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *shared) failed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Engine runs the worker pool over the slice schedule.
type Engine struct {
	cfg     *lightlda.Config
	meta    *meta.Meta
	stream  corpus.DataStream
	alias   *alias.Table
	barrier *Barrier
	cache   *model.Cache // nil at inference
	shared  *shared
	workers []*worker
}

// worker is the per-goroutine state.
type worker struct {
	id      int32
	engine  *Engine
	sampler *sampler.DocSampler
	model   model.Accessor
	flush   flusher // nil at inference
	scratch alias.Scratch
}

// NewEngine assembles an engine. cache is nil for inference, in which case
// accessors must be read-only and no deltas are flushed.
func NewEngine(cfg *lightlda.Config, m *meta.Meta, stream corpus.DataStream,
	aliasTable *alias.Table, cache *model.Cache,
	accessors []model.Accessor) *Engine {

	e := &Engine{
		cfg:     cfg,
		meta:    m,
		stream:  stream,
		alias:   aliasTable,
		barrier: NewBarrier(int(cfg.NumLocalWorkers)),
		cache:   cache,
		shared:  &shared{},
	}
	for i := int32(0); i < cfg.NumLocalWorkers; i++ {
		w := &worker{
			id:      i,
			engine:  e,
			sampler: sampler.New(cfg, seedFor(cfg.Seed, i)),
			model:   accessors[i],
		}
		if f, ok := accessors[i].(flusher); ok && !cfg.Inference {
			w.flush = f
		}
		e.workers = append(e.workers, w)
	}
	return e
}

// seedFor derives a distinct deterministic seed per worker. A zero base
// keeps the RNG's wall-clock seeding.
func seedFor(base uint32, id int32) uint32 {
	if base == 0 {
		return 0
	}
	return base + uint32(id)*2654435761
}

// Run executes every iteration over every block and slice, joining all
// workers before returning the first failure.
func (e *Engine) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, w := range e.workers {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			w.run(ctx)
		}(w)
	}
	wg.Wait()
	return e.shared.failed()
}

// sync records err (if any), meets the barrier and reports whether the run
// is still healthy. Every worker passes the same barrier sequence, so a
// failure observed after a barrier is observed by all of them.
func (w *worker) sync(err error) bool {
	if err != nil {
		w.engine.shared.fail(err)
	}
	w.engine.barrier.Wait()
	return w.engine.shared.failed() == nil
}

func (w *worker) run(ctx context.Context) {
	e := w.engine
	for iter := int32(0); iter < e.cfg.NumIterations; iter++ {
		for block := int32(0); block < e.cfg.NumBlocks; block++ {
			var err error
			if w.id == 0 {
				if err = e.stream.BeforeAccess(); err == nil {
					e.shared.cur = e.stream.CurrBlock()
					e.shared.cur.SetVocab(e.meta.Vocab(block))
				}
			}
			if !w.sync(err) {
				return
			}
			vocab := e.meta.Vocab(block)
			for slice := int32(0); slice < vocab.NumSlices(); slice++ {
				if !w.trainSlice(ctx, iter, block, slice) {
					return
				}
			}
			err = nil
			if w.id == 0 {
				err = e.stream.EndAccess()
			}
			if !w.sync(err) {
				return
			}
		}
	}
}

// trainSlice runs the three-phase slice protocol. Returns false once the
// run has failed.
func (w *worker) trainSlice(ctx context.Context, iter, block, slice int32) bool {
	e := w.engine
	data := e.shared.cur
	vocab := e.meta.Vocab(block)
	lastWord := vocab.LastWord(slice)

	// Inference keeps the model static, so a single-block run builds its
	// alias rows once and reuses them. With several blocks the shared arena
	// is rebuilt per block.
	buildAlias := !e.cfg.Inference || iter == 0 || e.cfg.NumBlocks > 1

	// Phase 1: slice setup by worker 0.
	start := time.Now()
	var err error
	if w.id == 0 {
		slog.Info("slice start", "iter", iter, "block", block, "slice", slice)
		if e.cache != nil {
			err = e.cache.LoadSlice(ctx, block, slice)
		}
		if err == nil {
			e.alias.Init(e.meta.AliasIndex(block, slice))
			if buildAlias {
				err = e.alias.Build(lightlda.BetaWord, w.model, &w.scratch)
			}
		}
	}
	if !w.sync(err) {
		return false
	}

	// Phase 2: striped alias build. A degenerate sparse row is skipped with
	// a warning; the word simply cannot be proposed this slice.
	err = nil
	if buildAlias {
		words := vocab.Slice(slice)
		for j := int(w.id); j < len(words); j += int(e.cfg.NumLocalWorkers) {
			if buildErr := e.alias.Build(words[j], w.model, &w.scratch); buildErr != nil {
				if errors.Is(buildErr, alias.ErrDegenerateRow) {
					slog.Warn("skipping alias row", "word", words[j], "err", buildErr)
					continue
				}
				err = buildErr
				break
			}
		}
	}
	if w.id == 0 {
		telemetry.ObserveAliasBuild(time.Since(start))
		slog.Info("alias built", "iter", iter, "block", block, "slice", slice,
			"elapsed", time.Since(start))
	}
	if !w.sync(err) {
		return false
	}

	// Phase 3: striped document sampling, then the worker's delta flush.
	start = time.Now()
	err = nil
	var numTokens int32
	for docID := int64(w.id); docID < data.NumDocs(); docID += int64(e.cfg.NumLocalWorkers) {
		n, sampleErr := w.sampler.SampleOneDoc(data.Doc(docID), slice, lastWord, w.model, e.alias)
		numTokens += n
		if sampleErr != nil {
			err = sampleErr
			break
		}
	}
	if err == nil && w.flush != nil {
		err = w.flush.Flush(ctx)
	}
	telemetry.AddTokensSampled(int64(numTokens))
	if w.id == 0 {
		elapsed := time.Since(start)
		telemetry.ObserveSampling(elapsed)
		slog.Info("slice sampled", "iter", iter, "block", block, "slice", slice,
			"elapsed", elapsed,
			"tokens_per_sec", float64(numTokens)/elapsed.Seconds())
	}
	if !w.sync(err) {
		return false
	}

	if !e.cfg.Inference && iter%evalInterval == 0 {
		w.evaluate(block, slice)
	}
	if iter == e.cfg.NumIterations-1 {
		w.scratch.Release()
		if w.id == 0 && block == e.cfg.NumBlocks-1 && slice == vocab.NumSlices()-1 {
			e.alias.Clear()
		}
	}
	return true
}

// evaluate accumulates the doc likelihood (first slice only, so documents
// count once) and the word likelihood (first block only) across workers and
// reports both from the barrier winner.
func (w *worker) evaluate(block, slice int32) {
	e := w.engine
	data := e.shared.cur
	vocab := e.meta.Vocab(block)

	var threadDoc, threadWord float64
	if slice == 0 {
		counter := w.sampler.DocTopicCounter()
		for docID := int64(w.id); docID < data.NumDocs(); docID += int64(e.cfg.NumLocalWorkers) {
			threadDoc += ComputeOneDocLLH(data.Doc(docID), counter, e.cfg)
		}
		e.shared.mu.Lock()
		e.shared.docLLH += threadDoc
		e.shared.mu.Unlock()
		if e.barrier.Wait() {
			slog.Info("doc likelihood", "llh", e.shared.docLLH)
			telemetry.SetDocLikelihood(e.shared.docLLH)
			e.shared.docLLH = 0
		}
	}

	if block == 0 {
		words := vocab.Slice(slice)
		for j := int(w.id); j < len(words); j += int(e.cfg.NumLocalWorkers) {
			threadWord += ComputeOneWordLLH(w.model.WordTopicRow(words[j]), e.cfg)
		}
		e.shared.mu.Lock()
		e.shared.wordLLH += threadWord
		e.shared.mu.Unlock()
		if e.barrier.Wait() {
			slog.Info("word likelihood", "llh", e.shared.wordLLH,
				"normalized", NormalizeWordLLH(w.model.Summary(), e.cfg))
			telemetry.SetWordLikelihood(e.shared.wordLLH)
			e.shared.wordLLH = 0
		}
	}
	e.barrier.Wait()
}
