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

package trainer

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"lightlda"
	"lightlda/internal/alias"
	"lightlda/internal/corpus"
	"lightlda/internal/meta"
	"lightlda/internal/model"
	"lightlda/internal/ps"
	"lightlda/internal/telemetry"
)

// NewServer selects the parameter-server backend: Redis when an address is
// configured, else the in-process server.
func NewServer(cfg *lightlda.Config) ps.Server {
	if cfg.RedisAddr != "" {
		return ps.NewRedisServer(ps.NewGoRedisEvaler(cfg.RedisAddr), 0)
	}
	return ps.NewLocalServer()
}

// Train runs the full training lifecycle: plan slices, initialize topic
// assignments, sample num_iterations passes with the worker pool, then dump
// the doc-topic output and the model tables.
func Train(ctx context.Context, cfg *lightlda.Config) error {
	m := meta.New(cfg)
	if err := m.Init(); err != nil {
		return err
	}
	stream, err := corpus.NewDataStream(cfg)
	if err != nil {
		return err
	}
	telemetry.Serve(cfg.MetricsAddr)

	server := NewServer(cfg)
	if err := initializeTopics(ctx, cfg, stream, m, server); err != nil {
		return err
	}

	aliasTable := alias.NewTable(cfg)
	cache := model.NewCache(cfg, m, server)
	accessors := make([]model.Accessor, cfg.NumLocalWorkers)
	for i := range accessors {
		accessors[i] = model.NewPSModel(cache, model.NewAggregator(cfg, m, server))
	}
	engine := NewEngine(cfg, m, stream, aliasTable, cache, accessors)
	if err := engine.Run(ctx); err != nil {
		return err
	}

	if err := dumpDocTopic(cfg, stream, m); err != nil {
		return err
	}
	if err := dumpModel(ctx, cfg, m, server); err != nil {
		return err
	}
	if err := stream.Close(); err != nil {
		return err
	}
	return server.Close(ctx)
}

// Infer runs the inference lifecycle against a read-only model loaded from
// the input directory.
func Infer(ctx context.Context, cfg *lightlda.Config) error {
	cfg.Inference = true
	m := meta.New(cfg)
	if err := m.Init(); err != nil {
		return err
	}
	localModel := model.NewLocalModel(cfg, m)
	if err := localModel.Init(); err != nil {
		return err
	}
	stream, err := corpus.NewDataStream(cfg)
	if err != nil {
		return err
	}
	telemetry.Serve(cfg.MetricsAddr)

	if err := initializeTopics(ctx, cfg, stream, m, nil); err != nil {
		return err
	}

	// The alias table sizes its arena from the capacity the inference
	// planner just derived, so it must come after meta init.
	aliasTable := alias.NewTable(cfg)
	accessors := make([]model.Accessor, cfg.NumLocalWorkers)
	for i := range accessors {
		accessors[i] = localModel
	}
	engine := NewEngine(cfg, m, stream, aliasTable, nil, accessors)
	if err := engine.Run(ctx); err != nil {
		return err
	}

	if err := dumpDocTopic(cfg, stream, m); err != nil {
		return err
	}
	return stream.Close()
}

// initializeTopics walks every block once, randomizing topic assignments
// unless warm-starting, and (in training) seeds the parameter server with
// the initial counts, flushed per slice.
func initializeTopics(ctx context.Context, cfg *lightlda.Config,
	stream corpus.DataStream, m *meta.Meta, server ps.Server) error {

	rng := lightlda.NewRNG(cfg.Seed)
	for block := int32(0); block < cfg.NumBlocks; block++ {
		if err := stream.BeforeAccess(); err != nil {
			return err
		}
		data := stream.CurrBlock()
		data.SetVocab(m.Vocab(block))
		vocab := m.Vocab(block)
		for slice := int32(0); slice < vocab.NumSlices(); slice++ {
			lastWord := vocab.LastWord(slice)
			for i := int64(0); i < data.NumDocs(); i++ {
				doc := data.Doc(i)
				cursor := doc.Cursor()
				if slice == 0 {
					cursor = 0
				}
				for ; cursor < doc.Size(); cursor++ {
					if doc.Word(cursor) > lastWord {
						break
					}
					if !cfg.WarmStart {
						doc.SetTopic(cursor, rng.RandK(cfg.NumTopics))
					}
					if server != nil {
						server.AddDelta(lightlda.WordTopicTable, doc.Word(cursor), doc.Topic(cursor), 1)
						server.AddDelta(lightlda.SummaryTable, 0, doc.Topic(cursor), 1)
					}
				}
				doc.SetCursor(cursor)
			}
			if server != nil {
				if err := server.Flush(ctx); err != nil {
					return err
				}
			}
		}
		if err := stream.EndAccess(); err != nil {
			return err
		}
	}
	return nil
}

// dumpDocTopic writes doc_topic.<block> files: one line per document with
// its sparse topic histogram.
func dumpDocTopic(cfg *lightlda.Config, stream corpus.DataStream, m *meta.Meta) error {
	counter := model.NewSparseRow(lightlda.MaxDocLength)
	for block := int32(0); block < cfg.NumBlocks; block++ {
		if err := stream.BeforeAccess(); err != nil {
			return err
		}
		data := stream.CurrBlock()
		data.SetVocab(m.Vocab(block))
		path := filepath.Join(cfg.InputDir, fmt.Sprintf("doc_topic.%d", block))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("dump doc topics: %w", err)
		}
		w := bufio.NewWriter(f)
		for i := int64(0); i < data.NumDocs(); i++ {
			counter.Clear()
			data.Doc(i).CountTopics(counter)
			fmt.Fprintf(w, "%d ", i)
			counter.ForEach(func(k, v int32) {
				fmt.Fprintf(w, " %d:%d", k, v)
			})
			fmt.Fprintln(w)
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return fmt.Errorf("dump doc topics %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("dump doc topics %s: %w", path, err)
		}
		if err := stream.EndAccess(); err != nil {
			return err
		}
	}
	return nil
}

// sortedCols returns the column ids of a row in ascending order, for
// stable model dumps.
func sortedCols(cols map[int32]int64) []int32 {
	keys := make([]int32, 0, len(cols))
	for k := range cols {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// dumpModel writes the trained tables in the server model format, so a
// later inference run can load them from the same directory.
func dumpModel(ctx context.Context, cfg *lightlda.Config, m *meta.Meta, server ps.Server) error {
	wordPath := filepath.Join(cfg.InputDir,
		fmt.Sprintf("server_0_table_%d.model", lightlda.WordTopicTable))
	f, err := os.Create(wordPath)
	if err != nil {
		return fmt.Errorf("dump model: %w", err)
	}
	w := bufio.NewWriter(f)
	for word := int32(0); word < cfg.NumVocabs; word++ {
		if m.TF(word) == 0 {
			continue
		}
		cols, err := server.GetRow(ctx, lightlda.WordTopicTable, word)
		if err != nil {
			f.Close()
			return err
		}
		fmt.Fprintf(w, "%d", word)
		for _, k := range sortedCols(cols) {
			if v := cols[k]; v != 0 {
				fmt.Fprintf(w, " %d:%d", k, v)
			}
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("dump model %s: %w", wordPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("dump model %s: %w", wordPath, err)
	}

	summaryPath := filepath.Join(cfg.InputDir,
		fmt.Sprintf("server_0_table_%d.model", lightlda.SummaryTable))
	cols, err := server.GetRow(ctx, lightlda.SummaryTable, 0)
	if err != nil {
		return err
	}
	f, err = os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("dump model: %w", err)
	}
	w = bufio.NewWriter(f)
	fmt.Fprintf(w, "%d", 0)
	for k := int32(0); k < cfg.NumTopics; k++ {
		if v := cols[k]; v != 0 {
			fmt.Fprintf(w, " %d:%d", k, v)
		}
	}
	fmt.Fprintln(w)
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("dump model %s: %w", summaryPath, err)
	}
	return f.Close()
}
