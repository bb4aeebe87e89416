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

// Command lightlda-infer assigns topics to a block corpus using a trained,
// read-only model. The input directory must hold the block.<i> / vocab.<i>
// files plus the server_<n>_table_{0,1}.model dumps of a training run.
// Deltas are never emitted; the model stays fixed while document topic
// assignments converge.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"lightlda"
	"lightlda/internal/trainer"
)

func main() {
	cfg := lightlda.DefaultConfig()
	_ = godotenv.Load()
	if err := cfg.LoadEnv(); err != nil {
		slog.Error("cannot parse environment", "err", err)
		os.Exit(1)
	}

	numVocabs := flag.Int("num_vocabs", int(cfg.NumVocabs), "Size of the vocabulary (V)")
	numTopics := flag.Int("num_topics", int(cfg.NumTopics), "Number of topics (K)")
	numIterations := flag.Int("num_iterations", int(cfg.NumIterations), "Number of inference passes")
	mhSteps := flag.Int("mh_steps", int(cfg.MHSteps), "Metropolis-Hastings cycles per token")
	numWorkers := flag.Int("num_local_workers", int(cfg.NumLocalWorkers), "Number of sampling workers")
	numBlocks := flag.Int("num_blocks", int(cfg.NumBlocks), "Number of data blocks")
	maxDocs := flag.Int64("max_num_document", cfg.MaxNumDocument, "Per-block document cap")
	alpha := flag.Float64("alpha", float64(cfg.Alpha), "Symmetric Dirichlet prior on doc-topic")
	beta := flag.Float64("beta", float64(cfg.Beta), "Symmetric Dirichlet prior on word-topic")
	inputDir := flag.String("input_dir", cfg.InputDir, "Directory with blocks, vocabs and model files")
	warmStart := flag.Bool("warm_start", cfg.WarmStart, "Preserve topic assignments loaded from blocks")
	outOfCore := flag.Bool("out_of_core", cfg.OutOfCore, "Stream blocks from disk through a double buffer")
	dataCap := flag.Int64("data_capacity", cfg.DataCapacity, "Block arena budget in bytes")
	modelCap := flag.Int64("model_capacity", cfg.ModelCapacity, "Model row budget in bytes")
	metricsAddr := flag.String("metrics_addr", cfg.MetricsAddr, "Prometheus /metrics address (empty = disabled)")
	logLevel := flag.String("log_level", cfg.LogLevel, "Log level: debug, info, warn, error")
	seed := flag.Uint("seed", uint(cfg.Seed), "Deterministic RNG seed (0 = wall clock)")
	flag.Parse()

	cfg.NumVocabs = int32(*numVocabs)
	cfg.NumTopics = int32(*numTopics)
	cfg.NumIterations = int32(*numIterations)
	cfg.MHSteps = int32(*mhSteps)
	cfg.NumLocalWorkers = int32(*numWorkers)
	cfg.NumBlocks = int32(*numBlocks)
	cfg.MaxNumDocument = *maxDocs
	cfg.Alpha = float32(*alpha)
	cfg.Beta = float32(*beta)
	cfg.InputDir = *inputDir
	cfg.WarmStart = *warmStart
	cfg.OutOfCore = *outOfCore
	cfg.DataCapacity = *dataCap
	cfg.ModelCapacity = *modelCap
	cfg.MetricsAddr = *metricsAddr
	cfg.LogLevel = *logLevel
	cfg.Seed = uint32(*seed)
	cfg.Inference = true

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: lvl})))

	if err := cfg.Check(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if err := trainer.Infer(context.Background(), &cfg); err != nil {
		slog.Error("inference failed", "err", err)
		os.Exit(1)
	}
	slog.Info("inference complete")
}
