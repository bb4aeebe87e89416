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

// Command lightlda trains an LDA topic model over a preprocessed block
// corpus with the Metropolis-Hastings LightLDA sampler.
//
// Configuration is layered: defaults, then an optional YAML file (-config),
// then a .env file / LIGHTLDA_* environment variables, then flags. The
// corpus is expected as block.<i> / vocab.<i> files under -input_dir, as
// produced by dump-block. Outputs are doc_topic.<i> files and
// server_0_table_{0,1}.model dumps in the same directory.
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
	cfg := loadConfig()
	setupLogging(cfg.LogLevel)
	if err := cfg.Check(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if err := trainer.Train(context.Background(), &cfg); err != nil {
		slog.Error("training failed", "err", err)
		os.Exit(1)
	}
	slog.Info("training complete")
}

// loadConfig layers the configuration sources, lowest precedence first.
func loadConfig() lightlda.Config {
	cfg := lightlda.DefaultConfig()

	// The config file must be known before the main flag pass so its values
	// become the flag defaults.
	if path := preScan(os.Args[1:], "config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			slog.Error("cannot load config file", "err", err)
			os.Exit(1)
		}
	}
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()
	if err := cfg.LoadEnv(); err != nil {
		slog.Error("cannot parse environment", "err", err)
		os.Exit(1)
	}
	registerAndParse(&cfg, true)
	return cfg
}

// preScan finds a flag's value without running the full flag parse.
func preScan(args []string, name string) string {
	for i, arg := range args {
		switch arg {
		case "-" + name, "--" + name:
			if i+1 < len(args) {
				return args[i+1]
			}
		}
		for _, prefix := range []string{"-" + name + "=", "--" + name + "="} {
			if len(arg) > len(prefix) && arg[:len(prefix)] == prefix {
				return arg[len(prefix):]
			}
		}
	}
	return ""
}

// registerAndParse defines the knob set over cfg's current values and
// applies the command line on top.
func registerAndParse(cfg *lightlda.Config, training bool) {
	flag.String("config", "", "YAML config file (applied before flags)")

	numVocabs := flag.Int("num_vocabs", int(cfg.NumVocabs), "Size of the vocabulary (V)")
	numTopics := flag.Int("num_topics", int(cfg.NumTopics), "Number of topics (K)")
	numIterations := flag.Int("num_iterations", int(cfg.NumIterations), "Number of passes over the corpus")
	mhSteps := flag.Int("mh_steps", int(cfg.MHSteps), "Metropolis-Hastings cycles per token")
	approx := flag.Bool("approx_sampler", cfg.ApproxSampler, "Use the approximate acceptance ratio")
	numWorkers := flag.Int("num_local_workers", int(cfg.NumLocalWorkers), "Number of sampling workers")
	numBlocks := flag.Int("num_blocks", int(cfg.NumBlocks), "Number of data blocks")
	maxDocs := flag.Int64("max_num_document", cfg.MaxNumDocument, "Per-block document cap")
	alpha := flag.Float64("alpha", float64(cfg.Alpha), "Symmetric Dirichlet prior on doc-topic")
	beta := flag.Float64("beta", float64(cfg.Beta), "Symmetric Dirichlet prior on word-topic")
	inputDir := flag.String("input_dir", cfg.InputDir, "Directory with block.<i> and vocab.<i> files")
	warmStart := flag.Bool("warm_start", cfg.WarmStart, "Preserve topic assignments loaded from blocks")
	outOfCore := flag.Bool("out_of_core", cfg.OutOfCore, "Stream blocks from disk through a double buffer")
	redisAddr := flag.String("redis_addr", cfg.RedisAddr, "Redis parameter server address (empty = in-process)")
	dataCap := flag.Int64("data_capacity", cfg.DataCapacity, "Block arena budget in bytes")
	modelCap := flag.Int64("model_capacity", cfg.ModelCapacity, "Model row budget in bytes")
	deltaCap := flag.Int64("delta_capacity", cfg.DeltaCapacity, "Delta row budget in bytes")
	aliasCap := flag.Int64("alias_capacity", cfg.AliasCapacity, "Alias row budget in bytes")
	metricsAddr := flag.String("metrics_addr", cfg.MetricsAddr, "Prometheus /metrics address (empty = disabled)")
	logLevel := flag.String("log_level", cfg.LogLevel, "Log level: debug, info, warn, error")
	seed := flag.Uint("seed", uint(cfg.Seed), "Deterministic RNG seed (0 = wall clock)")

	flag.Parse()

	cfg.NumVocabs = int32(*numVocabs)
	cfg.NumTopics = int32(*numTopics)
	cfg.NumIterations = int32(*numIterations)
	cfg.MHSteps = int32(*mhSteps)
	cfg.ApproxSampler = *approx
	cfg.NumLocalWorkers = int32(*numWorkers)
	cfg.NumBlocks = int32(*numBlocks)
	cfg.MaxNumDocument = *maxDocs
	cfg.Alpha = float32(*alpha)
	cfg.Beta = float32(*beta)
	cfg.InputDir = *inputDir
	cfg.WarmStart = *warmStart
	cfg.OutOfCore = *outOfCore
	cfg.RedisAddr = *redisAddr
	cfg.DataCapacity = *dataCap
	cfg.ModelCapacity = *modelCap
	cfg.DeltaCapacity = *deltaCap
	cfg.AliasCapacity = *aliasCap
	cfg.MetricsAddr = *metricsAddr
	cfg.LogLevel = *logLevel
	cfg.Seed = uint32(*seed)
	cfg.Inference = !training
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: lvl})))
}
