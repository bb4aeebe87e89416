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

// Package lightlda holds the shared configuration and primitives of the
// LightLDA topic-model trainer: the knob set common to training, inference
// and preprocessing, and the xorshift random number generator used on the
// sampling hot path.
//
// The trainer learns Latent Dirichlet Allocation parameters with the
// Metropolis-Hastings "LightLDA" sampler. Corpora are stored as binary
// blocks on disk and streamed through memory slice by slice, so that model
// rows, alias rows and delta rows stay under explicit byte budgets even for
// models with millions of topics.
package lightlda

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table ids used by the parameter server and the model files.
const (
	// WordTopicTable identifies the word-topic counter table (one row per word).
	WordTopicTable int32 = 0
	// SummaryTable identifies the summary table (a single row of per-topic totals).
	SummaryTable int32 = 1
)

// LoadFactor oversizes sparse rows to bound open-addressing probe chains.
const LoadFactor int32 = 2

// MaxDocLength caps the capacity of the per-document topic counter.
const MaxDocLength int32 = 8192

// BetaWord is the sentinel word id used to build the shared beta alias row.
const BetaWord int32 = -1

// Config defines the full knob set of the trainer. Zero values are not
// usable; start from DefaultConfig and override from a YAML file,
// environment, or flags.
type Config struct {
	// NumVocabs is the size of the vocabulary (V).
	NumVocabs int32 `yaml:"num_vocabs"`
	// NumTopics is the number of topics (K).
	NumTopics int32 `yaml:"num_topics"`
	// NumIterations is the number of training passes over the corpus.
	NumIterations int32 `yaml:"num_iterations"`
	// MHSteps is the number of Metropolis-Hastings cycles per token.
	MHSteps int32 `yaml:"mh_steps"`
	// ApproxSampler drops one factor per side of the acceptance ratio,
	// trading exactness for speed.
	ApproxSampler bool `yaml:"approx_sampler"`
	// NumLocalWorkers is the number of sampling worker threads.
	NumLocalWorkers int32 `yaml:"num_local_workers"`
	// NumBlocks is the number of data blocks on disk.
	NumBlocks int32 `yaml:"num_blocks"`
	// MaxNumDocument caps the number of documents per block.
	MaxNumDocument int64 `yaml:"max_num_document"`

	// Alpha and Beta are the symmetric Dirichlet priors.
	Alpha float32 `yaml:"alpha"`
	Beta  float32 `yaml:"beta"`

	// InputDir holds block.<i> / vocab.<i> files, and model files for inference.
	InputDir string `yaml:"input_dir"`
	// WarmStart preserves the topic assignments loaded from blocks.
	WarmStart bool `yaml:"warm_start"`
	// OutOfCore streams blocks from disk through a double buffer.
	OutOfCore bool `yaml:"out_of_core"`
	// Inference loads a read-only model and disables delta emission.
	Inference bool `yaml:"inference"`

	// Parameter-server fabric settings.
	NumServers    int32  `yaml:"num_servers"`
	NumAggregator int32  `yaml:"num_aggregator"`
	ServerFile    string `yaml:"server_file"`
	// RedisAddr selects the Redis parameter-server backend when non-empty.
	RedisAddr string `yaml:"redis_addr"`

	// Memory budgets, in bytes.
	DataCapacity  int64 `yaml:"data_capacity"`
	ModelCapacity int64 `yaml:"model_capacity"`
	DeltaCapacity int64 `yaml:"delta_capacity"`
	AliasCapacity int64 `yaml:"alias_capacity"`

	// MetricsAddr serves Prometheus /metrics when non-empty (e.g. ":9090").
	MetricsAddr string `yaml:"metrics_addr"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Seed seeds every worker RNG deterministically when non-zero.
	Seed uint32 `yaml:"seed"`
}

// DefaultConfig returns the defaults of the original trainer.
func DefaultConfig() Config {
	return Config{
		NumVocabs:       0,
		NumTopics:       100,
		NumIterations:   100,
		MHSteps:         2,
		NumLocalWorkers: 1,
		NumBlocks:       1,
		MaxNumDocument:  10000,
		Alpha:           0.1,
		Beta:            0.01,
		InputDir:        ".",
		NumServers:      1,
		NumAggregator:   1,
		DataCapacity:    800 << 20,
		ModelCapacity:   512 << 20,
		DeltaCapacity:   128 << 20,
		AliasCapacity:   512 << 20,
		LogLevel:        "info",
	}
}

// Check validates the configuration. Every failed constraint is reported.
func (c *Config) Check() error {
	var errs []error
	if c.NumVocabs <= 0 {
		errs = append(errs, errors.New("num_vocabs must be positive"))
	}
	if c.NumTopics <= 0 {
		errs = append(errs, errors.New("num_topics must be positive"))
	}
	if c.NumIterations <= 0 {
		errs = append(errs, errors.New("num_iterations must be positive"))
	}
	if c.MHSteps <= 0 {
		errs = append(errs, errors.New("mh_steps must be positive"))
	}
	if c.NumLocalWorkers <= 0 {
		errs = append(errs, errors.New("num_local_workers must be positive"))
	}
	if c.NumBlocks <= 0 {
		errs = append(errs, errors.New("num_blocks must be positive"))
	}
	if c.MaxNumDocument <= 0 {
		errs = append(errs, errors.New("max_num_document must be positive"))
	}
	if c.Alpha <= 0 || c.Beta <= 0 {
		errs = append(errs, errors.New("alpha and beta must be positive"))
	}
	if c.DataCapacity <= 0 || c.ModelCapacity <= 0 ||
		c.DeltaCapacity <= 0 || c.AliasCapacity <= 0 {
		errs = append(errs, errors.New("memory capacities must be positive"))
	}
	if c.InputDir == "" {
		errs = append(errs, errors.New("input_dir must be set"))
	}
	return errors.Join(errs...)
}

// BetaSum returns beta * V, the denominator prior mass.
func (c *Config) BetaSum() float32 { return c.Beta * float32(c.NumVocabs) }

// AlphaSum returns alpha * K.
func (c *Config) AlphaSum() float32 { return c.Alpha * float32(c.NumTopics) }

// Subtractor returns the minus-self correction: 0 under inference, 1 during
// training.
func (c *Config) Subtractor() int32 {
	if c.Inference {
		return 0
	}
	return 1
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LoadEnv overlays LIGHTLDA_* environment variables onto c. Unknown
// variables are ignored; unparsable values are errors.
func (c *Config) LoadEnv() error {
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, "LIGHTLDA_") {
			continue
		}
		if err := c.setFromEnv(strings.TrimPrefix(name, "LIGHTLDA_"), value); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) setFromEnv(name, value string) error {
	setInt32 := func(dst *int32) error {
		v, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return err
		}
		*dst = int32(v)
		return nil
	}
	setInt64 := func(dst *int64) error {
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
	setBool := func(dst *bool) error {
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
	switch name {
	case "NUM_VOCABS":
		return setInt32(&c.NumVocabs)
	case "NUM_TOPICS":
		return setInt32(&c.NumTopics)
	case "NUM_ITERATIONS":
		return setInt32(&c.NumIterations)
	case "MH_STEPS":
		return setInt32(&c.MHSteps)
	case "NUM_LOCAL_WORKERS":
		return setInt32(&c.NumLocalWorkers)
	case "NUM_BLOCKS":
		return setInt32(&c.NumBlocks)
	case "MAX_NUM_DOCUMENT":
		return setInt64(&c.MaxNumDocument)
	case "INPUT_DIR":
		c.InputDir = value
	case "WARM_START":
		return setBool(&c.WarmStart)
	case "OUT_OF_CORE":
		return setBool(&c.OutOfCore)
	case "REDIS_ADDR":
		c.RedisAddr = value
	case "METRICS_ADDR":
		c.MetricsAddr = value
	case "DATA_CAPACITY":
		return setInt64(&c.DataCapacity)
	case "MODEL_CAPACITY":
		return setInt64(&c.ModelCapacity)
	case "DELTA_CAPACITY":
		return setInt64(&c.DeltaCapacity)
	case "ALIAS_CAPACITY":
		return setInt64(&c.AliasCapacity)
	case "LOG_LEVEL":
		c.LogLevel = value
	}
	return nil
}
