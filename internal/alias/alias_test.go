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

package alias

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"lightlda"
	"lightlda/internal/meta"
	"lightlda/internal/model"
)

// stubModel serves fixed rows to the builder.
type stubModel struct {
	rows    map[int32]*model.Int32Row
	summary *model.SummaryRow
}

func (s *stubModel) WordTopicRow(w int32) *model.Int32Row { return s.rows[w] }
func (s *stubModel) Summary() *model.SummaryRow           { return s.summary }
func (s *stubModel) AddWordTopic(w, k, d int32)           {}
func (s *stubModel) AddSummary(k int32, d int64)          {}

func aliasConfig(numTopics int32) *lightlda.Config {
	cfg := lightlda.DefaultConfig()
	cfg.NumVocabs = 16
	cfg.NumTopics = numTopics
	cfg.AliasCapacity = 1 << 16
	cfg.Beta = 0.01
	return &cfg
}

// reconstruct recovers each topic's integer weight from a built kv row:
// bucket k keeps split-k*height for itself and donates the remainder to
// its alternate.
func reconstruct(kv []int32, size, height int32) []int64 {
	weights := make([]int64, size)
	for k := int32(0); k < size; k++ {
		alt := kv[2*k]
		split := kv[2*k+1]
		own := int64(split) - int64(k)*int64(height)
		weights[k] += own
		weights[alt] += int64(height) - own
	}
	return weights
}

// TestAliasMultinomial_Exactness checks the alias invariant: the bucket
// structure reproduces the adjusted integer weights exactly, and the total
// bucket mass is size*height.
func TestAliasMultinomial_Exactness(t *testing.T) {
	cfg := aliasConfig(4)
	tbl := NewTable(cfg)
	scratch := &Scratch{}
	scratch.ensure(cfg.NumTopics)

	// Proportions 3:1:4:2, as in the reference construction.
	copy(scratch.q, []float32{0.3, 0.1, 0.4, 0.2})
	kv := make([]int32, 8)
	height := tbl.aliasMultinomial(4, 1.0, kv, scratch)

	massInt := (int32(0x7fffffff) / 4) * 4
	require.Equal(t, massInt/4, height)

	var qSum int64
	for i := 0; i < 4; i++ {
		qSum += int64(scratch.qInt[i])
	}
	require.Equal(t, int64(massInt), qSum, "adjusted weights must sum to the integer mass")

	weights := reconstruct(kv, 4, height)
	var total int64
	for i, w := range weights {
		require.Equal(t, int64(scratch.qInt[i]), w, "topic %d", i)
		total += w
	}
	require.Equal(t, int64(4)*int64(height), total, "total bucket mass is size*height")
}

func TestAliasMultinomial_SkewedAndUniform(t *testing.T) {
	cfg := aliasConfig(8)
	tbl := NewTable(cfg)
	scratch := &Scratch{}
	scratch.ensure(cfg.NumTopics)

	cases := [][]float32{
		{1, 1, 1, 1, 1, 1, 1, 1},
		{100, 1, 1, 1, 1, 1, 1, 1},
		{0.001, 5, 0.001, 5, 0.001, 5, 0.001, 5},
	}
	for _, q := range cases {
		var mass float32
		for _, v := range q {
			mass += v
		}
		copy(scratch.q, q)
		kv := make([]int32, 16)
		height := tbl.aliasMultinomial(8, mass, kv, scratch)
		weights := reconstruct(kv, 8, height)
		for i, w := range weights {
			require.Equal(t, int64(scratch.qInt[i]), w, "topic %d", i)
		}
	}
}

func denseIndex(numTopics int32) *meta.AliasIndex {
	idx := meta.NewAliasIndex(16)
	idx.PushWord(0, true, 0, numTopics)
	return idx
}

func TestBuildAndPropose_DenseDistribution(t *testing.T) {
	cfg := aliasConfig(4)
	tbl := NewTable(cfg)
	tbl.Init(denseIndex(4))

	row := model.NewDenseRow(4)
	row.Add(0, 30)
	row.Add(1, 10)
	row.Add(2, 40)
	row.Add(3, 20)
	summary := model.NewSummaryRow(4)
	for k := int32(0); k < 4; k++ {
		summary.Add(k, 100)
	}
	m := &stubModel{rows: map[int32]*model.Int32Row{0: row}, summary: summary}

	scratch := &Scratch{}
	require.NoError(t, tbl.Build(0, m, scratch))

	const draws = 400000
	rng := lightlda.NewRNG(31337)
	counts := make([]int64, 4)
	for i := 0; i < draws; i++ {
		k := tbl.Propose(0, rng)
		require.GreaterOrEqual(t, k, int32(0))
		require.Less(t, k, int32(4))
		counts[k]++
	}
	// q_k proportional to (n_wk + beta) / (n_k + beta*V); the denominator is
	// shared, so expected shares follow the counts.
	want := []float64{0.3, 0.1, 0.4, 0.2}
	for k, c := range counts {
		got := float64(c) / draws
		require.InDelta(t, want[k], got, 0.01, "topic %d", k)
	}
}

func TestBuildAndPropose_SparseWithBetaTail(t *testing.T) {
	cfg := aliasConfig(8)
	tbl := NewTable(cfg)
	idx := meta.NewAliasIndex(16)
	idx.PushWord(3, false, 0, 2)
	tbl.Init(idx)

	// Word 3 has mass on topics 2 and 5 only.
	row := model.NewSparseRow(4)
	row.Add(2, 50)
	row.Add(5, 150)
	summary := model.NewSummaryRow(8)
	for k := int32(0); k < 8; k++ {
		summary.Add(k, 1000)
	}
	m := &stubModel{rows: map[int32]*model.Int32Row{3: row}, summary: summary}

	scratch := &Scratch{}
	require.NoError(t, tbl.Build(lightlda.BetaWord, m, scratch))
	require.NoError(t, tbl.Build(3, m, scratch))

	const draws = 500000
	rng := lightlda.NewRNG(777)
	counts := make([]int64, 8)
	for i := 0; i < draws; i++ {
		k := tbl.Propose(3, rng)
		require.GreaterOrEqual(t, k, int32(0))
		require.Less(t, k, int32(8))
		counts[k]++
	}

	// The word mass (50+150)/(1000+beta*V) dwarfs the beta tail, and within
	// it topic 5 carries three times topic 2's weight.
	require.Greater(t, counts[5], counts[2])
	ratio := float64(counts[5]) / float64(counts[2])
	require.InDelta(t, 3.0, ratio, 0.15)
	// Every topic stays reachable through the beta row.
	var tail int64
	for k, c := range counts {
		if k != 2 && k != 5 {
			tail += c
		}
	}
	require.Greater(t, tail, int64(0))
	betaShare := float64(tail) / draws
	wordMass := 200.0 / (1000.0 + float64(cfg.BetaSum()))
	betaMass := 8 * float64(cfg.Beta) / (1000.0 + float64(cfg.BetaSum()))
	wantTail := betaMass / (wordMass + betaMass) * 6.0 / 8.0
	require.InDelta(t, wantTail, betaShare, math.Max(0.005, wantTail))
}

func TestBuild_DegenerateSparseRow(t *testing.T) {
	cfg := aliasConfig(8)
	tbl := NewTable(cfg)
	idx := meta.NewAliasIndex(16)
	idx.PushWord(2, false, 0, 3)
	tbl.Init(idx)

	summary := model.NewSummaryRow(8)
	for k := int32(0); k < 8; k++ {
		summary.Add(k, 10)
	}
	m := &stubModel{
		rows:    map[int32]*model.Int32Row{2: model.NewSparseRow(3)},
		summary: summary,
	}
	scratch := &Scratch{}
	require.NoError(t, tbl.Build(lightlda.BetaWord, m, scratch))
	require.ErrorIs(t, tbl.Build(2, m, scratch), ErrDegenerateRow)

	// Draws for the skipped word fall through to the beta row.
	rng := lightlda.NewRNG(5)
	for i := 0; i < 1000; i++ {
		k := tbl.Propose(2, rng)
		require.GreaterOrEqual(t, k, int32(0))
		require.Less(t, k, int32(8))
	}
}

func TestBuild_WordOutsideSliceFails(t *testing.T) {
	cfg := aliasConfig(4)
	tbl := NewTable(cfg)
	tbl.Init(denseIndex(4))
	m := &stubModel{
		rows:    map[int32]*model.Int32Row{9: model.NewDenseRow(4)},
		summary: model.NewSummaryRow(4),
	}
	require.Error(t, tbl.Build(9, m, &Scratch{}))
}

func TestScratch_Release(t *testing.T) {
	s := &Scratch{}
	s.ensure(16)
	require.NotNil(t, s.q)
	s.Release()
	require.Nil(t, s.q)
	// A later build may lazily re-allocate.
	s.ensure(16)
	require.Len(t, s.q, 16)
}
