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

// Package alias stores the Walker alias rows of the word proposal
// distribution. Rows live in one flat int32 arena partitioned by the slice
// plan's word entries, so concurrent builders never overlap; the shared
// beta row serves the prior-only tail of sparse words.
package alias

import (
	"errors"
	"fmt"

	"lightlda"
	"lightlda/internal/meta"
	"lightlda/internal/model"
)

// ErrDegenerateRow reports a sparse word whose counter row has no nonzero
// topic; the word cannot be proposed this slice.
var ErrDegenerateRow = errors.New("alias row has no nonzero topic")

// Scratch is the per-worker workspace of the alias builder. Each worker
// owns one; never share between goroutines.
type Scratch struct {
	q    []float32
	qInt []int32
	l    [][2]int32
	h    [][2]int32
}

func (s *Scratch) ensure(numTopics int32) {
	if s.q == nil {
		s.q = make([]float32, numTopics)
		s.qInt = make([]int32, numTopics)
		s.l = make([][2]int32, numTopics)
		s.h = make([][2]int32, numTopics)
	}
}

// Release drops the workspace so the memory can be reclaimed after the last
// iteration.
func (s *Scratch) Release() {
	s.q, s.qInt, s.l, s.h = nil, nil, nil, nil
}

// Table is the alias storage for one slice at a time: a flat arena sized by
// the alias byte budget, per-word height/mass scalars, and the beta row.
// Build partitions writes by word; Propose is lock-free.
type Table struct {
	mem   []int32
	index *meta.AliasIndex

	height []int32
	mass   []float32

	betaKV     []int32
	betaHeight int32
	betaMass   float32

	numVocabs int32
	numTopics int32
	beta      float32
	betaSum   float32
}

// NewTable allocates the arena and the beta row for cfg.
func NewTable(cfg *lightlda.Config) *Table {
	return &Table{
		mem:       make([]int32, cfg.AliasCapacity/4),
		height:    make([]int32, cfg.NumVocabs),
		mass:      make([]float32, cfg.NumVocabs),
		betaKV:    make([]int32, 2*cfg.NumTopics),
		numVocabs: cfg.NumVocabs,
		numTopics: cfg.NumTopics,
		beta:      cfg.Beta,
		betaSum:   cfg.Beta * float32(cfg.NumVocabs),
	}
}

// Init binds the index of the slice about to be built.
func (t *Table) Init(index *meta.AliasIndex) { t.index = index }

// Clear unbinds the slice index. Workers release their Scratch separately.
func (t *Table) Clear() { t.index = nil }

// Build fills the alias row of word from the model's counter rows. The
// sentinel BetaWord builds the shared prior-only row. Safe to call from all
// workers at once as long as each word is built exactly once.
func (t *Table) Build(word int32, m model.Accessor, scratch *Scratch) error {
	scratch.ensure(t.numTopics)
	summary := m.Summary()

	if word == lightlda.BetaWord {
		var mass float32
		for k := int32(0); k < t.numTopics; k++ {
			scratch.q[k] = t.beta / (float32(summary.At(k)) + t.betaSum)
			mass += scratch.q[k]
		}
		t.betaMass = mass
		t.betaHeight = t.aliasMultinomial(t.numTopics, mass, t.betaKV, scratch)
		return nil
	}

	entry, err := t.index.WordEntry(word)
	if err != nil {
		return err
	}
	row := m.WordTopicRow(word)
	var size int32
	var mass float32
	if entry.IsDense {
		size = t.numTopics
		for k := int32(0); k < t.numTopics; k++ {
			scratch.q[k] = (float32(row.At(k)) + t.beta) /
				(float32(summary.At(k)) + t.betaSum)
			mass += scratch.q[k]
		}
	} else {
		// The beta tail of a sparse word is served by the shared beta row,
		// so the numerator here carries no beta term.
		entry.Capacity = row.NonzeroSize()
		idxVector := t.mem[entry.BeginOffset+2*int64(entry.Capacity):]
		row.ForEach(func(k, nTW int32) {
			idxVector[size] = k
			scratch.q[size] = float32(nTW) / (float32(summary.At(k)) + t.betaSum)
			mass += scratch.q[size]
			size++
		})
		if size == 0 {
			// Zero mass routes every draw for this word to the beta row.
			t.mass[word] = 0
			t.height[word] = 0
			return fmt.Errorf("word %d: %w", word, ErrDegenerateRow)
		}
	}
	t.mass[word] = mass
	t.height[word] = t.aliasMultinomial(size, mass, t.mem[entry.BeginOffset:], scratch)
	return nil
}

// Propose draws a topic from word's proposal distribution.
func (t *Table) Propose(word int32, rng *lightlda.XorshiftRNG) int32 {
	entry, err := t.index.WordEntry(word)
	if err != nil {
		return -1
	}
	kv := t.mem[entry.BeginOffset:]
	capacity := entry.Capacity
	if entry.IsDense {
		sample := rng.Rand()
		idx := sample / t.height[word]
		if capacity <= idx {
			idx = capacity - 1
		}
		k := kv[2*idx]
		v := kv[2*idx+1]
		m := -b2i(sample < v)
		return (idx & m) | (k & ^m)
	}

	sample := rng.RandDouble() * float64(t.mass[word]+t.betaMass)
	if sample < float64(t.mass[word]) {
		idxVector := kv[2*capacity:]
		nkwSample := rng.Rand()
		idx := nkwSample / t.height[word]
		if capacity <= idx {
			idx = capacity - 1
		}
		k := kv[2*idx]
		v := kv[2*idx+1]
		m := -b2i(nkwSample < v)
		return (idxVector[idx] & m) | (idxVector[k] & ^m)
	}

	betaSample := rng.Rand()
	idx := betaSample / t.betaHeight
	if t.numTopics <= idx {
		idx = t.numTopics - 1
	}
	k := t.betaKV[2*idx]
	v := t.betaKV[2*idx+1]
	m := -b2i(betaSample < v)
	return (idx & m) | (k & ^m)
}

// aliasMultinomial builds the integer Walker alias for the first size
// entries of scratch.q (unnormalised, summing to mass) into kv, returning
// the bucket height. Integer arithmetic only past the initial scaling, so
// the sampling hot path is exact for the integer mass.
func (t *Table) aliasMultinomial(size int32, mass float32, kv []int32, scratch *Scratch) int32 {
	massInt := int32(0x7fffffff)
	aInt := massInt / size
	massInt = aInt * size
	height := aInt

	var massSum int64
	for i := int32(0); i < size; i++ {
		scratch.q[i] /= mass
		scratch.qInt[i] = int32(scratch.q[i] * float32(massInt))
		massSum += int64(scratch.qInt[i])
	}
	// Distribute the rounding error one unit at a time so the integer
	// weights sum to massInt exactly.
	if massSum > int64(massInt) {
		more := int32(massSum - int64(massInt))
		id := int32(0)
		for i := int32(0); i < more; {
			if scratch.qInt[id] >= 1 {
				scratch.qInt[id]--
				i++
			}
			id = (id + 1) % size
		}
	}
	if massSum < int64(massInt) {
		more := int32(int64(massInt) - massSum)
		id := int32(0)
		for i := int32(0); i < more; i++ {
			scratch.qInt[id]++
			id = (id + 1) % size
		}
	}

	for k := int32(0); k < size; k++ {
		kv[2*k] = k
		kv[2*k+1] = (k + 1) * height
	}

	var lHead, lTail, hHead, hTail int32
	for k := int32(0); k < size; k++ {
		val := scratch.qInt[k]
		if val < height {
			scratch.l[lTail] = [2]int32{k, val}
			lTail++
		} else {
			scratch.h[hTail] = [2]int32{k, val}
			hTail++
		}
	}
	for lHead != lTail && hHead != hTail {
		pl := scratch.l[lHead]
		lHead++
		ph := scratch.h[hHead]
		hHead++
		kv[2*pl[0]] = ph[0]
		kv[2*pl[0]+1] = pl[0]*height + pl[1]

		sum := ph[1] + pl[1]
		if sum > 2*height {
			scratch.h[hTail] = [2]int32{ph[0], sum - height}
			hTail++
		} else {
			scratch.l[lTail] = [2]int32{ph[0], sum - height}
			lTail++
		}
	}
	for ; lHead != lTail; lHead++ {
		k, val := scratch.l[lHead][0], scratch.l[lHead][1]
		kv[2*k] = k
		kv[2*k+1] = k*height + val
	}
	for ; hHead != hTail; hHead++ {
		k, val := scratch.h[hHead][0], scratch.h[hHead][1]
		kv[2*k] = k
		kv[2*k+1] = k*height + val
	}
	return height
}

// b2i returns 1 for true, 0 for false.
func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
