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

package meta

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"lightlda"
)

// Meta aggregates the local vocabs of every block, the global and local term
// frequencies, and the per-slice alias indexes. Created once, immutable
// after Init.
type Meta struct {
	cfg        *lightlda.Config
	vocabs     []LocalVocab
	tf         []int32
	localTF    []int32
	aliasIndex [][]*AliasIndex
}

// New returns an uninitialized Meta for cfg.
func New(cfg *lightlda.Config) *Meta {
	return &Meta{cfg: cfg}
}

// Init loads vocab.<i> for every block, folds term frequencies, plans the
// slices and builds the alias indexes.
func (m *Meta) Init() error {
	m.tf = make([]int32, m.cfg.NumVocabs)
	m.localTF = make([]int32, m.cfg.NumVocabs)
	m.vocabs = make([]LocalVocab, m.cfg.NumBlocks)

	for i := int32(0); i < m.cfg.NumBlocks; i++ {
		path := filepath.Join(m.cfg.InputDir, fmt.Sprintf("vocab.%d", i))
		vf, err := ReadVocab(path)
		if err != nil {
			return err
		}
		m.vocabs[i].words = vf.Words
		// Term frequency of a word is the max over blocks, so a row sized
		// from it fits the word in any block.
		for j, w := range vf.Words {
			if w < 0 || w >= m.cfg.NumVocabs {
				return fmt.Errorf("vocab %s: word id %d out of range [0,%d)", path, w, m.cfg.NumVocabs)
			}
			if vf.TF[j] > m.tf[w] {
				m.tf[w] = vf.TF[j]
			}
			if vf.LocalTF[j] > m.localTF[w] {
				m.localTF[w] = vf.LocalTF[j]
			}
		}
	}

	if m.cfg.Inference {
		m.scheduleInference()
	} else {
		m.schedule()
	}
	m.buildAliasIndex()
	return nil
}

// TF returns the global term frequency of word.
func (m *Meta) TF(word int32) int32 { return m.tf[word] }

// LocalTF returns this node's term frequency of word.
func (m *Meta) LocalTF(word int32) int32 { return m.localTF[word] }

// Vocab returns the local vocab of a block.
func (m *Meta) Vocab(block int32) *LocalVocab { return &m.vocabs[block] }

// AliasIndex returns the alias index of one slice of one block.
func (m *Meta) AliasIndex(block, slice int32) *AliasIndex {
	return m.aliasIndex[block][slice]
}

// ModelBytes returns the byte footprint of word's model row: dense when the
// row would be at least half full at the configured load factor.
func (m *Meta) ModelBytes(word int32) int64 {
	if m.tf[word] > m.cfg.NumTopics/(2*lightlda.LoadFactor) {
		return int64(m.cfg.NumTopics) * 4
	}
	return int64(m.tf[word]) * int64(lightlda.LoadFactor) * 4
}

// AliasBytes returns the byte footprint of word's alias row: 2K ints dense,
// 3*tf ints sparse (kv pairs plus the topic id vector).
func (m *Meta) AliasBytes(word int32) int64 {
	if m.tf[word] > m.cfg.NumTopics*2/3 {
		return int64(m.cfg.NumTopics) * 2 * 4
	}
	return int64(m.tf[word]) * 3 * 4
}

// DeltaBytes returns the byte footprint of word's delta row.
func (m *Meta) DeltaBytes(word int32) int64 {
	if m.localTF[word] > m.cfg.NumTopics/(4*lightlda.LoadFactor) {
		return int64(m.cfg.NumTopics) * 4
	}
	return int64(m.localTF[word]) * int64(lightlda.LoadFactor) * 2 * 4
}

// schedule partitions each block's vocab into slices such that the combined
// model, alias and delta rows of any one slice all fit under their budgets.
// A word whose own footprint exceeds a budget occupies a slice of its own.
func (m *Meta) schedule() {
	for b := range m.vocabs {
		v := &m.vocabs[b]
		v.sliceIndex = append(v.sliceIndex[:0], 0)

		var modelOffset, aliasOffset, deltaOffset int64
		for j, word := range v.words {
			modelSize := m.ModelBytes(word)
			aliasSize := m.AliasBytes(word)
			deltaSize := m.DeltaBytes(word)
			modelOffset += modelSize
			aliasOffset += aliasSize
			deltaOffset += deltaSize

			if j > 0 && (modelOffset > m.cfg.ModelCapacity ||
				aliasOffset > m.cfg.AliasCapacity ||
				deltaOffset > m.cfg.DeltaCapacity) {
				v.sliceIndex = append(v.sliceIndex, int32(j))
				modelOffset = modelSize
				aliasOffset = aliasSize
				deltaOffset = deltaSize
			}
		}
		v.sliceIndex = append(v.sliceIndex, int32(len(v.words)))
		slog.Info("planned block", "block", b, "slices", v.NumSlices())
	}
}

// scheduleInference emits one slice per block and raises the alias budget to
// the largest per-block alias footprint, so every block's rows fit at once.
func (m *Meta) scheduleInference() {
	m.cfg.AliasCapacity = 0
	for b := range m.vocabs {
		v := &m.vocabs[b]
		v.sliceIndex = append(v.sliceIndex[:0], 0, int32(len(v.words)))
		var aliasOffset int64
		for _, word := range v.words {
			aliasOffset += m.AliasBytes(word)
		}
		if aliasOffset > m.cfg.AliasCapacity {
			m.cfg.AliasCapacity = aliasOffset
		}
	}
	slog.Info("alias capacity set for inference", "bytes", m.cfg.AliasCapacity)
}

// buildAliasIndex assigns every word of every slice its arena extent. A row
// is dense when tf reaches 2K/3; a dense row occupies 2K ints, a sparse row
// 3*tf (kv pairs first, then the topic id vector).
func (m *Meta) buildAliasIndex() {
	aliasThresh := m.cfg.NumTopics * 2 / 3
	m.aliasIndex = make([][]*AliasIndex, m.cfg.NumBlocks)
	for b := int32(0); b < m.cfg.NumBlocks; b++ {
		v := m.Vocab(b)
		m.aliasIndex[b] = make([]*AliasIndex, v.NumSlices())
		for s := int32(0); s < v.NumSlices(); s++ {
			idx := NewAliasIndex(m.cfg.NumVocabs)
			var offset int64
			for _, word := range v.Slice(s) {
				isDense := true
				capacity := m.cfg.NumTopics
				size := int64(m.cfg.NumTopics) * 2
				if m.tf[word] < aliasThresh {
					isDense = false
					capacity = m.tf[word]
					size = int64(m.tf[word]) * 3
				}
				idx.PushWord(word, isDense, offset, capacity)
				offset += size
			}
			m.aliasIndex[b][s] = idx
		}
	}
}
