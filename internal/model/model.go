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
	"sync/atomic"

	"lightlda"
)

// Accessor is the capability set the sampler and alias builder need from a
// model. Mutators take relative deltas; implementations decide whether they
// apply locally, buffer for a parameter server, or drop them (inference).
type Accessor interface {
	// WordTopicRow returns word's counter row. Never nil; words absent from
	// the model yield an empty row.
	WordTopicRow(word int32) *Int32Row
	// Summary returns the shared per-topic totals.
	Summary() *SummaryRow
	// AddWordTopic applies a relative delta to (word, topic).
	AddWordTopic(word, topic, delta int32)
	// AddSummary applies a relative delta to topic's total mass.
	AddSummary(topic int32, delta int64)
}

// SummaryRow holds the K per-topic token totals across the whole corpus.
// Adds are atomic; reads tolerate staleness by design.
type SummaryRow struct {
	counts []int64
}

// NewSummaryRow returns a zeroed summary over numTopics.
func NewSummaryRow(numTopics int32) *SummaryRow {
	return &SummaryRow{counts: make([]int64, numTopics)}
}

// At returns the total mass of topic k.
func (s *SummaryRow) At(k int32) int64 {
	return atomic.LoadInt64(&s.counts[k])
}

// Add applies a relative delta to topic k.
func (s *SummaryRow) Add(k int32, delta int64) {
	atomic.AddInt64(&s.counts[k], delta)
}

// Size returns the number of topics.
func (s *SummaryRow) Size() int32 { return int32(len(s.counts)) }

// Reset zeroes every counter.
func (s *SummaryRow) Reset() {
	for i := range s.counts {
		atomic.StoreInt64(&s.counts[i], 0)
	}
}

// NewWordRow sizes a word's counter row by the hybrid rule: dense when
// tf*LOAD_FACTOR exceeds K, else sparse with capacity tf*LOAD_FACTOR.
func NewWordRow(tf, numTopics int32) *Int32Row {
	if tf*lightlda.LoadFactor > numTopics {
		return NewDenseRow(numTopics)
	}
	return NewSparseRow(tf * lightlda.LoadFactor)
}
