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

import "fmt"

// WordEntry locates one word's alias row inside the alias arena.
type WordEntry struct {
	// IsDense selects the dense row layout (capacity = K).
	IsDense bool
	// BeginOffset is the row's first int32 inside the arena.
	BeginOffset int64
	// Capacity is K for dense rows, and the word's nonzero-topic count for
	// sparse rows (re-derived from the model at build time).
	Capacity int32
}

// AliasIndex maps the words of one slice to their arena entries. Entries are
// pushed in slice order with strictly increasing offsets.
type AliasIndex struct {
	entries  []WordEntry
	indexMap []int32
}

// NewAliasIndex returns an empty index able to address numVocabs words.
func NewAliasIndex(numVocabs int32) *AliasIndex {
	indexMap := make([]int32, numVocabs)
	for i := range indexMap {
		indexMap[i] = -1
	}
	return &AliasIndex{indexMap: indexMap}
}

// PushWord appends an entry for word.
func (x *AliasIndex) PushWord(word int32, isDense bool, beginOffset int64, capacity int32) {
	x.indexMap[word] = int32(len(x.entries))
	x.entries = append(x.entries, WordEntry{
		IsDense:     isDense,
		BeginOffset: beginOffset,
		Capacity:    capacity,
	})
}

// WordEntry returns the entry for word, or an error if the word is not part
// of this slice. A miss here means the alias table and the slice plan have
// diverged, which invalidates the whole computation.
func (x *AliasIndex) WordEntry(word int32) (*WordEntry, error) {
	if word < 0 || word >= int32(len(x.indexMap)) || x.indexMap[word] == -1 {
		return nil, fmt.Errorf("alias index: word %d not in slice", word)
	}
	return &x.entries[x.indexMap[word]], nil
}
