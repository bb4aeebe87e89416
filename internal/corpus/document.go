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

// Package corpus implements the on-disk corpus layout: token blocks, the
// zero-copy document view, and the block streams that feed the trainer
// either from memory or from a disk-backed double buffer.
package corpus

// Document is a zero-copy view over one contiguous region of a block's
// token buffer, laid out as
//
//	cursor, word1, topic1, word2, topic2, ..., wordn, topicn
//
// Words are sorted ascending, which is what makes slice-by-slice sampling
// possible. The view is invalidated when its block is evicted.
type Document struct {
	data []int32
}

// Size returns the number of tokens.
func (d Document) Size() int32 { return int32(len(d.data)-1) / 2 }

// Word returns the word id of token index.
func (d Document) Word(index int32) int32 { return d.data[1+index*2] }

// Topic returns the topic assignment of token index.
func (d Document) Topic(index int32) int32 { return d.data[2+index*2] }

// SetTopic reassigns the topic of token index.
func (d Document) SetTopic(index, topic int32) { d.data[2+index*2] = topic }

// Cursor returns the resume position for the current slice.
func (d Document) Cursor() int32 { return d.data[0] }

// SetCursor stores the resume position.
func (d Document) SetCursor(c int32) { d.data[0] = c }

// TopicCounter is the sink for a document's topic histogram. Satisfied by
// the model row types.
type TopicCounter interface {
	Add(key int32, delta int32)
	Capacity() int32
}

// CountTopics folds the document's current topic assignments into counter,
// stopping once counter's capacity many tokens were consumed.
func (d Document) CountTopics(counter TopicCounter) {
	n := d.Size()
	limit := counter.Capacity()
	for i := int32(0); i < n; i++ {
		counter.Add(d.Topic(i), 1)
		if i+1 == limit {
			return
		}
	}
}
