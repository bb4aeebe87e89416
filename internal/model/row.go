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

// Package model implements the counter rows of the topic model and the two
// accessors over them: a read-only local model for inference and a
// parameter-server-backed model for training.
package model

// Int32Row is a topic -> count row, stored dense (a K-length array) or
// sparse (open addressing sized by term frequency and the load factor).
// A row has a single writer; concurrent readers are safe once writes stop.
type Int32Row struct {
	dense []int32

	keys     []int32 // -1 marks an empty bucket
	vals     []int32
	mask     int32
	occupied int32

	capacity int32
}

// NewDenseRow returns a dense row over numTopics counters.
func NewDenseRow(numTopics int32) *Int32Row {
	return &Int32Row{dense: make([]int32, numTopics), capacity: numTopics}
}

// NewSparseRow returns a sparse row able to hold capacity nonzero topics.
func NewSparseRow(capacity int32) *Int32Row {
	if capacity < 1 {
		capacity = 1
	}
	size := nextPow2(capacity)
	r := &Int32Row{
		keys:     make([]int32, size),
		vals:     make([]int32, size),
		mask:     size - 1,
		capacity: capacity,
	}
	for i := range r.keys {
		r.keys[i] = -1
	}
	return r
}

// IsDense reports the storage layout.
func (r *Int32Row) IsDense() bool { return r.dense != nil }

// Capacity returns the row's configured capacity.
func (r *Int32Row) Capacity() int32 { return r.capacity }

// At returns the count of topic k.
func (r *Int32Row) At(k int32) int32 {
	if r.dense != nil {
		return r.dense[k]
	}
	i := k & r.mask
	for {
		switch r.keys[i] {
		case k:
			return r.vals[i]
		case -1:
			return 0
		}
		i = (i + 1) & r.mask
	}
}

// Add applies a relative delta to topic k.
func (r *Int32Row) Add(k, delta int32) {
	if r.dense != nil {
		r.dense[k] += delta
		return
	}
	i := k & r.mask
	for {
		switch r.keys[i] {
		case k:
			r.vals[i] += delta
			return
		case -1:
			r.keys[i] = k
			r.vals[i] = delta
			r.occupied++
			// Keep the table at most half full so probe chains stay short.
			if r.occupied*2 > r.mask+1 {
				r.grow()
			}
			return
		}
		i = (i + 1) & r.mask
	}
}

// NonzeroSize returns the number of topics with a nonzero count.
func (r *Int32Row) NonzeroSize() int32 {
	var n int32
	if r.dense != nil {
		for _, v := range r.dense {
			if v != 0 {
				n++
			}
		}
		return n
	}
	for i, k := range r.keys {
		if k != -1 && r.vals[i] != 0 {
			n++
		}
	}
	return n
}

// ForEach visits every nonzero (topic, count) pair. Dense rows iterate in
// topic order; sparse rows in table order.
func (r *Int32Row) ForEach(fn func(k, v int32)) {
	if r.dense != nil {
		for k, v := range r.dense {
			if v != 0 {
				fn(int32(k), v)
			}
		}
		return
	}
	for i, k := range r.keys {
		if k != -1 && r.vals[i] != 0 {
			fn(k, r.vals[i])
		}
	}
}

// Clear zeroes the row, keeping its storage.
func (r *Int32Row) Clear() {
	if r.dense != nil {
		clear(r.dense)
		return
	}
	for i := range r.keys {
		r.keys[i] = -1
		r.vals[i] = 0
	}
	r.occupied = 0
}

func (r *Int32Row) grow() {
	oldKeys, oldVals := r.keys, r.vals
	size := (r.mask + 1) * 2
	r.keys = make([]int32, size)
	r.vals = make([]int32, size)
	r.mask = size - 1
	r.occupied = 0
	for i := range r.keys {
		r.keys[i] = -1
	}
	for i, k := range oldKeys {
		if k != -1 && oldVals[i] != 0 {
			r.Add(k, oldVals[i])
		}
	}
}

func nextPow2(v int32) int32 {
	size := int32(1)
	for size < v {
		size <<= 1
	}
	return size
}
