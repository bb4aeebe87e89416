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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInt32Row_DenseBasics(t *testing.T) {
	r := NewDenseRow(10)
	require.True(t, r.IsDense())
	require.Equal(t, int32(10), r.Capacity())

	r.Add(3, 5)
	r.Add(3, -2)
	r.Add(9, 1)
	require.Equal(t, int32(3), r.At(3))
	require.Equal(t, int32(1), r.At(9))
	require.Equal(t, int32(0), r.At(0))
	require.Equal(t, int32(2), r.NonzeroSize())

	got := map[int32]int32{}
	r.ForEach(func(k, v int32) { got[k] = v })
	require.Equal(t, map[int32]int32{3: 3, 9: 1}, got)

	r.Clear()
	require.Equal(t, int32(0), r.NonzeroSize())
}

func TestInt32Row_SparseBasics(t *testing.T) {
	r := NewSparseRow(4)
	require.False(t, r.IsDense())

	r.Add(100, 2)
	r.Add(7, 1)
	r.Add(100, 3)
	require.Equal(t, int32(5), r.At(100))
	require.Equal(t, int32(1), r.At(7))
	require.Equal(t, int32(0), r.At(42))
	require.Equal(t, int32(2), r.NonzeroSize())

	// A delta back to zero drops the key from the nonzero count.
	r.Add(7, -1)
	require.Equal(t, int32(1), r.NonzeroSize())

	r.Clear()
	require.Equal(t, int32(0), r.NonzeroSize())
	require.Equal(t, int32(0), r.At(100))
}

func TestInt32Row_SparseGrowsPastCapacity(t *testing.T) {
	r := NewSparseRow(2)
	for k := int32(0); k < 1000; k++ {
		r.Add(k*7, 1)
	}
	require.Equal(t, int32(1000), r.NonzeroSize())
	for k := int32(0); k < 1000; k++ {
		require.Equal(t, int32(1), r.At(k*7))
	}
}

func TestInt32Row_SparseCollisions(t *testing.T) {
	// Keys congruent modulo the table size force probe chains.
	r := NewSparseRow(8)
	for i := int32(0); i < 6; i++ {
		r.Add(i*16, int32(i)+1)
	}
	for i := int32(0); i < 6; i++ {
		require.Equal(t, i+1, r.At(i*16))
	}
}

func TestNewWordRow_HybridRule(t *testing.T) {
	// Dense when tf*LOAD_FACTOR > K.
	require.True(t, NewWordRow(51, 100).IsDense())
	require.False(t, NewWordRow(50, 100).IsDense())
	require.False(t, NewWordRow(0, 100).IsDense())
}

func TestSummaryRow_AtomicAdds(t *testing.T) {
	s := NewSummaryRow(4)
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 1000; j++ {
				s.Add(2, 1)
				s.Add(3, -1)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	require.Equal(t, int64(4000), s.At(2))
	require.Equal(t, int64(-4000), s.At(3))
	require.Equal(t, int64(0), s.At(0))

	s.Reset()
	require.Equal(t, int64(0), s.At(2))
}
