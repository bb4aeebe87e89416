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

package lightlda

import (
	"math"
	"testing"
)

// TestRNG_Recurrence pins the generator to the xorshift recurrence so a
// refactor cannot silently change the sampled streams.
func TestRNG_Recurrence(t *testing.T) {
	rng := NewRNG(42)
	state := uint32(42)
	for i := 0; i < 1000; i++ {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		want := int32(state & 0x7fffffff)
		if got := rng.Rand(); got != want {
			t.Fatalf("draw %d: got %d, want %d", i, got, want)
		}
	}
}

func TestRNG_Deterministic(t *testing.T) {
	a, b := NewRNG(7), NewRNG(7)
	for i := 0; i < 100; i++ {
		if a.Rand() != b.Rand() {
			t.Fatalf("same seed diverged at draw %d", i)
		}
	}
}

func TestRNG_RandDoubleRange(t *testing.T) {
	rng := NewRNG(1234)
	for i := 0; i < 100000; i++ {
		v := rng.RandDouble()
		if v < 0 || v >= 1 {
			t.Fatalf("RandDouble out of [0,1): %v", v)
		}
	}
}

func TestRNG_RandKRange(t *testing.T) {
	rng := NewRNG(99)
	for _, k := range []int32{1, 2, 10, 1000} {
		for i := 0; i < 10000; i++ {
			v := rng.RandK(k)
			if v < 0 || v >= k {
				t.Fatalf("RandK(%d) out of range: %d", k, v)
			}
		}
	}
}

// TestRNG_ChiSquareUniform checks RandK's uniformity over 1e6 draws for
// several K. A single unlucky seed must not fail the suite, so one
// alternate seed is tried before giving up.
func TestRNG_ChiSquareUniform(t *testing.T) {
	const draws = 1000000
	for _, k := range []int32{10, 1000, 100000} {
		ok := false
		for _, seed := range []uint32{20260214, 77777} {
			if chiSquareStat(seed, k, draws) < chiSquareCrit01(float64(k-1)) {
				ok = true
				break
			}
		}
		if !ok {
			t.Fatalf("RandK(%d) failed the chi-square uniformity check for both seeds", k)
		}
	}
}

func chiSquareStat(seed uint32, k int32, draws int) float64 {
	rng := NewRNG(seed)
	counts := make([]int64, k)
	for i := 0; i < draws; i++ {
		counts[rng.RandK(k)]++
	}
	expected := float64(draws) / float64(k)
	var stat float64
	for _, c := range counts {
		d := float64(c) - expected
		stat += d * d / expected
	}
	return stat
}

// chiSquareCrit01 approximates the upper 1% critical value of the
// chi-square distribution (Wilson-Hilferty).
func chiSquareCrit01(df float64) float64 {
	const z01 = 2.3263
	h := 2.0 / (9.0 * df)
	return df * math.Pow(1-h+z01*math.Sqrt(h), 3)
}
