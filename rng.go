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

import "time"

// invMass maps a 31-bit draw into [0, 1).
const invMass = 4.6566125e-10

// XorshiftRNG is a fast 32-bit xorshift generator. One instance per worker,
// never shared between goroutines.
type XorshiftRNG struct {
	jxr uint32
}

// NewRNG seeds a generator. A zero seed falls back to the wall clock.
func NewRNG(seed uint32) *XorshiftRNG {
	if seed == 0 {
		seed = uint32(time.Now().UnixNano())
	}
	return &XorshiftRNG{jxr: seed}
}

// Rand returns the next 31-bit random integer.
func (r *XorshiftRNG) Rand() int32 {
	r.jxr ^= r.jxr << 13
	r.jxr ^= r.jxr >> 17
	r.jxr ^= r.jxr << 5
	return int32(r.jxr & 0x7fffffff)
}

// RandDouble returns a uniform draw from [0, 1).
func (r *XorshiftRNG) RandDouble() float64 {
	return float64(r.Rand()) * invMass
}

// RandK returns a uniform draw from [0, k).
func (r *XorshiftRNG) RandK(k int32) int32 {
	return int32(float64(r.Rand()) * invMass * float64(k))
}
