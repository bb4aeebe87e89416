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

// Package ps defines the parameter-server capability set the trainer
// depends on, and two servers implementing it: an in-process sharded store
// and a Redis-backed store with idempotent batched delivery.
//
// The contract is deliberately loose: deltas are eventually delivered,
// counters are monotone under delivery order, and readers tolerate
// staleness. That is all the stale-synchronous sampler needs.
package ps

import "context"

// Delta is one signed counter update, keyed the way the server shards rows.
type Delta struct {
	TableID int32
	RowID   int32
	ColID   int32
	Value   int64
}

// Server is the parameter-server capability set.
type Server interface {
	// GetRow returns the current column counters of one row. Missing rows
	// yield an empty map.
	GetRow(ctx context.Context, tableID, rowID int32) (map[int32]int64, error)
	// AddDelta records a signed delta for (table, row, col). Delivery may be
	// deferred until Flush.
	AddDelta(tableID, rowID, colID int32, delta int64)
	// Flush delivers every recorded delta.
	Flush(ctx context.Context) error
	// Close releases the server connection after a final flush.
	Close(ctx context.Context) error
}
