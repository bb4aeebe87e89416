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

package ps

import (
	"context"
	"sync"
)

// localShards spreads row locks so concurrent worker flushes rarely collide.
const localShards = 64

// LocalServer is an in-process parameter server. Rows are sharded by row id
// across striped mutexes; AddDelta applies immediately, so Flush is a no-op.
// It backs single-node training and every test.
type LocalServer struct {
	shards [localShards]localShard
}

type localShard struct {
	mu   sync.Mutex
	rows map[rowKey]map[int32]int64
}

type rowKey struct {
	table int32
	row   int32
}

// NewLocalServer returns an empty in-process server.
func NewLocalServer() *LocalServer {
	s := &LocalServer{}
	for i := range s.shards {
		s.shards[i].rows = make(map[rowKey]map[int32]int64)
	}
	return s
}

func (s *LocalServer) shard(key rowKey) *localShard {
	h := uint32(key.table)*0x9e3779b9 + uint32(key.row)
	return &s.shards[h%localShards]
}

// GetRow copies the row's current counters.
func (s *LocalServer) GetRow(_ context.Context, tableID, rowID int32) (map[int32]int64, error) {
	key := rowKey{tableID, rowID}
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	out := make(map[int32]int64, len(sh.rows[key]))
	for col, v := range sh.rows[key] {
		out[col] = v
	}
	return out, nil
}

// AddDelta applies the delta immediately under the row's shard lock.
func (s *LocalServer) AddDelta(tableID, rowID, colID int32, delta int64) {
	key := rowKey{tableID, rowID}
	sh := s.shard(key)
	sh.mu.Lock()
	row := sh.rows[key]
	if row == nil {
		row = make(map[int32]int64)
		sh.rows[key] = row
	}
	row[colID] += delta
	sh.mu.Unlock()
}

// Flush is a no-op: deltas apply on arrival.
func (s *LocalServer) Flush(context.Context) error { return nil }

// Close is a no-op.
func (s *LocalServer) Close(context.Context) error { return nil }
