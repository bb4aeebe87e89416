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
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// RedisEvaler abstracts the minimal surface we need from a Redis client.
// Implementations may wrap github.com/redis/go-redis/v9 or any equivalent.
type RedisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Close() error
}

// GoRedisEvaler wraps github.com/redis/go-redis/v9.
type GoRedisEvaler struct{ c *redis.Client }

// NewGoRedisEvaler connects to addr, e.g. "127.0.0.1:6379".
func NewGoRedisEvaler(addr string) *GoRedisEvaler {
	return &GoRedisEvaler{c: redis.NewClient(&redis.Options{Addr: addr})}
}

func (g *GoRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return g.c.Eval(ctx, script, keys, args...).Result()
}

func (g *GoRedisEvaler) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return g.c.HGetAll(ctx, key).Result()
}

func (g *GoRedisEvaler) Close() error { return g.c.Close() }

// redisBatchScript applies one flush batch idempotently:
// 1) SETNX lda:batch:<id> 1 with a TTL for leak protection
// 2) if set, HINCRBY every (row hash, column, delta) triple
// Re-delivered batches (retry after a lost reply) make no changes, keeping
// the counters monotone under delivery order.
const redisBatchScript = `
local marker = KEYS[1]
local set = redis.call('SETNX', marker, 1)
if set == 0 then
  return 0
end
redis.call('EXPIRE', marker, tonumber(ARGV[1]))
local i = 2
while i <= #ARGV do
  redis.call('HINCRBY', ARGV[i], ARGV[i+1], tonumber(ARGV[i+2]))
  i = i + 3
end
return 1
`

// RedisRowKey names the hash that holds one counter row.
func RedisRowKey(tableID, rowID int32) string {
	return fmt.Sprintf("lda:table:%d:row:%d", tableID, rowID)
}

// RedisBatchMarkerKey names the idempotency marker of one flush batch.
func RedisBatchMarkerKey(id string) string { return "lda:batch:" + id }

// redisMaxBatchArgs bounds the argv of a single EVAL; larger flushes are
// chunked into several idempotent batches.
const redisMaxBatchArgs = 3000

// RedisServer is a parameter server on a shared Redis: every counter row is
// a hash, deltas are buffered locally and delivered by Flush as idempotent
// Lua batches tagged with a fresh batch id.
type RedisServer struct {
	client    RedisEvaler
	markerTTL time.Duration

	mu      sync.Mutex
	pending []Delta
}

// NewRedisServer returns a server over client. markerTTL guards against
// unbounded marker growth; it must exceed the longest retry window.
func NewRedisServer(client RedisEvaler, markerTTL time.Duration) *RedisServer {
	if markerTTL <= 0 {
		markerTTL = 24 * time.Hour
	}
	return &RedisServer{client: client, markerTTL: markerTTL}
}

// GetRow reads the row hash.
func (s *RedisServer) GetRow(ctx context.Context, tableID, rowID int32) (map[int32]int64, error) {
	fields, err := s.client.HGetAll(ctx, RedisRowKey(tableID, rowID))
	if err != nil {
		return nil, fmt.Errorf("redis get row table=%d row=%d: %w", tableID, rowID, err)
	}
	out := make(map[int32]int64, len(fields))
	for col, val := range fields {
		c, err := strconv.ParseInt(col, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("redis row table=%d row=%d: bad column %q", tableID, rowID, col)
		}
		v, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis row table=%d row=%d: bad count %q", tableID, rowID, val)
		}
		out[int32(c)] = v
	}
	return out, nil
}

// AddDelta buffers the delta until the next Flush.
func (s *RedisServer) AddDelta(tableID, rowID, colID int32, delta int64) {
	s.mu.Lock()
	s.pending = append(s.pending, Delta{tableID, rowID, colID, delta})
	s.mu.Unlock()
}

// Flush coalesces the buffered deltas per (row, column) and delivers them
// in chunked idempotent batches.
func (s *RedisServer) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	type cell struct {
		key rowKey
		col int32
	}
	merged := make(map[cell]int64, len(pending))
	for _, d := range pending {
		merged[cell{rowKey{d.TableID, d.RowID}, d.ColID}] += d.Value
	}

	args := make([]interface{}, 0, redisMaxBatchArgs+1)
	ttlSeconds := int(s.markerTTL.Seconds())
	args = append(args, ttlSeconds)
	for c, v := range merged {
		if v == 0 {
			continue
		}
		args = append(args, RedisRowKey(c.key.table, c.key.row), c.col, v)
		if len(args) >= redisMaxBatchArgs {
			if err := s.deliver(ctx, args); err != nil {
				return err
			}
			args = args[:1]
		}
	}
	if len(args) > 1 {
		return s.deliver(ctx, args)
	}
	return nil
}

func (s *RedisServer) deliver(ctx context.Context, args []interface{}) error {
	batchID := uuid.NewString()
	keys := []string{RedisBatchMarkerKey(batchID)}
	if _, err := s.client.Eval(ctx, redisBatchScript, keys, args...); err != nil {
		return fmt.Errorf("redis flush batch %s: %w", batchID, err)
	}
	return nil
}

// Close flushes any stragglers and closes the client.
func (s *RedisServer) Close(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	return s.client.Close()
}
