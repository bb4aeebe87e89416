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

package corpus

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"lightlda"
)

// DataStream produces data blocks in the training order. BeforeAccess and
// EndAccess bracket exclusive use of the current block by the worker pool.
type DataStream interface {
	// BeforeAccess obtains exclusive use of the next block.
	BeforeAccess() error
	// CurrBlock is valid between BeforeAccess and the matching EndAccess.
	CurrBlock() *DataBlock
	// EndAccess releases the block; the stream may reclaim or evict it.
	EndAccess() error
	// Close flushes outstanding state and stops background work.
	Close() error
}

// NewDataStream selects the stream implementation: a disk-backed double
// buffer when out_of_core is set and there is more than one block, else the
// round-robin in-memory store.
func NewDataStream(cfg *lightlda.Config) (DataStream, error) {
	if cfg.OutOfCore && cfg.NumBlocks != 1 {
		return newDiskStream(cfg)
	}
	return newMemoryStream(cfg)
}

// blockPath returns the path of block i under dir.
func blockPath(dir string, i int32) string {
	return filepath.Join(dir, fmt.Sprintf("block.%d", i))
}

// memoryStream keeps every block resident and serves them round-robin.
type memoryStream struct {
	blocks []*DataBlock
	index  int
}

func newMemoryStream(cfg *lightlda.Config) (*memoryStream, error) {
	s := &memoryStream{blocks: make([]*DataBlock, cfg.NumBlocks)}
	for i := int32(0); i < cfg.NumBlocks; i++ {
		b := NewDataBlock(cfg)
		if err := b.Read(blockPath(cfg.InputDir, i)); err != nil {
			return nil, err
		}
		s.blocks[i] = b
	}
	return s, nil
}

func (s *memoryStream) BeforeAccess() error {
	s.index %= len(s.blocks)
	return nil
}

func (s *memoryStream) CurrBlock() *DataBlock { return s.blocks[s.index] }

func (s *memoryStream) EndAccess() error {
	s.index++
	return nil
}

func (s *memoryStream) Close() error {
	for _, b := range s.blocks {
		if b.HasLoad() {
			if err := b.Write(); err != nil {
				return err
			}
		}
	}
	return nil
}

// diskStream double-buffers blocks between a background preload goroutine
// (the producer) and the worker pool (the consumer). While the workers
// sample block i, the producer writes back and refills the idle buffer with
// block i+1. The producer makes num_iterations+2 reading passes (see preload)
// plus a final write-back drain, so iteration N+1 overlaps the persistence
// of N.
type diskStream struct {
	cfg  *lightlda.Config
	cur  *DataBlock
	toIO chan *DataBlock // buffers idle or awaiting write-back/refill
	out  chan *DataBlock // buffers loaded and ready for the workers

	errOnce sync.Once
	err     error
	failed  chan struct{}
	done    chan struct{}
}

func newDiskStream(cfg *lightlda.Config) (*diskStream, error) {
	s := &diskStream{
		cfg:    cfg,
		toIO:   make(chan *DataBlock, 2),
		out:    make(chan *DataBlock, 1),
		failed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.toIO <- NewDataBlock(cfg)
	s.toIO <- NewDataBlock(cfg)
	go s.preload()
	return s, nil
}

func (s *diskStream) BeforeAccess() error {
	select {
	case b := <-s.out:
		s.cur = b
		return nil
	case <-s.failed:
		return s.err
	}
}

func (s *diskStream) CurrBlock() *DataBlock { return s.cur }

func (s *diskStream) EndAccess() error {
	if s.cur == nil {
		return nil
	}
	select {
	case s.toIO <- s.cur:
		s.cur = nil
		return nil
	case <-s.failed:
		return s.err
	}
}

func (s *diskStream) Close() error {
	<-s.done
	return s.err
}

func (s *diskStream) fail(err error) {
	s.errOnce.Do(func() {
		s.err = err
		close(s.failed)
	})
}

// preload is the producer loop. Any I/O error is terminal: a partially
// processed corpus has no usable recovery point.
//
// The consumer makes num_iterations+2 passes over the blocks: one to
// initialize topic assignments, the training iterations, and one to dump
// the doc-topic output.
func (s *diskStream) preload() {
	defer close(s.done)
	totalReads := (int64(s.cfg.NumIterations) + 2) * int64(s.cfg.NumBlocks)
	next := int32(0)
	for i := int64(0); i < totalReads; i++ {
		var b *DataBlock
		select {
		case b = <-s.toIO:
		case <-s.failed:
			return
		}
		if b.HasLoad() {
			if err := s.writeBack(b); err != nil {
				s.fail(err)
				return
			}
		}
		if err := b.Read(blockPath(s.cfg.InputDir, next)); err != nil {
			s.fail(err)
			return
		}
		select {
		case s.out <- b:
		case <-s.failed:
			return
		}
		next = (next + 1) % s.cfg.NumBlocks
	}
	// Final drain: both buffers come back loaded with the last two blocks.
	for i := 0; i < 2; i++ {
		select {
		case b := <-s.toIO:
			if b.HasLoad() {
				if err := s.writeBack(b); err != nil {
					s.fail(err)
					return
				}
			}
		case <-s.failed:
			return
		}
	}
}

// writeBack persists a block before its buffer is reused, retrying once.
func (s *diskStream) writeBack(b *DataBlock) error {
	err := b.Write()
	if err == nil {
		return nil
	}
	slog.Warn("block write-back failed, retrying", "file", b.FileName(), "err", err)
	if err = b.Write(); err != nil {
		return fmt.Errorf("block write-back retry failed: %w", err)
	}
	return nil
}
