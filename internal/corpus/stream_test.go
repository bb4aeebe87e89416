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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeBlocks creates numBlocks block files, block i holding i+1 documents
// of two tokens each.
func writeBlocks(t *testing.T, dir string, numBlocks int32) {
	t.Helper()
	for i := int32(0); i < numBlocks; i++ {
		docs := make([][][2]int32, i+1)
		for d := range docs {
			docs[d] = [][2]int32{{int32(d), 0}, {int32(d) + 1, 0}}
		}
		writeTestBlock(t, filepath.Join(dir, blockPath("", i)), docs)
	}
}

func TestMemoryStream_RoundRobin(t *testing.T) {
	dir := t.TempDir()
	writeBlocks(t, dir, 3)

	cfg := testConfig(dir)
	cfg.NumBlocks = 3
	stream, err := NewDataStream(cfg)
	require.NoError(t, err)
	require.IsType(t, &memoryStream{}, stream)

	for pass := 0; pass < 2; pass++ {
		for i := int64(1); i <= 3; i++ {
			require.NoError(t, stream.BeforeAccess())
			require.Equal(t, i, stream.CurrBlock().NumDocs())
			require.NoError(t, stream.EndAccess())
		}
	}
	require.NoError(t, stream.Close())
}

func TestNewDataStream_SingleBlockStaysInMemory(t *testing.T) {
	dir := t.TempDir()
	writeBlocks(t, dir, 1)

	cfg := testConfig(dir)
	cfg.NumBlocks = 1
	cfg.OutOfCore = true
	stream, err := NewDataStream(cfg)
	require.NoError(t, err)
	require.IsType(t, &memoryStream{}, stream)
	require.NoError(t, stream.Close())
}

// TestDiskStream_OutOfCoreRoundTrip runs the full consumer protocol over 4
// blocks and 3 iterations (plus the init and dump passes the stream serves)
// and verifies the corpus is intact on disk afterwards.
func TestDiskStream_OutOfCoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	const numBlocks = 4
	writeBlocks(t, dir, numBlocks)

	cfg := testConfig(dir)
	cfg.NumBlocks = numBlocks
	cfg.NumIterations = 3
	cfg.OutOfCore = true
	stream, err := NewDataStream(cfg)
	require.NoError(t, err)
	require.IsType(t, &diskStream{}, stream)

	passes := int(cfg.NumIterations) + 2
	for pass := 0; pass < passes; pass++ {
		for i := int64(1); i <= numBlocks; i++ {
			require.NoError(t, stream.BeforeAccess())
			block := stream.CurrBlock()
			require.Equal(t, i, block.NumDocs())
			// Mutate topics in place; the write-back must persist them.
			for d := int64(0); d < block.NumDocs(); d++ {
				block.Doc(d).SetTopic(0, int32(pass))
			}
			require.NoError(t, stream.EndAccess())
		}
	}
	require.NoError(t, stream.Close())

	// Every block got written back with its final mutation.
	cfg2 := testConfig(dir)
	for i := int32(0); i < numBlocks; i++ {
		b := NewDataBlock(cfg2)
		require.NoError(t, b.Read(filepath.Join(dir, blockPath("", i))))
		require.Equal(t, int64(i+1), b.NumDocs())
		for d := int64(0); d < b.NumDocs(); d++ {
			require.Equal(t, int32(2), b.Doc(d).Size())
			require.Equal(t, int32(passes-1), b.Doc(d).Topic(0))
		}
	}
}

func TestDiskStream_ReadFailureIsTerminal(t *testing.T) {
	dir := t.TempDir()
	writeBlocks(t, dir, 2) // block.2 is missing

	cfg := testConfig(dir)
	cfg.NumBlocks = 3
	cfg.NumIterations = 1
	cfg.OutOfCore = true
	stream, err := NewDataStream(cfg)
	require.NoError(t, err)

	// The first two blocks arrive, then the producer fails.
	sawErr := false
	for i := 0; i < 3; i++ {
		if err := stream.BeforeAccess(); err != nil {
			sawErr = true
			break
		}
		if err := stream.EndAccess(); err != nil {
			sawErr = true
			break
		}
	}
	require.True(t, sawErr, "missing block must surface as an error")
	require.Error(t, stream.Close())
}
