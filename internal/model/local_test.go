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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lightlda"
	"lightlda/internal/meta"
)

// localModelFixture writes vocab.0 plus model files and returns an
// initialized meta for them.
func localModelFixture(t *testing.T, wordTopic, summary string) (*lightlda.Config, *meta.Meta) {
	t.Helper()
	dir := t.TempDir()
	vf := &meta.VocabFile{
		Words:   []int32{0, 1, 2},
		TF:      []int32{4, 60, 3},
		LocalTF: []int32{4, 60, 3},
	}
	require.NoError(t, vf.Write(filepath.Join(dir, "vocab.0")))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "server_0_table_0.model"), []byte(wordTopic), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "server_0_table_1.model"), []byte(summary), 0o644))
	// Decoys that must not match the scan.
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "server_x_table_0.model"), []byte("junk"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "notes.txt"), []byte("junk"), 0o644))

	cfg := lightlda.DefaultConfig()
	cfg.InputDir = dir
	cfg.NumVocabs = 3
	cfg.NumTopics = 100
	cfg.Inference = true
	m := meta.New(&cfg)
	require.NoError(t, m.Init())
	return &cfg, m
}

func TestLocalModel_LoadAndServe(t *testing.T) {
	cfg, mt := localModelFixture(t,
		"0 1:3 5:2\n1 0:60\n",
		"sum 0:60 1:3 5:2\n")

	m := NewLocalModel(cfg, mt)
	require.NoError(t, m.Init())

	// Word 0: tf=4, 4*2 < 100 -> sparse.
	row := m.WordTopicRow(0)
	require.False(t, row.IsDense())
	require.Equal(t, int32(3), row.At(1))
	require.Equal(t, int32(2), row.At(5))

	// Word 1: tf=60, 60*2 > 100 -> dense.
	require.True(t, m.WordTopicRow(1).IsDense())
	require.Equal(t, int32(60), m.WordTopicRow(1).At(0))

	// Word 2 never appeared in the model files: empty row, not nil.
	require.Equal(t, int32(0), m.WordTopicRow(2).NonzeroSize())

	require.Equal(t, int64(60), m.Summary().At(0))
	require.Equal(t, int64(2), m.Summary().At(5))

	// Mutators are no-ops at inference.
	m.AddWordTopic(0, 1, 5)
	m.AddSummary(0, 5)
	require.Equal(t, int32(3), m.WordTopicRow(0).At(1))
	require.Equal(t, int64(60), m.Summary().At(0))
}

func TestLocalModel_MalformedLineIsFatal(t *testing.T) {
	cfg, mt := localModelFixture(t, "0 1:3 oops\n", "sum 0:1\n")
	m := NewLocalModel(cfg, mt)
	require.ErrorIs(t, m.Init(), ErrMalformedModel)
}

func TestLocalModel_TopicOutOfRangeIsFatal(t *testing.T) {
	cfg, mt := localModelFixture(t, "0 100:3\n", "sum 0:1\n")
	m := NewLocalModel(cfg, mt)
	require.ErrorIs(t, m.Init(), ErrMalformedModel)
}

func TestLocalModel_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	vf := &meta.VocabFile{Words: []int32{0}, TF: []int32{1}, LocalTF: []int32{1}}
	require.NoError(t, vf.Write(filepath.Join(dir, "vocab.0")))

	cfg := lightlda.DefaultConfig()
	cfg.InputDir = dir
	cfg.NumVocabs = 1
	cfg.Inference = true
	m := meta.New(&cfg)
	require.NoError(t, m.Init())

	require.ErrorContains(t, NewLocalModel(&cfg, m).Init(), "no model files")
}
