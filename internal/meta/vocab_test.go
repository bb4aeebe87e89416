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

package meta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVocabFile_BinaryRoundTrip(t *testing.T) {
	vf := &VocabFile{
		Words:   []int32{0, 5, 17, 123456},
		TF:      []int32{9, 1, 400, 2},
		LocalTF: []int32{3, 1, 100, 2},
	}
	path := filepath.Join(t.TempDir(), "vocab.0")
	require.NoError(t, vf.Write(path))

	got, err := ReadVocab(path)
	require.NoError(t, err)
	require.Equal(t, vf, got)
}

func TestVocabFile_TextRoundTrip(t *testing.T) {
	vf := &VocabFile{
		Words:   []int32{2, 3, 10},
		TF:      []int32{7, 8, 9},
		LocalTF: []int32{1, 2, 3},
	}
	path := filepath.Join(t.TempDir(), "vocab.0.txt")
	require.NoError(t, vf.WriteText(path))

	got, err := ReadVocabText(path)
	require.NoError(t, err)
	require.Equal(t, vf, got)
}

func TestReadVocab_RejectsUnsortedWords(t *testing.T) {
	vf := &VocabFile{
		Words:   []int32{5, 3},
		TF:      []int32{1, 1},
		LocalTF: []int32{1, 1},
	}
	path := filepath.Join(t.TempDir(), "vocab.0")
	require.NoError(t, vf.Write(path))
	_, err := ReadVocab(path)
	require.ErrorContains(t, err, "ascending")
}

func TestReadVocab_RejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.0")
	// Header claims 100 words but the payload is empty.
	require.NoError(t, os.WriteFile(path, []byte{100, 0, 0, 0}, 0o644))
	_, err := ReadVocab(path)
	require.Error(t, err)
}

func TestReadVocabText_HeaderMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte("3\n1\t2\t3\n"), 0o644))
	_, err := ReadVocabText(path)
	require.ErrorContains(t, err, "header")
}
