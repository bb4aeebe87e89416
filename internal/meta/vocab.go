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

// Package meta holds the per-block metadata of the corpus: which words occur
// in each block, their term frequencies, and the slice plan that keeps
// model, alias and delta structures under their byte budgets.
package meta

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LocalVocab lists the words occurring in one data block, ascending, plus
// the slice partition computed by the planner. Immutable after Meta.Init.
type LocalVocab struct {
	words      []int32
	sliceIndex []int32
}

// Size returns the number of distinct words in the block.
func (v *LocalVocab) Size() int32 { return int32(len(v.words)) }

// NumSlices returns the number of slices in the plan.
func (v *LocalVocab) NumSlices() int32 { return int32(len(v.sliceIndex)) - 1 }

// Slice returns the words of slice s, ascending.
func (v *LocalVocab) Slice(s int32) []int32 {
	return v.words[v.sliceIndex[s]:v.sliceIndex[s+1]]
}

// LastWord returns the largest word id of slice s. Sampling of a document
// stops at the first word beyond it.
func (v *LocalVocab) LastWord(s int32) int32 {
	return v.words[v.sliceIndex[s+1]-1]
}

// VocabFile is the payload of a per-block vocab file.
type VocabFile struct {
	Words   []int32
	TF      []int32
	LocalTF []int32
}

// ReadVocab parses the binary vocab format:
//
//	int32 count
//	int32 word_id[count]   (ascending)
//	int32 global_tf[count]
//	int32 local_tf[count]
func ReadVocab(path string) (*VocabFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	count, err := readInt32(r)
	if err != nil {
		return nil, fmt.Errorf("read vocab header %s: %w", path, err)
	}
	if count < 0 {
		return nil, fmt.Errorf("vocab %s: negative word count %d", path, count)
	}
	vf := &VocabFile{}
	for _, dst := range []*[]int32{&vf.Words, &vf.TF, &vf.LocalTF} {
		*dst = make([]int32, count)
		if err := readInt32s(r, *dst); err != nil {
			return nil, fmt.Errorf("read vocab payload %s: %w", path, err)
		}
	}
	for i := 1; i < len(vf.Words); i++ {
		if vf.Words[i] <= vf.Words[i-1] {
			return nil, fmt.Errorf("vocab %s: word ids not strictly ascending at %d", path, i)
		}
	}
	return vf, nil
}

// Write stores vf in the binary vocab format.
func (vf *VocabFile) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vocab: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := writeInt32(w, int32(len(vf.Words))); err == nil {
		for _, vals := range [][]int32{vf.Words, vf.TF, vf.LocalTF} {
			if err = writeInt32s(w, vals); err != nil {
				break
			}
		}
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("write vocab %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write vocab %s: %w", path, err)
	}
	return f.Close()
}

// ReadVocabText parses the text vocab format: a header line with the word
// count, then one `word_id<TAB>global_tf<TAB>local_tf` line per word.
func ReadVocabText(path string) (*VocabFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return nil, fmt.Errorf("vocab %s: missing header line", path)
	}
	count, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil {
		return nil, fmt.Errorf("vocab %s: bad header: %w", path, err)
	}
	vf := &VocabFile{
		Words:   make([]int32, 0, count),
		TF:      make([]int32, 0, count),
		LocalTF: make([]int32, 0, count),
	}
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("vocab %s: want 3 fields, got %d", path, len(fields))
		}
		var vals [3]int64
		for i, s := range fields {
			if vals[i], err = strconv.ParseInt(s, 10, 32); err != nil {
				return nil, fmt.Errorf("vocab %s: %w", path, err)
			}
		}
		vf.Words = append(vf.Words, int32(vals[0]))
		vf.TF = append(vf.TF, int32(vals[1]))
		vf.LocalTF = append(vf.LocalTF, int32(vals[2]))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocab %s: %w", path, err)
	}
	if len(vf.Words) != count {
		return nil, fmt.Errorf("vocab %s: header says %d words, found %d", path, count, len(vf.Words))
	}
	return vf, nil
}

// WriteText stores vf in the text vocab format.
func (vf *VocabFile) WriteText(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vocab: %w", err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%d\n", len(vf.Words))
	for i, word := range vf.Words {
		fmt.Fprintf(w, "%d\t%d\t%d\n", word, vf.TF[i], vf.LocalTF[i])
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write vocab %s: %w", path, err)
	}
	return f.Close()
}

func readInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func readInt32s(r io.Reader, dst []int32) error {
	buf := make([]byte, 4*len(dst))
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = int32(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return nil
}

func writeInt32(w io.Writer, v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}

func writeInt32s(w io.Writer, vals []int32) error {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
	}
	_, err := w.Write(buf)
	return err
}
