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
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"lightlda"
	"lightlda/internal/meta"
)

var (
	// ErrTooManyDocs reports a block header above max_num_document.
	ErrTooManyDocs = errors.New("block holds more documents than max_num_document")
	// ErrBlockTooLarge reports a token payload above data_capacity.
	ErrBlockTooLarge = errors.New("block token payload exceeds data_capacity")
)

// DataBlock is one on-disk shard of the corpus. It owns two arenas sized
// once from the configured budgets (document offsets and interleaved
// token-topic ints) and reuses them across loads, so out-of-core streaming
// never reallocates.
type DataBlock struct {
	maxNumDocument int64
	memBlockSize   int64

	numDocs    int64
	corpusSize int64
	offsets    []int64
	tokens     []int32

	vocab    *meta.LocalVocab
	fileName string
	hasRead  bool
}

// NewDataBlock allocates the arenas for cfg's budgets.
func NewDataBlock(cfg *lightlda.Config) *DataBlock {
	return &DataBlock{
		maxNumDocument: cfg.MaxNumDocument,
		memBlockSize:   cfg.DataCapacity / 4,
		offsets:        make([]int64, cfg.MaxNumDocument+1),
		tokens:         make([]int32, cfg.DataCapacity/4),
	}
}

// NumDocs returns the number of documents currently loaded.
func (b *DataBlock) NumDocs() int64 { return b.numDocs }

// HasLoad reports whether the arenas hold an unwritten block.
func (b *DataBlock) HasLoad() bool { return b.hasRead }

// FileName returns the path of the last Read.
func (b *DataBlock) FileName() string { return b.fileName }

// Vocab returns the block's local vocab.
func (b *DataBlock) Vocab() *meta.LocalVocab { return b.vocab }

// SetVocab binds the block to its local vocab.
func (b *DataBlock) SetVocab(v *meta.LocalVocab) { b.vocab = v }

// Doc returns the view of document index. Valid until the block is evicted.
func (b *DataBlock) Doc(index int64) Document {
	return Document{data: b.tokens[b.offsets[index]:b.offsets[index+1]]}
}

// Read loads the block file:
//
//	int64 num_docs
//	int64 offset[0..num_docs]
//	int32 tokens[offset[num_docs]]
func (b *DataBlock) Read(fileName string) error {
	b.fileName = fileName
	f, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("read block: %w", err)
	}
	defer f.Close()
	r := bufio.NewReaderSize(f, 1<<20)

	if err := binary.Read(r, binary.LittleEndian, &b.numDocs); err != nil {
		return fmt.Errorf("read block header %s: %w", fileName, err)
	}
	if b.numDocs < 0 || b.numDocs > b.maxNumDocument {
		return fmt.Errorf("block %s: %d documents: %w", fileName, b.numDocs, ErrTooManyDocs)
	}
	if err := readInt64s(r, b.offsets[:b.numDocs+1]); err != nil {
		return fmt.Errorf("read block offsets %s: %w", fileName, err)
	}
	b.corpusSize = b.offsets[b.numDocs]
	if b.corpusSize > b.memBlockSize {
		return fmt.Errorf("block %s: %d token ints: %w", fileName, b.corpusSize, ErrBlockTooLarge)
	}
	for i := int64(0); i < b.numDocs; i++ {
		if b.offsets[i+1] < b.offsets[i] {
			return fmt.Errorf("block %s: offsets decrease at doc %d", fileName, i)
		}
	}
	if err := readInt32sInto(r, b.tokens[:b.corpusSize]); err != nil {
		return fmt.Errorf("read block tokens %s: %w", fileName, err)
	}
	b.hasRead = true
	return nil
}

// Write persists the block back to its source path through a temp file and
// an atomic rename, so a crash mid-write never corrupts the corpus. The
// in-place topic updates survive between iterations this way.
func (b *DataBlock) Write() error {
	tempFile := b.fileName + ".temp"
	f, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("write block: %w", err)
	}
	w := bufio.NewWriterSize(f, 1<<20)

	err = binary.Write(w, binary.LittleEndian, b.numDocs)
	if err == nil {
		err = writeInt64s(w, b.offsets[:b.numDocs+1])
	}
	if err == nil {
		err = writeInt32s(w, b.tokens[:b.corpusSize])
	}
	if err == nil {
		err = w.Flush()
	}
	if err == nil {
		err = f.Close()
	} else {
		f.Close()
	}
	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("write block %s: %w", tempFile, err)
	}
	if err := os.Rename(tempFile, b.fileName); err != nil {
		return fmt.Errorf("write block %s: %w", b.fileName, err)
	}
	b.hasRead = false
	return nil
}

// WriteBlockFile lays a fresh block out on disk from raw offsets and
// tokens. Used by the preprocessor; training write-back goes through
// DataBlock.Write.
func WriteBlockFile(path string, offsets []int64, tokens []int32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write block: %w", err)
	}
	w := bufio.NewWriterSize(f, 1<<20)
	numDocs := int64(len(offsets) - 1)

	err = binary.Write(w, binary.LittleEndian, numDocs)
	if err == nil {
		err = writeInt64s(w, offsets)
	}
	if err == nil {
		err = writeInt32s(w, tokens)
	}
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("write block %s: %w", path, err)
	}
	return f.Close()
}

func readInt64s(r io.Reader, dst []int64) error {
	buf := make([]byte, 8*len(dst))
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = int64(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return nil
}

func readInt32sInto(r io.Reader, dst []int32) error {
	// Chunked to keep the scratch buffer bounded for multi-GB blocks.
	const chunk = 1 << 18
	buf := make([]byte, 4*chunk)
	for len(dst) > 0 {
		n := len(dst)
		if n > chunk {
			n = chunk
		}
		if _, err := io.ReadFull(r, buf[:4*n]); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			dst[i] = int32(binary.LittleEndian.Uint32(buf[4*i:]))
		}
		dst = dst[n:]
	}
	return nil
}

func writeInt64s(w io.Writer, vals []int64) error {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(v))
	}
	_, err := w.Write(buf)
	return err
}

func writeInt32s(w io.Writer, vals []int32) error {
	const chunk = 1 << 18
	buf := make([]byte, 4*chunk)
	for len(vals) > 0 {
		n := len(vals)
		if n > chunk {
			n = chunk
		}
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(buf[4*i:], uint32(vals[i]))
		}
		if _, err := w.Write(buf[:4*n]); err != nil {
			return err
		}
		vals = vals[n:]
	}
	return nil
}
