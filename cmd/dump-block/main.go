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

// Command dump-block converts one libSVM-format shard of a corpus into the
// trainer's binary block and vocab files.
//
//	dump-block -input corpus.libsvm -dict word_tf.txt -output_dir ./data -block 0
//
// Each input line is `<label>TAB<word_id>:<count> <word_id>:<count> ...`.
// The dictionary is a text vocab file whose third column is the global term
// frequency. The shard becomes block.<n> plus vocab.<n> (binary) and
// vocab.<n>.txt, holding the words that actually occur in the shard.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"lightlda"
	"lightlda/internal/corpus"
	"lightlda/internal/meta"
)

func main() {
	input := flag.String("input", "", "libSVM input shard")
	dict := flag.String("dict", "", "text vocab file with global term frequencies")
	outputDir := flag.String("output_dir", ".", "directory for block and vocab files")
	blockID := flag.Int("block", 0, "block number of this shard")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if *input == "" || *dict == "" {
		slog.Error("both -input and -dict are required")
		os.Exit(1)
	}
	if err := run(*input, *dict, *outputDir, int32(*blockID)); err != nil {
		slog.Error("dump failed", "err", err)
		os.Exit(1)
	}
}

func run(input, dict, outputDir string, blockID int32) error {
	dictVocab, err := meta.ReadVocabText(dict)
	if err != nil {
		return err
	}
	globalTF := make(map[int32]int32, len(dictVocab.Words))
	for i, w := range dictVocab.Words {
		if _, dup := globalTF[w]; dup {
			return fmt.Errorf("dict %s: duplicate word %d", dict, w)
		}
		// The dictionary's third column carries the corpus-wide frequency.
		globalTF[w] = dictVocab.LocalTF[i]
	}
	slog.Info("dictionary loaded", "words", len(globalTF))

	docs, localTF, err := readLibSVM(input)
	if err != nil {
		return err
	}
	slog.Info("shard parsed", "docs", len(docs))

	blockFile := filepath.Join(outputDir, fmt.Sprintf("block.%d", blockID))
	if err := writeBlock(blockFile, docs); err != nil {
		return err
	}

	words := make([]int32, 0, len(localTF))
	for w := range localTF {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool { return words[i] < words[j] })
	vf := &meta.VocabFile{}
	for _, w := range words {
		vf.Words = append(vf.Words, w)
		vf.TF = append(vf.TF, globalTF[w])
		vf.LocalTF = append(vf.LocalTF, localTF[w])
	}
	vocabFile := filepath.Join(outputDir, fmt.Sprintf("vocab.%d", blockID))
	if err := vf.Write(vocabFile); err != nil {
		return err
	}
	if err := vf.WriteText(vocabFile + ".txt"); err != nil {
		return err
	}
	slog.Info("block written", "block", blockFile, "vocab_size", len(words))
	return nil
}

// readLibSVM parses the shard into per-document token lists (topic 0,
// sorted by word) and the shard-local term frequencies. Documents are
// truncated at the maximum document length.
func readLibSVM(path string) ([][]int32, map[int32]int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open shard: %w", err)
	}
	defer f.Close()

	localTF := make(map[int32]int32)
	var docs [][]int32

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 64<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), " \r")
		if line == "" {
			continue
		}
		_, rest, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, nil, fmt.Errorf("%s:%d: not `label TAB pairs` format", path, lineNo)
		}
		var words []int32
		for _, field := range strings.Fields(rest) {
			idStr, countStr, ok := strings.Cut(field, ":")
			if !ok {
				return nil, nil, fmt.Errorf("%s:%d: bad pair %q", path, lineNo, field)
			}
			id, err := strconv.ParseInt(idStr, 10, 32)
			if err != nil {
				return nil, nil, fmt.Errorf("%s:%d: bad word id %q", path, lineNo, idStr)
			}
			count, err := strconv.ParseInt(countStr, 10, 32)
			if err != nil {
				return nil, nil, fmt.Errorf("%s:%d: bad count %q", path, lineNo, countStr)
			}
			for k := int64(0); k < count; k++ {
				if int32(len(words)) >= lightlda.MaxDocLength {
					break
				}
				words = append(words, int32(id))
				localTF[int32(id)]++
			}
			if int32(len(words)) >= lightlda.MaxDocLength {
				break
			}
		}
		sort.Slice(words, func(i, j int) bool { return words[i] < words[j] })
		docs = append(docs, words)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("read shard %s: %w", path, err)
	}
	return docs, localTF, nil
}

// writeBlock lays the documents out in the block file format, topics all
// zero and cursors all zero.
func writeBlock(path string, docs [][]int32) error {
	numDocs := int64(len(docs))
	offsets := make([]int64, numDocs+1)
	for i, words := range docs {
		offsets[i+1] = offsets[i] + int64(1+2*len(words))
	}
	tokens := make([]int32, offsets[numDocs])
	for i, words := range docs {
		region := tokens[offsets[i]:offsets[i+1]]
		for j, w := range words {
			region[1+2*j] = w
		}
	}
	return corpus.WriteBlockFile(path, offsets, tokens)
}
