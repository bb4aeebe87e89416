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
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"lightlda"
	"lightlda/internal/meta"
)

// ErrMalformedModel reports an unparsable model file line.
var ErrMalformedModel = errors.New("malformed model line")

// LocalModel serves counter rows loaded once from a model directory.
// Mutators are no-ops; it backs inference only.
type LocalModel struct {
	cfg     *lightlda.Config
	meta    *meta.Meta
	rows    []*Int32Row
	summary *SummaryRow
	empty   *Int32Row
}

// NewLocalModel returns an unloaded model for cfg.
func NewLocalModel(cfg *lightlda.Config, m *meta.Meta) *LocalModel {
	return &LocalModel{
		cfg:     cfg,
		meta:    m,
		rows:    make([]*Int32Row, cfg.NumVocabs),
		summary: NewSummaryRow(cfg.NumTopics),
		empty:   NewSparseRow(1),
	}
}

// Init scans the input directory for server model dumps and loads them. The
// word-topic table comes from server_<digits>_table_0.model files, the
// summary row from server_<digits>_table_1.model.
func (m *LocalModel) Init() error {
	wordTopicFiles, err := listMatching(m.cfg.InputDir,
		fmt.Sprintf(`^server_[0-9]+_table_%d\.model$`, lightlda.WordTopicTable))
	if err != nil {
		return err
	}
	summaryFiles, err := listMatching(m.cfg.InputDir,
		fmt.Sprintf(`^server_[0-9]+_table_%d\.model$`, lightlda.SummaryTable))
	if err != nil {
		return err
	}
	if len(wordTopicFiles) == 0 || len(summaryFiles) == 0 {
		return fmt.Errorf("no model files under %s", m.cfg.InputDir)
	}
	for _, path := range wordTopicFiles {
		if err := m.loadWordTopic(path); err != nil {
			return err
		}
	}
	for _, path := range summaryFiles {
		if err := m.loadSummary(path); err != nil {
			return err
		}
	}
	return nil
}

// WordTopicRow returns word's loaded row, or an empty row when the word
// never occurred.
func (m *LocalModel) WordTopicRow(word int32) *Int32Row {
	if row := m.rows[word]; row != nil {
		return row
	}
	return m.empty
}

// Summary returns the loaded per-topic totals.
func (m *LocalModel) Summary() *SummaryRow { return m.summary }

// AddWordTopic is a no-op: the local model is read-only.
func (m *LocalModel) AddWordTopic(word, topic, delta int32) {}

// AddSummary is a no-op: the local model is read-only.
func (m *LocalModel) AddSummary(topic int32, delta int64) {}

// loadWordTopic parses `word_id k1:c1 k2:c2 ...` lines. Words with zero
// term frequency in this node's corpus are skipped: no document here can
// propose them, so their rows would only burn budget.
func (m *LocalModel) loadWordTopic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 64<<20)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		word, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil || word < 0 || int32(word) >= m.cfg.NumVocabs {
			return fmt.Errorf("%s: word id %q: %w", path, fields[0], ErrMalformedModel)
		}
		if m.meta.TF(int32(word)) == 0 {
			continue
		}
		row := NewWordRow(m.meta.TF(int32(word)), m.cfg.NumTopics)
		for _, field := range fields[1:] {
			topic, count, err := parsePair(field)
			if err != nil || topic < 0 || topic >= m.cfg.NumTopics {
				return fmt.Errorf("%s: token %q: %w", path, field, ErrMalformedModel)
			}
			row.Add(topic, count)
		}
		m.rows[word] = row
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read model %s: %w", path, err)
	}
	return nil
}

// loadSummary parses the single summary line; the first field is ignored.
func (m *LocalModel) loadSummary(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 64<<20)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return fmt.Errorf("read model %s: %w", path, err)
		}
		return nil
	}
	fields := strings.Fields(sc.Text())
	for _, field := range fields[1:] {
		topic, count, err := parsePair(field)
		if err != nil || topic < 0 || topic >= m.cfg.NumTopics {
			return fmt.Errorf("%s: token %q: %w", path, field, ErrMalformedModel)
		}
		m.summary.Add(topic, int64(count))
	}
	return nil
}

// parsePair splits a `topic:count` token.
func parsePair(field string) (topic, count int32, err error) {
	i := strings.LastIndexByte(field, ':')
	if i < 0 {
		return 0, 0, ErrMalformedModel
	}
	t, err := strconv.ParseInt(field[:i], 10, 32)
	if err != nil {
		return 0, 0, err
	}
	c, err := strconv.ParseInt(field[i+1:], 10, 32)
	if err != nil {
		return 0, 0, err
	}
	return int32(t), int32(c), nil
}

// listMatching returns the sorted paths of dir entries whose base name
// matches pattern.
func listMatching(dir, pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan model dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && re.MatchString(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
