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

// Package sampler implements the LightLDA Metropolis-Hastings document
// sampler: per token, mh_steps cycles of a word-proposal step (drawn from
// the alias table) followed by a doc-proposal step, each accepted by the
// tempered ratio with the minus-self correction.
package sampler

import (
	"fmt"

	"lightlda"
	"lightlda/internal/alias"
	"lightlda/internal/corpus"
	"lightlda/internal/model"
)

// DocSampler samples documents. One instance per worker: it owns an RNG and
// the reusable doc-topic counter.
type DocSampler struct {
	alpha    float32
	beta     float32
	alphaSum float32
	betaSum  float32

	numTopics  int32
	mhSteps    int32
	subtractor int32
	train      bool
	approx     bool

	rng             *lightlda.XorshiftRNG
	docTopicCounter *model.Int32Row
}

// New returns a sampler for cfg seeded with seed.
func New(cfg *lightlda.Config, seed uint32) *DocSampler {
	return &DocSampler{
		alpha:           cfg.Alpha,
		beta:            cfg.Beta,
		alphaSum:        cfg.AlphaSum(),
		betaSum:         cfg.BetaSum(),
		numTopics:       cfg.NumTopics,
		mhSteps:         cfg.MHSteps,
		subtractor:      cfg.Subtractor(),
		train:           !cfg.Inference,
		approx:          cfg.ApproxSampler,
		rng:             lightlda.NewRNG(seed),
		docTopicCounter: model.NewSparseRow(lightlda.MaxDocLength),
	}
}

// DocTopicCounter exposes the reusable counter, for the evaluator.
func (s *DocSampler) DocTopicCounter() *model.Int32Row { return s.docTopicCounter }

// SampleOneDoc resumes doc at its cursor, samples every token belonging to
// the current slice (word <= lastWord) and leaves the cursor at the first
// token of the next slice. Returns the number of tokens sampled.
func (s *DocSampler) SampleOneDoc(doc corpus.Document, slice, lastWord int32,
	m model.Accessor, a *alias.Table) (int32, error) {

	s.docTopicCounter.Clear()
	doc.CountTopics(s.docTopicCounter)

	var numTokens int32
	cursor := doc.Cursor()
	if slice == 0 {
		cursor = 0
	}
	for ; cursor != doc.Size(); cursor++ {
		word := doc.Word(cursor)
		if word > lastWord {
			break
		}
		oldTopic := doc.Topic(cursor)
		var newTopic int32
		var err error
		if s.approx {
			newTopic, err = s.approxSample(doc, word, oldTopic, m, a)
		} else {
			newTopic, err = s.sample(doc, word, oldTopic, m, a)
		}
		if err != nil {
			return numTokens, err
		}
		if oldTopic != newTopic {
			doc.SetTopic(cursor, newTopic)
			s.docTopicCounter.Add(oldTopic, -1)
			s.docTopicCounter.Add(newTopic, 1)
			if s.train {
				m.AddWordTopic(word, oldTopic, -1)
				m.AddSummary(oldTopic, -1)
				m.AddWordTopic(word, newTopic, 1)
				m.AddSummary(newTopic, 1)
			}
		}
		numTokens++
	}
	doc.SetCursor(cursor)
	return numTokens, nil
}

// sample runs the full MH cycle for one token. s.docTopicCounter must hold
// the document's current histogram; oldTopic is the token's assignment at
// entry and stays the reference for the minus-self correction across all
// cycles.
func (s *DocSampler) sample(doc corpus.Document, word, oldTopic int32,
	m model.Accessor, a *alias.Table) (int32, error) {

	wordTopicRow := m.WordTopicRow(word)
	summaryRow := m.Summary()
	cur := oldTopic

	for i := int32(0); i < s.mhSteps; i++ {
		// Word proposal.
		t := a.Propose(word, s.rng)
		if t < 0 || t >= s.numTopics {
			return 0, fmt.Errorf("invalid topic %d from word proposal for word %d", t, word)
		}
		if t != cur {
			rejection := s.rng.RandDouble()

			wTCnt := wordTopicRow.At(t)
			wSCnt := wordTopicRow.At(cur)
			nT := summaryRow.At(t)
			nS := summaryRow.At(cur)

			nTDAlpha := float32(s.docTopicCounter.At(t)) + s.alpha
			nSDAlpha := float32(s.docTopicCounter.At(cur)) + s.alpha
			nTWBeta := float32(wTCnt) + s.beta
			nTBetaSum := float32(nT) + s.betaSum
			nSWBeta := float32(wSCnt) + s.beta
			nSBetaSum := float32(nS) + s.betaSum
			if cur == oldTopic {
				nSDAlpha--
				nSWBeta -= float32(s.subtractor)
				nSBetaSum -= float32(s.subtractor)
			}
			if t == oldTopic {
				nTDAlpha--
				nTWBeta -= float32(s.subtractor)
				nTBetaSum -= float32(s.subtractor)
			}

			proposalS := (float32(wSCnt) + s.beta) / (float32(nS) + s.betaSum)
			proposalT := (float32(wTCnt) + s.beta) / (float32(nT) + s.betaSum)

			nominator := nTDAlpha * nTWBeta * nSBetaSum * proposalS
			denominator := nSDAlpha * nSWBeta * nTBetaSum * proposalT

			pi := float64(nominator) / float64(denominator)
			mask := -b2i(rejection < pi)
			cur = (t & mask) | (cur & ^mask)
		}

		// Doc proposal: a token-uniform draw with probability L/(L+alphaK),
		// else a uniform topic.
		nTDOrAlpha := s.rng.RandDouble() * float64(float32(doc.Size())+s.alphaSum)
		if nTDOrAlpha < float64(doc.Size()) {
			t = doc.Topic(int32(nTDOrAlpha))
		} else {
			t = s.rng.RandK(s.numTopics)
		}
		if t != cur {
			rejection := s.rng.RandDouble()

			wTCnt := wordTopicRow.At(t)
			wSCnt := wordTopicRow.At(cur)
			nT := summaryRow.At(t)
			nS := summaryRow.At(cur)

			nTDAlpha := float32(s.docTopicCounter.At(t)) + s.alpha
			nSDAlpha := float32(s.docTopicCounter.At(cur)) + s.alpha
			nTWBeta := float32(wTCnt) + s.beta
			nTBetaSum := float32(nT) + s.betaSum
			nSWBeta := float32(wSCnt) + s.beta
			nSBetaSum := float32(nS) + s.betaSum
			if cur == oldTopic {
				nSDAlpha--
				nSWBeta -= float32(s.subtractor)
				nSBetaSum -= float32(s.subtractor)
			}
			if t == oldTopic {
				nTDAlpha--
				nTWBeta -= float32(s.subtractor)
				nTBetaSum -= float32(s.subtractor)
			}

			proposalS := nSDAlpha
			proposalT := nTDAlpha

			nominator := nTDAlpha * nTWBeta * nSBetaSum * proposalS
			denominator := nSDAlpha * nSWBeta * nTBetaSum * proposalT

			pi := float64(nominator) / float64(denominator)
			mask := -b2i(rejection < pi)
			cur = (t & mask) | (cur & ^mask)
		}
	}
	return cur, nil
}

// approxSample drops one factor on each side of the acceptance ratio. It
// converges comparably in practice and trades exactness for speed.
func (s *DocSampler) approxSample(doc corpus.Document, word, oldTopic int32,
	m model.Accessor, a *alias.Table) (int32, error) {

	wordTopicRow := m.WordTopicRow(word)
	summaryRow := m.Summary()
	cur := oldTopic

	for i := int32(0); i < s.mhSteps; i++ {
		t := a.Propose(word, s.rng)
		if t < 0 || t >= s.numTopics {
			return 0, fmt.Errorf("invalid topic %d from word proposal for word %d", t, word)
		}
		if t != cur {
			nominator := float32(s.docTopicCounter.At(t)) + s.alpha
			denominator := float32(s.docTopicCounter.At(cur)) + s.alpha
			if t == oldTopic {
				nominator--
			}
			if cur == oldTopic {
				denominator--
			}
			pi := float64(nominator) / float64(denominator)
			rejection := s.rng.RandDouble()
			mask := -b2i(rejection < pi)
			cur = (t & mask) | (cur & ^mask)
		}

		nTDOrAlpha := s.rng.RandDouble() * float64(float32(doc.Size())+s.alphaSum)
		if nTDOrAlpha < float64(doc.Size()) {
			t = doc.Topic(int32(nTDOrAlpha))
		} else {
			t = s.rng.RandK(s.numTopics)
		}
		if t != cur {
			nTWBeta := float32(wordTopicRow.At(t)) + s.beta
			nSWBeta := float32(wordTopicRow.At(cur)) + s.beta
			nTBetaSum := float32(summaryRow.At(t)) + s.betaSum
			nSBetaSum := float32(summaryRow.At(cur)) + s.betaSum
			if t == oldTopic {
				nTWBeta -= float32(s.subtractor)
				nTBetaSum -= float32(s.subtractor)
			}
			if cur == oldTopic {
				nSWBeta -= float32(s.subtractor)
				nSBetaSum -= float32(s.subtractor)
			}
			pi := float64(nTWBeta*nSBetaSum) / float64(nSWBeta*nTBetaSum)
			rejection := s.rng.RandDouble()
			mask := -b2i(rejection < pi)
			cur = (t & mask) | (cur & ^mask)
		}
	}
	return cur, nil
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
