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

package trainer

import (
	"math"

	"lightlda"
	"lightlda/internal/corpus"
	"lightlda/internal/model"
)

// Likelihood is split into a doc term and a word term; the model's total
// log likelihood is their sum plus the normalization term.

// ComputeOneDocLLH returns one document's contribution to the doc
// likelihood. counter is scratch; its previous content is discarded.
func ComputeOneDocLLH(doc corpus.Document, counter *model.Int32Row, cfg *lightlda.Config) float64 {
	if doc.Size() == 0 {
		return 0
	}
	alpha := float64(cfg.Alpha)
	k := float64(cfg.NumTopics)
	llh := lgamma(k*alpha) - k*lgamma(alpha)
	var nonzero float64
	counter.Clear()
	doc.CountTopics(counter)
	counter.ForEach(func(_, v int32) {
		llh += lgamma(float64(v) + alpha)
		nonzero++
	})
	llh += (k - nonzero) * lgamma(alpha)
	llh -= lgamma(float64(doc.Size()) + alpha*k)
	return llh
}

// ComputeOneWordLLH returns one word's contribution to the word likelihood.
func ComputeOneWordLLH(row *model.Int32Row, cfg *lightlda.Config) float64 {
	if row.NonzeroSize() == 0 {
		return 0
	}
	beta := float64(cfg.Beta)
	var llh, nonzero float64
	row.ForEach(func(_, v int32) {
		llh += lgamma(float64(v) + beta)
		nonzero++
	})
	llh += (float64(cfg.NumTopics) - nonzero) * lgamma(beta)
	return llh
}

// NormalizeWordLLH returns the word-likelihood normalization term, a
// function of the summary row only.
func NormalizeWordLLH(summary *model.SummaryRow, cfg *lightlda.Config) float64 {
	beta := float64(cfg.Beta)
	v := float64(cfg.NumVocabs)
	llh := float64(cfg.NumTopics) * (lgamma(beta*v) - v*lgamma(beta))
	for k := int32(0); k < cfg.NumTopics; k++ {
		llh -= lgamma(float64(summary.At(k)) + v*beta)
	}
	return llh
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
