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

package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAccumulate(t *testing.T) {
	before := testutil.ToFloat64(tokensSampledTotal)
	AddTokensSampled(100)
	AddTokensSampled(0)
	AddTokensSampled(-5)
	if got := testutil.ToFloat64(tokensSampledTotal) - before; got != 100 {
		t.Fatalf("tokens counter moved by %v, want 100", got)
	}

	beforeBatches := testutil.ToFloat64(flushBatchesTotal)
	beforeRows := testutil.ToFloat64(flushRowsTotal)
	ObserveFlush(7)
	if got := testutil.ToFloat64(flushBatchesTotal) - beforeBatches; got != 1 {
		t.Fatalf("batch counter moved by %v, want 1", got)
	}
	if got := testutil.ToFloat64(flushRowsTotal) - beforeRows; got != 7 {
		t.Fatalf("rows counter moved by %v, want 7", got)
	}
}

func TestGaugesTrackLatest(t *testing.T) {
	SetDocLikelihood(-123.5)
	SetWordLikelihood(-88)
	if got := testutil.ToFloat64(docLikelihood); got != -123.5 {
		t.Fatalf("doc likelihood gauge = %v", got)
	}
	if got := testutil.ToFloat64(wordLikelihood); got != -88 {
		t.Fatalf("word likelihood gauge = %v", got)
	}
}

func TestHistogramsAcceptObservations(t *testing.T) {
	// Smoke: must not panic or register twice.
	ObserveAliasBuild(3 * time.Millisecond)
	ObserveSampling(5 * time.Millisecond)
}

func TestServe_EmptyAddrIsNoop(t *testing.T) {
	Serve("")
}
