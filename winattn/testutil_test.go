// Copyright 2025 go-winattn Authors
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

package winattn

import (
	stdmath "math"
	"testing"
)

// ramp fills a slice with a deterministic small-magnitude ramp.
func ramp(n int, step, offset float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i%37)*step + offset
	}
	return s
}

// fillParameters assigns deterministic values to module weights so forward
// outputs are reproducible without an external initializer.
func fillParameters(params []Parameter) {
	for pi, p := range params {
		for i := range p.Data {
			p.Data[i] = float32((i*7+pi*13)%19-9) * 0.05
		}
	}
}

// requireClose fails the test when a and b differ by more than tol anywhere.
func requireClose(t *testing.T, a, b []float32, tol float64) {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		diff := stdmath.Abs(float64(a[i]) - float64(b[i]))
		if diff > tol || stdmath.IsNaN(diff) {
			t.Fatalf("index %d: %v vs %v (diff %v > %v)", i, a[i], b[i], diff, tol)
		}
	}
}
