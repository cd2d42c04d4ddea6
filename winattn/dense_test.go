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

import "testing"

func TestDenseKernelEquivalence(t *testing.T) {
	tests := []struct {
		name             string
		batch, in, out   int
		useBias          bool
	}{
		{"1x1x1", 1, 1, 1, false},
		{"4x8x16", 4, 8, 16, false},
		{"4x8x16/bias", 4, 8, 16, true},
		{"16x64x32/bias", 16, 64, 32, true},
		{"3x7x5", 3, 7, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := ramp(tt.batch*tt.in, 0.02, -0.4)
			w := ramp(tt.out*tt.in, 0.015, -0.3)
			var bias []float32
			if tt.useBias {
				bias = ramp(tt.out, 0.1, -0.5)
			}

			fused := make([]float32, tt.batch*tt.out)
			ref := make([]float32, tt.batch*tt.out)
			Dense(KernelFused, x, w, bias, fused, tt.batch, tt.in, tt.out)
			Dense(KernelReference, x, w, bias, ref, tt.batch, tt.in, tt.out)

			requireClose(t, fused, ref, 1e-4)
		})
	}
}

func TestDenseIdentityWeight(t *testing.T) {
	const n = 6
	w := make([]float32, n*n)
	for i := range n {
		w[i*n+i] = 1
	}
	x := ramp(2*n, 0.3, -0.7)

	for _, kernel := range []Kernel{KernelFused, KernelReference} {
		out := make([]float32, 2*n)
		Dense(kernel, x, w, nil, out, 2, n, n)
		requireClose(t, out, x, 1e-6)
	}
}
