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

	"github.com/chewxy/math32"
)

// geluInPlace applies the exact GELU: x * 0.5 * (1 + erf(x / sqrt(2))).
// erf runs in float64; the inputs here are tiny (the bias MLP hidden layer).
func geluInPlace(data []float32) {
	for i, x := range data {
		x64 := float64(x)
		data[i] = float32(x64 * 0.5 * (1.0 + stdmath.Erf(x64*0.7071067811865476)))
	}
}

// reluInPlace applies max(0, x).
func reluInPlace(data []float32) {
	for i, x := range data {
		if x < 0 {
			data[i] = 0
		}
	}
}

// sigmoidInPlace applies 1 / (1 + exp(-x)).
func sigmoidInPlace(data []float32) {
	for i, x := range data {
		data[i] = 1 / (1 + math32.Exp(-x))
	}
}
