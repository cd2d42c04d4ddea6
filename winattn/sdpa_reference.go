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

import stdmath "math"

// Reference kernel: plain scalar loops with float64 accumulation. This is
// the guaranteed-correct path the fused kernel is verified against, and the
// forced path for batch dimensions above MaxFusedBatch.

// scoresReference computes scores = softmax(q @ k^T * scale + mask) row by row.
//
//   - q:      [seqLen, headDim] (row-major)
//   - k:      [kvLen, headDim]
//   - mask:   [seqLen, kvLen] additive mask, nil for no mask
//   - scores: [seqLen, kvLen] output
func scoresReference(q, k, mask, scores []float32, seqLen, kvLen, headDim int, scale float32) {
	for i := range seqLen {
		qOff := i * headDim
		sOff := i * kvLen

		for j := range kvLen {
			kOff := j * headDim
			var sum float64
			for p := range headDim {
				sum += float64(q[qOff+p]) * float64(k[kOff+p])
			}
			scores[sOff+j] = float32(sum * float64(scale))
		}

		if mask != nil {
			mOff := i * kvLen
			for j := range kvLen {
				scores[sOff+j] += mask[mOff+j]
			}
		}

		softmaxRowReference(scores[sOff : sOff+kvLen])
	}
}

// scoresCausalReference is scoresReference with an implicit lower-triangular
// mask: row i attends to positions j <= i + (kvLen - seqLen).
func scoresCausalReference(q, k, scores []float32, seqLen, kvLen, headDim int, scale float32) {
	negInf := float32(stdmath.Inf(-1))
	offset := kvLen - seqLen

	for i := range seqLen {
		qOff := i * headDim
		sOff := i * kvLen
		causalEnd := i + offset + 1

		for j := range kvLen {
			if j >= causalEnd {
				scores[sOff+j] = negInf
				continue
			}
			kOff := j * headDim
			var sum float64
			for p := range headDim {
				sum += float64(q[qOff+p]) * float64(k[kOff+p])
			}
			scores[sOff+j] = float32(sum * float64(scale))
		}

		softmaxRowReference(scores[sOff : sOff+kvLen])
	}
}

// weightedSumReference computes output = scores @ v.
//
//   - scores: [seqLen, kvLen]
//   - v:      [kvLen, headDim]
//   - output: [seqLen, headDim]
func weightedSumReference(scores, v, output []float32, seqLen, kvLen, headDim int) {
	for i := range seqLen {
		sOff := i * kvLen
		oOff := i * headDim

		for d := range headDim {
			var sum float64
			for j := range kvLen {
				sum += float64(scores[sOff+j]) * float64(v[j*headDim+d])
			}
			output[oOff+d] = float32(sum)
		}
	}
}

// softmaxRowReference applies softmax in place with float64 accumulation.
func softmaxRowReference(row []float32) {
	if len(row) == 0 {
		return
	}

	maxVal := row[0]
	for i := 1; i < len(row); i++ {
		if row[i] > maxVal {
			maxVal = row[i]
		}
	}

	var expSum float64
	for i := range row {
		row[i] = float32(stdmath.Exp(float64(row[i] - maxVal)))
		expSum += float64(row[i])
	}

	invSum := 1.0 / expSum
	for i := range row {
		row[i] = float32(float64(row[i]) * invSum)
	}
}
