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
	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Fused kernel: both matrix products run as single GEMM calls.

// scoresFused computes scores = softmax(q @ k^T * scale + mask), GEMM-backed.
// Shapes are as in scoresReference.
func scoresFused(q, k, mask, scores []float32, seqLen, kvLen, headDim int, scale float32) {
	gemmScores(q, k, scores, seqLen, kvLen, headDim, scale)

	for i := range seqLen {
		sOff := i * kvLen
		if mask != nil {
			mOff := i * kvLen
			for j := range kvLen {
				scores[sOff+j] += mask[mOff+j]
			}
		}
		softmaxRowFused(scores[sOff : sOff+kvLen])
	}
}

// scoresCausalFused is scoresFused with an implicit lower-triangular mask.
func scoresCausalFused(q, k, scores []float32, seqLen, kvLen, headDim int, scale float32) {
	gemmScores(q, k, scores, seqLen, kvLen, headDim, scale)

	negInf := math32.Inf(-1)
	offset := kvLen - seqLen
	for i := range seqLen {
		sOff := i * kvLen
		for j := i + offset + 1; j < kvLen; j++ {
			scores[sOff+j] = negInf
		}
		softmaxRowFused(scores[sOff : sOff+kvLen])
	}
}

// gemmScores computes scores = q @ k^T * scale.
func gemmScores(q, k, scores []float32, seqLen, kvLen, headDim int, scale float32) {
	qm := blas32.General{Rows: seqLen, Cols: headDim, Stride: headDim, Data: q}
	km := blas32.General{Rows: kvLen, Cols: headDim, Stride: headDim, Data: k}
	sm := blas32.General{Rows: seqLen, Cols: kvLen, Stride: kvLen, Data: scores}
	blas32.Gemm(blas.NoTrans, blas.Trans, scale, qm, km, 0, sm)
}

// weightedSumFused computes output = scores @ v as one GEMM.
func weightedSumFused(scores, v, output []float32, seqLen, kvLen, headDim int) {
	sm := blas32.General{Rows: seqLen, Cols: kvLen, Stride: kvLen, Data: scores}
	vm := blas32.General{Rows: kvLen, Cols: headDim, Stride: headDim, Data: v}
	om := blas32.General{Rows: seqLen, Cols: headDim, Stride: headDim, Data: output}
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, sm, vm, 0, om)
}

// softmaxRowFused applies softmax in place in float32.
func softmaxRowFused(row []float32) {
	if len(row) == 0 {
		return
	}

	maxVal := row[0]
	for i := 1; i < len(row); i++ {
		if row[i] > maxVal {
			maxVal = row[i]
		}
	}

	var expSum float32
	for i := range row {
		row[i] = math32.Exp(row[i] - maxVal)
		expSum += row[i]
	}

	invSum := 1 / expSum
	for i := range row {
		row[i] *= invSum
	}
}
