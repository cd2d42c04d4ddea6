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
	"math/rand/v2"

	"github.com/chewxy/math32"

	"github.com/ajroetker/go-winattn/winattn/workerpool"
)

// SDPA computes single-head scaled dot-product attention:
//
//	output = softmax(q @ k^T * scale + mask) @ v
//
//   - q:      [seqLen, headDim] (row-major)
//   - k:      [kvLen, headDim]
//   - v:      [kvLen, headDim]
//   - mask:   [seqLen, kvLen] additive mask, nil for no mask
//   - output: [seqLen, headDim]
//   - scale:  typically 1/sqrt(headDim)
//
// dropoutP > 0 drops attention weights after softmax (see Options.DropoutP).
// A scratch buffer for the score matrix is taken from an internal pool.
func SDPA(kernel Kernel, q, k, v, mask, output []float32, seqLen, kvLen, headDim int, scale, dropoutP float32) {
	if seqLen == 0 || kvLen == 0 || headDim == 0 {
		return
	}

	scores := getTempSlice(seqLen * kvLen)
	defer putTempSlice(scores)

	switch resolveKernel(kernel, 1) {
	case KernelFused:
		scoresFused(q, k, mask, scores, seqLen, kvLen, headDim, scale)
		dropoutScores(scores, dropoutP)
		weightedSumFused(scores, v, output, seqLen, kvLen, headDim)
	default:
		scoresReference(q, k, mask, scores, seqLen, kvLen, headDim, scale)
		dropoutScores(scores, dropoutP)
		weightedSumReference(scores, v, output, seqLen, kvLen, headDim)
	}
}

// SDPACausal computes single-head causal scaled dot-product attention. The
// mask is implicit: position i attends only to positions j <= i + (kvLen -
// seqLen). Parameters are otherwise as in SDPA.
func SDPACausal(kernel Kernel, q, k, v, output []float32, seqLen, kvLen, headDim int, scale, dropoutP float32) {
	if seqLen == 0 || kvLen == 0 || headDim == 0 {
		return
	}

	scores := getTempSlice(seqLen * kvLen)
	defer putTempSlice(scores)

	switch resolveKernel(kernel, 1) {
	case KernelFused:
		scoresCausalFused(q, k, scores, seqLen, kvLen, headDim, scale)
		dropoutScores(scores, dropoutP)
		weightedSumFused(scores, v, output, seqLen, kvLen, headDim)
	default:
		scoresCausalReference(q, k, scores, seqLen, kvLen, headDim, scale)
		dropoutScores(scores, dropoutP)
		weightedSumReference(scores, v, output, seqLen, kvLen, headDim)
	}
}

// SlicedSDPA computes multi-head scaled dot-product attention over packed
// sequences. q, k, v and output are [batch, tokens, channels] row-major;
// channels is reinterpreted as numHeads heads of channels/numHeads each,
// attention runs per head with scale 1/sqrt(channels/numHeads), and head
// outputs are merged back into the packed layout.
//
// channels must divide evenly by numHeads; this is a caller-level invariant
// and is not re-checked here. A batch above MaxFusedBatch forces the
// reference kernel (see Kernel). Heads are independent and run in parallel
// on pool when it is non-nil.
func SlicedSDPA(pool *workerpool.Pool, kernel Kernel, q, k, v, output []float32, batch, tokens, channels, numHeads int, opt *Options) {
	if batch == 0 || tokens == 0 || channels == 0 || numHeads == 0 {
		return
	}
	if opt == nil {
		opt = &Options{}
	}

	headDim := channels / numHeads
	scale := 1 / math32.Sqrt(float32(headDim))
	kernel = resolveKernel(kernel, batch)
	maskLen := tokens * tokens

	doHead := func(idx int) {
		b := idx / numHeads
		h := idx % numHeads

		qh := getTempSlice(tokens * headDim)
		kh := getTempSlice(tokens * headDim)
		vh := getTempSlice(tokens * headDim)
		oh := getTempSlice(tokens * headDim)
		defer putTempSlice(qh)
		defer putTempSlice(kh)
		defer putTempSlice(vh)
		defer putTempSlice(oh)

		// Gather this head's columns into contiguous buffers. In the packed
		// layout head h occupies columns [h*headDim, (h+1)*headDim) of every
		// token row.
		base := b*tokens*channels + h*headDim
		for t := range tokens {
			src := base + t*channels
			copy(qh[t*headDim:(t+1)*headDim], q[src:src+headDim])
			copy(kh[t*headDim:(t+1)*headDim], k[src:src+headDim])
			copy(vh[t*headDim:(t+1)*headDim], v[src:src+headDim])
		}

		if opt.Causal {
			SDPACausal(kernel, qh, kh, vh, oh, tokens, tokens, headDim, scale, opt.DropoutP)
		} else {
			var mask []float32
			if opt.Mask != nil {
				mOff := b*opt.MaskBatchStride + h*opt.MaskHeadStride
				mask = opt.Mask[mOff : mOff+maskLen]
			}
			SDPA(kernel, qh, kh, vh, mask, oh, tokens, tokens, headDim, scale, opt.DropoutP)
		}

		// Scatter the head output back into the packed layout.
		for t := range tokens {
			dst := base + t*channels
			copy(output[dst:dst+headDim], oh[t*headDim:(t+1)*headDim])
		}
	}

	totalHeads := batch * numHeads
	if pool != nil {
		pool.ParallelForAtomic(totalHeads, doHead)
	} else {
		for i := range totalHeads {
			doHead(i)
		}
	}
}

// dropoutScores applies inverted dropout to attention weights in place.
func dropoutScores(scores []float32, p float32) {
	if p <= 0 {
		return
	}
	invKeep := 1 / (1 - p)
	for i := range scores {
		if rand.Float32() < p {
			scores[i] = 0
		} else {
			scores[i] *= invKeep
		}
	}
}
