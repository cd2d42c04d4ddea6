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

import "fmt"

// SEBlock is a channel-last squeeze-and-excitation gate over sequences:
// channels are averaged across tokens, squeezed through a reduction layer
// and re-expanded to a per-channel sigmoid gate that rescales the input.
type SEBlock struct {
	channels int
	reduced  int
	kernel   Kernel

	w1 []float32 // [reduced, channels]
	b1 []float32 // [reduced], nil without bias
	w2 []float32 // [channels, reduced]
	b2 []float32 // [channels], nil without bias
}

// NewSEBlock creates a squeeze-excite gate. reduction 0 defaults to 8;
// channels/reduction must be at least 1. withBias adds bias terms to both
// projections.
func NewSEBlock(channels, reduction int, withBias bool, kernel Kernel) (*SEBlock, error) {
	if reduction == 0 {
		reduction = 8
	}
	if channels <= 0 || reduction < 0 || channels/reduction < 1 {
		return nil, fmt.Errorf("%w: channels=%d reduction=%d", ErrShape, channels, reduction)
	}
	if !kernel.valid() {
		return nil, fmt.Errorf("%w: kernel %d", ErrKernel, kernel)
	}

	reduced := channels / reduction
	s := &SEBlock{
		channels: channels,
		reduced:  reduced,
		kernel:   kernel,
		w1:       make([]float32, reduced*channels),
		w2:       make([]float32, channels*reduced),
	}
	if withBias {
		s.b1 = make([]float32, reduced)
		s.b2 = make([]float32, channels)
	}
	return s, nil
}

// Forward rescales x, a [batch, tokens, channels] row-major sequence, by a
// learned per-channel gate in (0, 1) and returns a same-shaped sequence.
func (s *SEBlock) Forward(x []float32, batch, tokens int) ([]float32, error) {
	if len(x) != batch*tokens*s.channels {
		return nil, fmt.Errorf("%w: input has %d elements, want %d*%d*%d",
			ErrShape, len(x), batch, tokens, s.channels)
	}

	// Squeeze: per-batch channel means across tokens.
	pooled := getTempSlice(batch * s.channels)
	defer putTempSlice(pooled)
	invTokens := 1 / float32(tokens)
	for b := range batch {
		row := pooled[b*s.channels : (b+1)*s.channels]
		for c := range row {
			row[c] = 0
		}
		for t := range tokens {
			off := (b*tokens + t) * s.channels
			for c := range row {
				row[c] += x[off+c]
			}
		}
		for c := range row {
			row[c] *= invTokens
		}
	}

	// Excite: reduce, ReLU, expand, sigmoid.
	squeezed := getTempSlice(batch * s.reduced)
	gate := getTempSlice(batch * s.channels)
	defer putTempSlice(squeezed)
	defer putTempSlice(gate)
	Dense(s.kernel, pooled, s.w1, s.b1, squeezed, batch, s.channels, s.reduced)
	reluInPlace(squeezed)
	Dense(s.kernel, squeezed, s.w2, s.b2, gate, batch, s.reduced, s.channels)
	sigmoidInPlace(gate)

	out := make([]float32, len(x))
	for b := range batch {
		g := gate[b*s.channels : (b+1)*s.channels]
		for t := range tokens {
			off := (b*tokens + t) * s.channels
			for c, gc := range g {
				out[off+c] = x[off+c] * gc
			}
		}
	}
	return out, nil
}

// Parameters exposes the gate weights.
func (s *SEBlock) Parameters() []Parameter {
	params := []Parameter{
		{Name: "lin1.weight", Data: s.w1},
		{Name: "lin2.weight", Data: s.w2},
	}
	if s.b1 != nil {
		params = append(params,
			Parameter{Name: "lin1.bias", Data: s.b1},
			Parameter{Name: "lin2.bias", Data: s.b2})
	}
	return params
}
