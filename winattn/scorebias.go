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
	"cmp"
	"fmt"
	stdmath "math"
	"slices"

	"github.com/chewxy/math32"

	"github.com/ajroetker/go-winattn/winattn/layout"
)

// WindowScoreBias produces a learned relative-position bias for attention
// scores within a window. Positions at equal spatial offset share one bias
// value: for a window of N = H*W positions there are at most (2H-1)*(2W-1)
// distinct offsets, so the bias network runs once per distinct offset
// instead of once per the N*N score matrix entries.
//
// The offset and index tables depend only on the window geometry. They are
// computed once at construction, in a deterministic canonical order, and
// never mutated afterwards, so a WindowScoreBias is safe for concurrent use
// once its MLP weights are initialized.
//
// The bias matrix is added to pre-softmax attention scores by the caller,
// typically through Options.Mask with zero strides. It is not symmetric in
// general: delta(i,j) = -delta(j,i), and the network is not constrained to
// be odd or even.
type WindowScoreBias struct {
	win    layout.Window
	hidden int

	index []int32   // [N*N] position pair -> distinct-offset table index
	delta []float32 // [U, 2] distinct offsets, normalized to [-1, 1]

	w1 []float32 // [hidden, 2]
	b1 []float32 // [hidden]
	w2 []float32 // [1, hidden]
	b2 []float32 // [1]
}

// NewWindowScoreBias builds the offset tables for a window geometry.
// hiddenDim is the bias network's hidden width; 0 derives 2*sqrt(H*W).
func NewWindowScoreBias(win layout.Window, hiddenDim int) (*WindowScoreBias, error) {
	if win.H <= 0 || win.W <= 0 {
		return nil, fmt.Errorf("%w: window %dx%d must be positive", ErrShape, win.H, win.W)
	}
	if hiddenDim < 0 {
		return nil, fmt.Errorf("%w: hidden dim %d must not be negative", ErrShape, hiddenDim)
	}
	if hiddenDim == 0 {
		hiddenDim = int(stdmath.Sqrt(float64(win.Tokens()))) * 2
	}

	index, delta := genOffsetTables(win)
	return &WindowScoreBias{
		win:    win,
		hidden: hiddenDim,
		index:  index,
		delta:  delta,
		w1:     make([]float32, hiddenDim*2),
		b1:     make([]float32, hiddenDim),
		w2:     make([]float32, hiddenDim),
		b2:     make([]float32, 1),
	}, nil
}

type spatialOffset struct {
	dy, dx int
}

// genOffsetTables enumerates all pairwise coordinate deltas on the window
// grid, deduplicates them into a canonically ordered fixed table, and
// records each pair's table index. Ordering is lexicographic by (dy, dx),
// so two instances with the same geometry build identical tables.
func genOffsetTables(win layout.Window) ([]int32, []float32) {
	n := win.Tokens()

	pairs := make([]spatialOffset, n*n)
	for i := range n {
		iy, ix := i/win.W, i%win.W
		for j := range n {
			jy, jx := j/win.W, j%win.W
			pairs[i*n+j] = spatialOffset{dy: iy - jy, dx: ix - jx}
		}
	}

	uniq := make([]spatialOffset, len(pairs))
	copy(uniq, pairs)
	slices.SortFunc(uniq, compareOffsets)
	uniq = slices.Compact(uniq)

	index := make([]int32, len(pairs))
	for i, p := range pairs {
		u, _ := slices.BinarySearchFunc(uniq, p, compareOffsets)
		index[i] = int32(u)
	}

	var maxAbs float32
	for _, u := range uniq {
		maxAbs = max(maxAbs, math32.Abs(float32(u.dy)), math32.Abs(float32(u.dx)))
	}
	delta := make([]float32, 2*len(uniq))
	if maxAbs > 0 { // a 1x1 window has only the zero offset
		for i, u := range uniq {
			delta[2*i] = float32(u.dy) / maxAbs
			delta[2*i+1] = float32(u.dx) / maxAbs
		}
	}
	return index, delta
}

func compareOffsets(a, b spatialOffset) int {
	if c := cmp.Compare(a.dy, b.dy); c != 0 {
		return c
	}
	return cmp.Compare(a.dx, b.dx)
}

// Forward evaluates the bias network once per distinct offset and gathers
// the results into the full [N, N] pairwise score bias, N = H*W. It takes
// no input: the result depends only on window geometry and learned weights.
func (b *WindowScoreBias) Forward() []float32 {
	u := len(b.delta) / 2

	hiddenBuf := getTempSlice(u * b.hidden)
	perOffset := getTempSlice(u)
	defer putTempSlice(hiddenBuf)
	defer putTempSlice(perOffset)

	Dense(KernelAuto, b.delta, b.w1, b.b1, hiddenBuf, u, 2, b.hidden)
	geluInPlace(hiddenBuf)
	Dense(KernelAuto, hiddenBuf, b.w2, b.b2, perOffset, u, b.hidden, 1)

	bias := make([]float32, len(b.index))
	for i, idx := range b.index {
		bias[i] = perOffset[idx]
	}
	return bias
}

// UniqueOffsets returns the number of distinct relative offsets.
func (b *WindowScoreBias) UniqueOffsets() int {
	return len(b.delta) / 2
}

// IndexTable returns a copy of the pair-to-offset index table, length
// (H*W)^2.
func (b *WindowScoreBias) IndexTable() []int32 {
	return slices.Clone(b.index)
}

// OffsetTable returns a copy of the normalized distinct-offset table,
// [UniqueOffsets, 2] row-major.
func (b *WindowScoreBias) OffsetTable() []float32 {
	return slices.Clone(b.delta)
}

// Parameters exposes the bias network weights.
func (b *WindowScoreBias) Parameters() []Parameter {
	return []Parameter{
		{Name: "to_bias.0.weight", Data: b.w1},
		{Name: "to_bias.0.bias", Data: b.b1},
		{Name: "to_bias.2.weight", Data: b.w2},
		{Name: "to_bias.2.bias", Data: b.b2},
	}
}
