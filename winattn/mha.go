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
	"fmt"

	"github.com/ajroetker/go-winattn/winattn/workerpool"
)

// MHAConfig configures a self-attention block.
type MHAConfig struct {
	// EmbedDim is the channel width of the input and output sequences.
	EmbedDim int

	// NumHeads is the number of attention heads.
	NumHeads int

	// QKVDim is the per-head projection width. 0 derives EmbedDim/NumHeads,
	// which then must divide evenly.
	QKVDim int

	// Kernel selects the attention execution path (see Kernel).
	Kernel Kernel

	// Pool parallelizes per-head work when non-nil.
	Pool *workerpool.Pool
}

// MHA is a multi-head self-attention block: one fused projection producing
// query/key/value, the scaled dot-product core, and an output projection.
//
// All weights are allocated zeroed; assign values through Parameters before
// the first Forward.
type MHA struct {
	embedDim int
	numHeads int
	qkvDim   int
	kernel   Kernel
	pool     *workerpool.Pool

	wQKV []float32 // [3*numHeads*qkvDim, embedDim]
	bQKV []float32 // [3*numHeads*qkvDim]
	wOut []float32 // [embedDim, numHeads*qkvDim]
	bOut []float32 // [embedDim]
}

// NewMHA creates a self-attention block. It fails when EmbedDim does not
// divide evenly by NumHeads and no explicit QKVDim is given, or when the
// configured kernel is not supported in this build.
func NewMHA(cfg MHAConfig) (*MHA, error) {
	qkvDim, err := resolveQKVDim(cfg.EmbedDim, cfg.NumHeads, cfg.QKVDim)
	if err != nil {
		return nil, err
	}
	if !cfg.Kernel.valid() {
		return nil, fmt.Errorf("%w: kernel %d", ErrKernel, cfg.Kernel)
	}

	inner := cfg.NumHeads * qkvDim
	return &MHA{
		embedDim: cfg.EmbedDim,
		numHeads: cfg.NumHeads,
		qkvDim:   qkvDim,
		kernel:   cfg.Kernel,
		pool:     cfg.Pool,
		wQKV:     make([]float32, 3*inner*cfg.EmbedDim),
		bQKV:     make([]float32, 3*inner),
		wOut:     make([]float32, cfg.EmbedDim*inner),
		bOut:     make([]float32, cfg.EmbedDim),
	}, nil
}

// Forward computes self-attention over x, a [batch, tokens, EmbedDim]
// row-major sequence, and returns a sequence of the same shape.
func (m *MHA) Forward(x []float32, batch, tokens int, opt *Options) ([]float32, error) {
	if len(x) != batch*tokens*m.embedDim {
		return nil, fmt.Errorf("%w: input has %d elements, want %d*%d*%d",
			ErrShape, len(x), batch, tokens, m.embedDim)
	}

	rows := batch * tokens
	inner := m.numHeads * m.qkvDim

	qkv := getTempSlice(rows * 3 * inner)
	defer putTempSlice(qkv)
	Dense(m.kernel, x, m.wQKV, m.bQKV, qkv, rows, m.embedDim, 3*inner)

	// Split the fused projection into three packed sequences.
	q := getTempSlice(rows * inner)
	k := getTempSlice(rows * inner)
	v := getTempSlice(rows * inner)
	att := getTempSlice(rows * inner)
	defer putTempSlice(q)
	defer putTempSlice(k)
	defer putTempSlice(v)
	defer putTempSlice(att)
	for r := range rows {
		src := r * 3 * inner
		copy(q[r*inner:(r+1)*inner], qkv[src:src+inner])
		copy(k[r*inner:(r+1)*inner], qkv[src+inner:src+2*inner])
		copy(v[r*inner:(r+1)*inner], qkv[src+2*inner:src+3*inner])
	}

	SlicedSDPA(m.pool, m.kernel, q, k, v, att, batch, tokens, inner, m.numHeads, opt)

	out := make([]float32, rows*m.embedDim)
	Dense(m.kernel, att, m.wOut, m.bOut, out, rows, inner, m.embedDim)
	return out, nil
}

// Parameters exposes the projection weights for external initialization.
func (m *MHA) Parameters() []Parameter {
	return []Parameter{
		{Name: "qkv_proj.weight", Data: m.wQKV},
		{Name: "qkv_proj.bias", Data: m.bQKV},
		{Name: "head_proj.weight", Data: m.wOut},
		{Name: "head_proj.bias", Data: m.bOut},
	}
}

// resolveQKVDim validates head geometry and derives the per-head width.
func resolveQKVDim(embedDim, numHeads, qkvDim int) (int, error) {
	if embedDim <= 0 || numHeads <= 0 || qkvDim < 0 {
		return 0, fmt.Errorf("%w: embedDim=%d numHeads=%d qkvDim=%d",
			ErrShape, embedDim, numHeads, qkvDim)
	}
	if qkvDim == 0 {
		if embedDim%numHeads != 0 {
			return 0, fmt.Errorf("%w: embedDim %d not divisible by numHeads %d and no qkvDim given",
				ErrShape, embedDim, numHeads)
		}
		qkvDim = embedDim / numHeads
	}
	return qkvDim, nil
}
