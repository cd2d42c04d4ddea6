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

// CrossMHA is a multi-head cross-attention block: queries are projected from
// one sequence, keys and values from another of identical shape.
//
// All weights are allocated zeroed; assign values through Parameters before
// the first Forward.
type CrossMHA struct {
	embedDim int
	numHeads int
	qkvDim   int
	kernel   Kernel
	pool     *workerpool.Pool

	wQ   []float32 // [numHeads*qkvDim, embedDim]
	bQ   []float32 // [numHeads*qkvDim]
	wKV  []float32 // [2*numHeads*qkvDim, embedDim]
	bKV  []float32 // [2*numHeads*qkvDim]
	wOut []float32 // [embedDim, numHeads*qkvDim]
	bOut []float32 // [embedDim]
}

// NewCrossMHA creates a cross-attention block. Construction preconditions
// are the same as NewMHA.
func NewCrossMHA(cfg MHAConfig) (*CrossMHA, error) {
	qkvDim, err := resolveQKVDim(cfg.EmbedDim, cfg.NumHeads, cfg.QKVDim)
	if err != nil {
		return nil, err
	}
	if !cfg.Kernel.valid() {
		return nil, fmt.Errorf("%w: kernel %d", ErrKernel, cfg.Kernel)
	}

	inner := cfg.NumHeads * qkvDim
	return &CrossMHA{
		embedDim: cfg.EmbedDim,
		numHeads: cfg.NumHeads,
		qkvDim:   qkvDim,
		kernel:   cfg.Kernel,
		pool:     cfg.Pool,
		wQ:       make([]float32, inner*cfg.EmbedDim),
		bQ:       make([]float32, inner),
		wKV:      make([]float32, 2*inner*cfg.EmbedDim),
		bKV:      make([]float32, 2*inner),
		wOut:     make([]float32, cfg.EmbedDim*inner),
		bOut:     make([]float32, cfg.EmbedDim),
	}, nil
}

// Forward computes cross-attention: qSrc supplies the queries, kvSrc the
// keys and values. Both are [batch, tokens, EmbedDim] row-major and must
// have identical shapes. The result has the shape of qSrc.
func (m *CrossMHA) Forward(qSrc, kvSrc []float32, batch, tokens int, opt *Options) ([]float32, error) {
	if len(qSrc) != len(kvSrc) {
		return nil, fmt.Errorf("%w: q has %d elements, kv has %d",
			ErrShape, len(qSrc), len(kvSrc))
	}
	if len(qSrc) != batch*tokens*m.embedDim {
		return nil, fmt.Errorf("%w: input has %d elements, want %d*%d*%d",
			ErrShape, len(qSrc), batch, tokens, m.embedDim)
	}

	rows := batch * tokens
	inner := m.numHeads * m.qkvDim

	q := getTempSlice(rows * inner)
	kv := getTempSlice(rows * 2 * inner)
	k := getTempSlice(rows * inner)
	v := getTempSlice(rows * inner)
	att := getTempSlice(rows * inner)
	defer putTempSlice(q)
	defer putTempSlice(kv)
	defer putTempSlice(k)
	defer putTempSlice(v)
	defer putTempSlice(att)

	Dense(m.kernel, qSrc, m.wQ, m.bQ, q, rows, m.embedDim, inner)
	Dense(m.kernel, kvSrc, m.wKV, m.bKV, kv, rows, m.embedDim, 2*inner)
	for r := range rows {
		src := r * 2 * inner
		copy(k[r*inner:(r+1)*inner], kv[src:src+inner])
		copy(v[r*inner:(r+1)*inner], kv[src+inner:src+2*inner])
	}

	SlicedSDPA(m.pool, m.kernel, q, k, v, att, batch, tokens, inner, m.numHeads, opt)

	out := make([]float32, rows*m.embedDim)
	Dense(m.kernel, att, m.wOut, m.bOut, out, rows, inner, m.embedDim)
	return out, nil
}

// Parameters exposes the projection weights for external initialization.
func (m *CrossMHA) Parameters() []Parameter {
	return []Parameter{
		{Name: "q_proj.weight", Data: m.wQ},
		{Name: "q_proj.bias", Data: m.bQ},
		{Name: "kv_proj.weight", Data: m.wKV},
		{Name: "kv_proj.bias", Data: m.bKV},
		{Name: "head_proj.weight", Data: m.wOut},
		{Name: "head_proj.bias", Data: m.bOut},
	}
}
