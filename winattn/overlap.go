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

	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/go-winattn/winattn/layout"
	"github.com/ajroetker/go-winattn/winattn/workerpool"
)

// OverlapWindowMHA2d widens the receptive field of windowed attention
// without full quadratic cost: it attends once on the unshifted window grid
// and once on a grid shifted by half a window (realized by zero-padding and
// cropping), then sums the two branch outputs. Every position thus gets
// context from two differently aligned window partitions.
//
// The branch outputs are summed as-is, without averaging or weighting. That
// matches the observed behavior of the design this module derives from;
// whether it was intentional there is unknown, so it is preserved rather
// than corrected.
//
// Unlike WindowMHA2d, the q/k/v projection is a single shared 1x1 pointwise
// projection over the full feature map, applied once before windowing.
//
// Window extents should be even: the half-window padding of an odd window
// leaves the padded map indivisible, which Forward reports as ErrShape.
type OverlapWindowMHA2d struct {
	win      layout.Window
	padH     int
	padW     int
	channels int
	numHeads int
	qkvDim   int
	kernel   Kernel
	pool     *workerpool.Pool
	norm     *Norm

	wQKV []float32 // [3*numHeads*qkvDim, channels] pointwise projection
	bQKV []float32 // [3*numHeads*qkvDim]
	wOut []float32 // [channels, numHeads*qkvDim]
	bOut []float32 // [channels]
}

// NewOverlapWindowMHA2d creates an overlapping-window attention module.
func NewOverlapWindowMHA2d(cfg Window2dConfig) (*OverlapWindowMHA2d, error) {
	if cfg.Window.H <= 0 || cfg.Window.W <= 0 {
		return nil, fmt.Errorf("%w: window %dx%d must be positive",
			ErrShape, cfg.Window.H, cfg.Window.W)
	}
	qkvDim, err := resolveQKVDim(cfg.Channels, cfg.NumHeads, cfg.QKVDim)
	if err != nil {
		return nil, err
	}
	if !cfg.Kernel.valid() {
		return nil, fmt.Errorf("%w: kernel %d", ErrKernel, cfg.Kernel)
	}
	norm, err := NewNorm(cfg.Norm, cfg.Channels)
	if err != nil {
		return nil, err
	}

	inner := cfg.NumHeads * qkvDim
	return &OverlapWindowMHA2d{
		win:      cfg.Window,
		padH:     cfg.Window.H / 2,
		padW:     cfg.Window.W / 2,
		channels: cfg.Channels,
		numHeads: cfg.NumHeads,
		qkvDim:   qkvDim,
		kernel:   cfg.Kernel,
		pool:     cfg.Pool,
		norm:     norm,
		wQKV:     make([]float32, 3*inner*cfg.Channels),
		bQKV:     make([]float32, 3*inner),
		wOut:     make([]float32, cfg.Channels*inner),
		bOut:     make([]float32, cfg.Channels),
	}, nil
}

// Forward computes overlapping-window attention over a BCHW feature map.
// Output shape equals input shape.
func (m *OverlapWindowMHA2d) Forward(x []float32, shape layout.Shape, opt *Options) ([]float32, error) {
	if shape.C != m.channels {
		return nil, fmt.Errorf("%w: feature map has %d channels, module expects %d",
			ErrShape, shape.C, m.channels)
	}
	if len(x) != shape.Elems() {
		return nil, fmt.Errorf("%w: buffer has %d elements, shape %+v needs %d",
			ErrShape, len(x), shape, shape.Elems())
	}

	inner := m.numHeads * m.qkvDim
	pixels := shape.B * shape.H * shape.W

	// Normalization and the shared q/k/v projection run channel-last, one
	// pixel per row.
	xl := layout.ToChannelLast(x, shape)
	if err := m.norm.Apply(xl); err != nil {
		return nil, err
	}

	proj := getTempSlice(pixels * 3 * inner)
	defer putTempSlice(proj)
	Dense(m.kernel, xl, m.wQKV, m.bQKV, proj, pixels, m.channels, 3*inner)

	qkvShape := layout.Shape{B: shape.B, C: 3 * inner, H: shape.H, W: shape.W}
	qkvMap := layout.ToChannelFirst(proj, qkvShape)

	attShape := layout.Shape{B: shape.B, C: inner, H: shape.H, W: shape.W}

	// Branch 1 windows the unshifted map; branch 2 windows the map padded by
	// half a window and crops the padding back off. The branches are
	// independent and run concurrently.
	var branch1, branch2 []float32
	var g errgroup.Group
	g.Go(func() error {
		var err error
		branch1, err = m.attendWindows(qkvMap, qkvShape, attShape, opt)
		return err
	})
	g.Go(func() error {
		padded, paddedShape := layout.ZeroPad2d(qkvMap, qkvShape, m.padH, m.padW)
		paddedAtt := layout.Shape{B: shape.B, C: inner, H: paddedShape.H, W: paddedShape.W}
		att, err := m.attendWindows(padded, paddedShape, paddedAtt, opt)
		if err != nil {
			return err
		}
		branch2, _ = layout.Crop2d(att, paddedAtt, m.padH, m.padW)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range branch1 {
		branch1[i] += branch2[i]
	}

	sum := layout.ToChannelLast(branch1, attShape)
	out := make([]float32, pixels*m.channels)
	Dense(m.kernel, sum, m.wOut, m.bOut, out, pixels, inner, m.channels)
	return layout.ToChannelFirst(out, shape), nil
}

// attendWindows partitions a packed q/k/v map into windows, attends within
// each, and reassembles a feature map of attShape.
func (m *OverlapWindowMHA2d) attendWindows(qkvMap []float32, qkvShape, attShape layout.Shape, opt *Options) ([]float32, error) {
	seq, err := layout.Partition(qkvMap, qkvShape, m.win)
	if err != nil {
		return nil, err
	}

	inner := m.numHeads * m.qkvDim
	tokens := m.win.Tokens()
	windows := qkvShape.B * layout.NumWindows(qkvShape, m.win)
	rows := windows * tokens

	// Split the packed rows [.., 3*inner] into q, k, v sequences.
	q := getTempSlice(rows * inner)
	k := getTempSlice(rows * inner)
	v := getTempSlice(rows * inner)
	defer putTempSlice(q)
	defer putTempSlice(k)
	defer putTempSlice(v)
	for r := range rows {
		src := r * 3 * inner
		copy(q[r*inner:(r+1)*inner], seq[src:src+inner])
		copy(k[r*inner:(r+1)*inner], seq[src+inner:src+2*inner])
		copy(v[r*inner:(r+1)*inner], seq[src+2*inner:src+3*inner])
	}

	att := make([]float32, rows*inner)
	SlicedSDPA(m.pool, m.kernel, q, k, v, att, windows, tokens, inner, m.numHeads, opt)

	return layout.Reassemble(att, attShape, m.win)
}

// Parameters exposes the projection and normalization weights.
func (m *OverlapWindowMHA2d) Parameters() []Parameter {
	params := []Parameter{
		{Name: "qkv_proj.weight", Data: m.wQKV},
		{Name: "qkv_proj.bias", Data: m.bQKV},
		{Name: "head_proj.weight", Data: m.wOut},
		{Name: "head_proj.bias", Data: m.bOut},
	}
	return append(params, m.norm.Parameters()...)
}
