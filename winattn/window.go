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

	"github.com/ajroetker/go-winattn/winattn/layout"
	"github.com/ajroetker/go-winattn/winattn/workerpool"
)

// Window2dConfig configures a windowed attention wrapper.
type Window2dConfig struct {
	// Channels is the feature-map channel count.
	Channels int

	// NumHeads is the number of attention heads.
	NumHeads int

	// Window is the spatial window geometry. Feature maps passed to Forward
	// must divide evenly by it.
	Window layout.Window

	// QKVDim is the per-head projection width. 0 derives Channels/NumHeads.
	QKVDim int

	// Norm is applied to each partitioned sequence before projection.
	Norm NormKind

	// Kernel selects the attention execution path.
	Kernel Kernel

	// Pool parallelizes per-window, per-head work when non-nil.
	Pool *workerpool.Pool
}

// WindowMHA2d applies self-attention independently within each spatial
// window of a channel-first (BCHW) feature map. Windows share weights but
// never exchange data: attention does not cross window boundaries. Output
// shape equals input shape.
type WindowMHA2d struct {
	win  layout.Window
	norm *Norm
	mha  *MHA
}

// NewWindowMHA2d creates a windowed self-attention module.
func NewWindowMHA2d(cfg Window2dConfig) (*WindowMHA2d, error) {
	if cfg.Window.H <= 0 || cfg.Window.W <= 0 {
		return nil, fmt.Errorf("%w: window %dx%d must be positive",
			ErrShape, cfg.Window.H, cfg.Window.W)
	}
	norm, err := NewNorm(cfg.Norm, cfg.Channels)
	if err != nil {
		return nil, err
	}
	mha, err := NewMHA(MHAConfig{
		EmbedDim: cfg.Channels,
		NumHeads: cfg.NumHeads,
		QKVDim:   cfg.QKVDim,
		Kernel:   cfg.Kernel,
		Pool:     cfg.Pool,
	})
	if err != nil {
		return nil, err
	}
	return &WindowMHA2d{win: cfg.Window, norm: norm, mha: mha}, nil
}

// Forward partitions x into windows, attends within each window and
// reassembles the original layout. x is BCHW with the given shape; shape.C
// must match the configured channel count.
func (w *WindowMHA2d) Forward(x []float32, shape layout.Shape, opt *Options) ([]float32, error) {
	if shape.C != w.mha.embedDim {
		return nil, fmt.Errorf("%w: feature map has %d channels, module expects %d",
			ErrShape, shape.C, w.mha.embedDim)
	}

	seq, err := layout.Partition(x, shape, w.win)
	if err != nil {
		return nil, err
	}
	if err := w.norm.Apply(seq); err != nil {
		return nil, err
	}

	windows := shape.B * layout.NumWindows(shape, w.win)
	att, err := w.mha.Forward(seq, windows, w.win.Tokens(), opt)
	if err != nil {
		return nil, err
	}
	return layout.Reassemble(att, shape, w.win)
}

// Parameters exposes the attention and normalization weights.
func (w *WindowMHA2d) Parameters() []Parameter {
	return append(w.mha.Parameters(), w.norm.Parameters()...)
}

// WindowCrossMHA2d applies cross-attention between co-located windows of two
// feature maps of identical shape: each window of the query stream attends
// only to the matching window of the key/value stream.
type WindowCrossMHA2d struct {
	win   layout.Window
	norm1 *Norm
	norm2 *Norm
	mha   *CrossMHA
}

// NewWindowCrossMHA2d creates a windowed cross-attention module. The two
// streams get independent normalization parameters of the same kind.
func NewWindowCrossMHA2d(cfg Window2dConfig) (*WindowCrossMHA2d, error) {
	if cfg.Window.H <= 0 || cfg.Window.W <= 0 {
		return nil, fmt.Errorf("%w: window %dx%d must be positive",
			ErrShape, cfg.Window.H, cfg.Window.W)
	}
	norm1, err := NewNorm(cfg.Norm, cfg.Channels)
	if err != nil {
		return nil, err
	}
	norm2, err := NewNorm(cfg.Norm, cfg.Channels)
	if err != nil {
		return nil, err
	}
	mha, err := NewCrossMHA(MHAConfig{
		EmbedDim: cfg.Channels,
		NumHeads: cfg.NumHeads,
		QKVDim:   cfg.QKVDim,
		Kernel:   cfg.Kernel,
		Pool:     cfg.Pool,
	})
	if err != nil {
		return nil, err
	}
	return &WindowCrossMHA2d{win: cfg.Window, norm1: norm1, norm2: norm2, mha: mha}, nil
}

// Forward computes windowed cross-attention. x1 supplies queries, x2 keys
// and values; both are BCHW feature maps of the given shape.
func (w *WindowCrossMHA2d) Forward(x1, x2 []float32, shape layout.Shape, opt *Options) ([]float32, error) {
	if shape.C != w.mha.embedDim {
		return nil, fmt.Errorf("%w: feature map has %d channels, module expects %d",
			ErrShape, shape.C, w.mha.embedDim)
	}
	if len(x1) != len(x2) {
		return nil, fmt.Errorf("%w: stream 1 has %d elements, stream 2 has %d",
			ErrShape, len(x1), len(x2))
	}

	seq1, err := layout.Partition(x1, shape, w.win)
	if err != nil {
		return nil, err
	}
	seq2, err := layout.Partition(x2, shape, w.win)
	if err != nil {
		return nil, err
	}
	if err := w.norm1.Apply(seq1); err != nil {
		return nil, err
	}
	if err := w.norm2.Apply(seq2); err != nil {
		return nil, err
	}

	windows := shape.B * layout.NumWindows(shape, w.win)
	att, err := w.mha.Forward(seq1, seq2, windows, w.win.Tokens(), opt)
	if err != nil {
		return nil, err
	}
	return layout.Reassemble(att, shape, w.win)
}

// Parameters exposes the attention and normalization weights.
func (w *WindowCrossMHA2d) Parameters() []Parameter {
	params := w.mha.Parameters()
	for _, p := range w.norm1.Parameters() {
		params = append(params, Parameter{Name: "stream1." + p.Name, Data: p.Data})
	}
	for _, p := range w.norm2.Parameters() {
		params = append(params, Parameter{Name: "stream2." + p.Name, Data: p.Data})
	}
	return params
}
