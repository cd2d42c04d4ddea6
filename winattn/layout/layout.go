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

// Package layout converts 2-D feature maps between tensor layouts: windows of
// flattened patches for attention, channel-first/channel-last order, and
// zero padding for the overlapping-window variant.
//
// Every conversion is a pure permutation (plus zero fill for padding):
// Reassemble(Partition(x)) == x exactly, bit for bit.
package layout

import (
	"errors"
	"fmt"
)

// ErrShape reports a dimension or divisibility precondition violation.
var ErrShape = errors.New("layout: shape violation")

// Shape describes a channel-first (BCHW) feature map.
type Shape struct {
	B, C, H, W int
}

// Elems returns the element count of a feature map with this shape.
func (s Shape) Elems() int {
	return s.B * s.C * s.H * s.W
}

// Window is a rectangular block of spatial positions, fixed per module
// instance, within which attention is computed independently.
type Window struct {
	H, W int
}

// Tokens returns the number of positions per window.
func (w Window) Tokens() int {
	return w.H * w.W
}

// NumWindows returns the number of windows per feature map. The shape must
// already be known to divide evenly.
func NumWindows(s Shape, win Window) int {
	return (s.H / win.H) * (s.W / win.W)
}

func checkPartition(x []float32, s Shape, win Window) error {
	if win.H <= 0 || win.W <= 0 {
		return fmt.Errorf("%w: window %dx%d must be positive", ErrShape, win.H, win.W)
	}
	if s.H%win.H != 0 || s.W%win.W != 0 {
		return fmt.Errorf("%w: feature map %dx%d not divisible by window %dx%d",
			ErrShape, s.H, s.W, win.H, win.W)
	}
	if len(x) != s.Elems() {
		return fmt.Errorf("%w: buffer has %d elements, shape %+v needs %d",
			ErrShape, len(x), s, s.Elems())
	}
	return nil
}

// Partition splits a BCHW feature map into non-overlapping windows of
// flattened patches: the result is [B*numWindows, win.H*win.W, C] row-major,
// windows ordered row-major within each batch element, tokens ordered
// row-major within each window. The spatial extents must divide evenly by
// the window extents.
func Partition(x []float32, s Shape, win Window) ([]float32, error) {
	if err := checkPartition(x, s, win); err != nil {
		return nil, err
	}

	nh, nw := s.H/win.H, s.W/win.W
	tokens := win.Tokens()
	out := make([]float32, len(x))

	for b := range s.B {
		for c := range s.C {
			plane := (b*s.C + c) * s.H * s.W
			for wy := range nh {
				for wx := range nw {
					wIdx := (b*nh+wy)*nw + wx
					for iy := range win.H {
						row := plane + (wy*win.H+iy)*s.W + wx*win.W
						for ix := range win.W {
							tok := iy*win.W + ix
							out[(wIdx*tokens+tok)*s.C+c] = x[row+ix]
						}
					}
				}
			}
		}
	}
	return out, nil
}

// Reassemble is the exact inverse of Partition: it scatters a
// [B*numWindows, tokens, C] sequence back into a BCHW feature map of the
// given shape. s.C may differ from the shape Partition saw when the windows
// were produced by a projection that changed the channel count; it must
// match the sequence's channel axis.
func Reassemble(seq []float32, s Shape, win Window) ([]float32, error) {
	if err := checkPartition(seq, s, win); err != nil {
		return nil, err
	}

	nh, nw := s.H/win.H, s.W/win.W
	tokens := win.Tokens()
	out := make([]float32, len(seq))

	for b := range s.B {
		for c := range s.C {
			plane := (b*s.C + c) * s.H * s.W
			for wy := range nh {
				for wx := range nw {
					wIdx := (b*nh+wy)*nw + wx
					for iy := range win.H {
						row := plane + (wy*win.H+iy)*s.W + wx*win.W
						for ix := range win.W {
							tok := iy*win.W + ix
							out[row+ix] = seq[(wIdx*tokens+tok)*s.C+c]
						}
					}
				}
			}
		}
	}
	return out, nil
}

// ToChannelLast converts a BCHW feature map to BHWC.
func ToChannelLast(x []float32, s Shape) []float32 {
	out := make([]float32, len(x))
	hw := s.H * s.W
	for b := range s.B {
		for c := range s.C {
			src := (b*s.C + c) * hw
			dst := b*hw*s.C + c
			for i := range hw {
				out[dst+i*s.C] = x[src+i]
			}
		}
	}
	return out
}

// ToChannelFirst converts a BHWC feature map to BCHW. s is the BCHW shape.
func ToChannelFirst(x []float32, s Shape) []float32 {
	out := make([]float32, len(x))
	hw := s.H * s.W
	for b := range s.B {
		for c := range s.C {
			src := b*hw*s.C + c
			dst := (b*s.C + c) * hw
			for i := range hw {
				out[dst+i] = x[src+i*s.C]
			}
		}
	}
	return out
}

// ZeroPad2d pads a BCHW feature map with zeros: padH rows above and below,
// padW columns left and right. Returns the padded map and its shape.
func ZeroPad2d(x []float32, s Shape, padH, padW int) ([]float32, Shape) {
	ps := Shape{B: s.B, C: s.C, H: s.H + 2*padH, W: s.W + 2*padW}
	out := make([]float32, ps.Elems())

	for b := range s.B {
		for c := range s.C {
			src := (b*s.C + c) * s.H * s.W
			dst := (b*ps.C+c)*ps.H*ps.W + padH*ps.W + padW
			for y := range s.H {
				copy(out[dst+y*ps.W:dst+y*ps.W+s.W], x[src+y*s.W:src+(y+1)*s.W])
			}
		}
	}
	return out, ps
}

// Crop2d removes cropH rows from the top and bottom and cropW columns from
// the left and right of a BCHW feature map, inverting ZeroPad2d.
func Crop2d(x []float32, s Shape, cropH, cropW int) ([]float32, Shape) {
	cs := Shape{B: s.B, C: s.C, H: s.H - 2*cropH, W: s.W - 2*cropW}
	out := make([]float32, cs.Elems())

	for b := range s.B {
		for c := range s.C {
			src := (b*s.C+c)*s.H*s.W + cropH*s.W + cropW
			dst := (b*cs.C + c) * cs.H * cs.W
			for y := range cs.H {
				copy(out[dst+y*cs.W:dst+(y+1)*cs.W], x[src+y*s.W:src+y*s.W+cs.W])
			}
		}
	}
	return out, cs
}
