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

import "errors"

var (
	// ErrShape reports a dimension or divisibility precondition violation.
	ErrShape = errors.New("winattn: shape violation")

	// ErrKernel reports an unknown or unsupported attention kernel.
	ErrKernel = errors.New("winattn: unsupported kernel")
)

// Parameter is one named, flat weight tensor owned by a module. An external
// initializer assigns values through Data; the slice aliases module storage.
type Parameter struct {
	Name string
	Data []float32
}

// Options control one attention call. The zero value computes plain
// unmasked, non-causal attention.
type Options struct {
	// Mask is an additive pre-softmax score mask. For an attention call over
	// sequences of length n it holds rows of [n, n] scores; MaskBatchStride
	// and MaskHeadStride select the slice for each (batch, head) pair, with
	// 0 meaning the same mask is shared across that axis.
	Mask            []float32
	MaskBatchStride int
	MaskHeadStride  int

	// DropoutP zeroes each attention weight with this probability after
	// softmax, scaling survivors by 1/(1-p). Values > 0 draw from
	// math/rand/v2 and make the call non-deterministic. Pass 0 for inference.
	DropoutP float32

	// Causal masks attention to future tokens.
	Causal bool
}
