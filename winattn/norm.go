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
	stdmath "math"
)

// NormKind selects the normalization applied to partitioned sequences before
// projection. The set is closed: windowed modules pick one variant at
// construction rather than accepting arbitrary callables.
type NormKind int

const (
	// NormNone applies no normalization.
	NormNone NormKind = iota

	// NormLayer is layer normalization with learned gamma and beta.
	NormLayer

	// NormRMS is RMS normalization with learned gamma.
	NormRMS
)

// String returns a human-readable name for the normalization kind.
func (k NormKind) String() string {
	switch k {
	case NormNone:
		return "none"
	case NormLayer:
		return "layernorm"
	case NormRMS:
		return "rmsnorm"
	default:
		return "unknown"
	}
}

// Norm normalizes contiguous groups of dim elements (the channel axis of a
// (batch, tokens, channels) sequence). Scale parameters start at identity;
// an external initializer may overwrite them through Parameters.
type Norm struct {
	kind  NormKind
	dim   int
	gamma []float32
	beta  []float32
	eps   float32
}

// NewNorm creates a normalization strategy over groups of dim channels.
func NewNorm(kind NormKind, dim int) (*Norm, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: norm dim %d must be positive", ErrShape, dim)
	}

	n := &Norm{kind: kind, dim: dim}
	switch kind {
	case NormNone:
	case NormLayer:
		n.gamma = ones(dim)
		n.beta = make([]float32, dim)
		n.eps = 1e-5
	case NormRMS:
		n.gamma = ones(dim)
		n.eps = 1e-6
	default:
		return nil, fmt.Errorf("winattn: unknown norm kind %d", kind)
	}
	return n, nil
}

// Kind returns the strategy variant.
func (n *Norm) Kind() NormKind {
	return n.kind
}

// Apply normalizes x in place. len(x) must be a multiple of the norm dim.
func (n *Norm) Apply(x []float32) error {
	if n.kind == NormNone {
		return nil
	}
	if len(x)%n.dim != 0 {
		return fmt.Errorf("%w: sequence length %d not a multiple of norm dim %d",
			ErrShape, len(x), n.dim)
	}

	groups := len(x) / n.dim
	for g := range groups {
		row := x[g*n.dim : (g+1)*n.dim]
		switch n.kind {
		case NormLayer:
			layerNormRow(row, n.gamma, n.beta, n.eps)
		case NormRMS:
			rmsNormRow(row, n.gamma, n.eps)
		}
	}
	return nil
}

// Parameters exposes the learned scale tensors.
func (n *Norm) Parameters() []Parameter {
	switch n.kind {
	case NormLayer:
		return []Parameter{
			{Name: "norm.gamma", Data: n.gamma},
			{Name: "norm.beta", Data: n.beta},
		}
	case NormRMS:
		return []Parameter{{Name: "norm.gamma", Data: n.gamma}}
	default:
		return nil
	}
}

func layerNormRow(row, gamma, beta []float32, eps float32) {
	var sum float64
	for _, v := range row {
		sum += float64(v)
	}
	mean := sum / float64(len(row))

	var sqSum float64
	for _, v := range row {
		d := float64(v) - mean
		sqSum += d * d
	}
	invStd := 1 / stdmath.Sqrt(sqSum/float64(len(row))+float64(eps))

	for i, v := range row {
		row[i] = float32((float64(v)-mean)*invStd)*gamma[i] + beta[i]
	}
}

func rmsNormRow(row, gamma []float32, eps float32) {
	var sqSum float64
	for _, v := range row {
		sqSum += float64(v) * float64(v)
	}
	invRMS := 1 / stdmath.Sqrt(sqSum/float64(len(row))+float64(eps))

	for i, v := range row {
		row[i] = float32(float64(v)*invRMS) * gamma[i]
	}
}

func ones(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = 1
	}
	return s
}
