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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMHAHeadGeometry(t *testing.T) {
	tests := []struct {
		name    string
		embed   int
		heads   int
		qkvDim  int
		wantErr bool
	}{
		{"64/8", 64, 8, 0, false},
		{"64/7", 64, 7, 0, true},
		{"64/7/qkv9", 64, 7, 9, false},
		{"32/1", 32, 1, 0, false},
		{"0/4", 0, 4, 0, true},
		{"64/0", 64, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMHA(MHAConfig{EmbedDim: tt.embed, NumHeads: tt.heads, QKVDim: tt.qkvDim})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrShape)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewMHAUnknownKernel(t *testing.T) {
	_, err := NewMHA(MHAConfig{EmbedDim: 64, NumHeads: 8, Kernel: Kernel(7)})
	assert.ErrorIs(t, err, ErrKernel)
}

func TestMHAForwardShape(t *testing.T) {
	m, err := NewMHA(MHAConfig{EmbedDim: 64, NumHeads: 8})
	require.NoError(t, err)
	fillParameters(m.Parameters())

	x := ramp(2*16*64, 0.01, -0.2)
	out, err := m.Forward(x, 2, 16, nil)
	require.NoError(t, err)
	assert.Len(t, out, 2*16*64)
}

func TestMHAForwardShapeMismatch(t *testing.T) {
	m, err := NewMHA(MHAConfig{EmbedDim: 64, NumHeads: 8})
	require.NoError(t, err)

	_, err = m.Forward(make([]float32, 100), 2, 16, nil)
	assert.ErrorIs(t, err, ErrShape)
}

func TestMHAHeadCountInvariance(t *testing.T) {
	// Varying the head count over valid divisors changes values but never
	// the output shape.
	const embed = 64
	x := ramp(2*9*embed, 0.013, -0.4)

	for _, heads := range []int{1, 2, 4, 8, 16, 32, 64} {
		m, err := NewMHA(MHAConfig{EmbedDim: embed, NumHeads: heads})
		require.NoError(t, err, "heads=%d", heads)
		fillParameters(m.Parameters())

		out, err := m.Forward(x, 2, 9, nil)
		require.NoError(t, err, "heads=%d", heads)
		assert.Len(t, out, 2*9*embed, "heads=%d", heads)
	}
}

func TestMHAKernelEquivalence(t *testing.T) {
	x := ramp(3*8*32, 0.017, -0.3)

	outputs := make([][]float32, 0, 2)
	for _, kernel := range []Kernel{KernelFused, KernelReference} {
		m, err := NewMHA(MHAConfig{EmbedDim: 32, NumHeads: 4, Kernel: kernel})
		require.NoError(t, err)
		fillParameters(m.Parameters())

		out, err := m.Forward(x, 3, 8, nil)
		require.NoError(t, err)
		outputs = append(outputs, out)
	}
	requireClose(t, outputs[0], outputs[1], 1e-3)
}

func TestMHAParameterNames(t *testing.T) {
	m, err := NewMHA(MHAConfig{EmbedDim: 16, NumHeads: 2})
	require.NoError(t, err)

	names := make([]string, 0, 4)
	for _, p := range m.Parameters() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{
		"qkv_proj.weight", "qkv_proj.bias",
		"head_proj.weight", "head_proj.bias",
	}, names)
}
