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

func TestCrossMHAForwardShape(t *testing.T) {
	m, err := NewCrossMHA(MHAConfig{EmbedDim: 32, NumHeads: 4})
	require.NoError(t, err)
	fillParameters(m.Parameters())

	q := ramp(4*9*32, 0.01, -0.1)
	kv := ramp(4*9*32, 0.02, 0.1)
	out, err := m.Forward(q, kv, 4, 9, nil)
	require.NoError(t, err)
	assert.Len(t, out, 4*9*32)
}

func TestCrossMHAShapeMismatch(t *testing.T) {
	m, err := NewCrossMHA(MHAConfig{EmbedDim: 32, NumHeads: 4})
	require.NoError(t, err)

	// Token counts differ: q is (4, 9, 32), kv is (4, 10, 32).
	q := make([]float32, 4*9*32)
	kv := make([]float32, 4*10*32)
	_, err = m.Forward(q, kv, 4, 9, nil)
	assert.ErrorIs(t, err, ErrShape)
}

func TestCrossMHAConstructionErrors(t *testing.T) {
	_, err := NewCrossMHA(MHAConfig{EmbedDim: 64, NumHeads: 7})
	assert.ErrorIs(t, err, ErrShape)

	_, err = NewCrossMHA(MHAConfig{EmbedDim: 64, NumHeads: 7, QKVDim: 9})
	assert.NoError(t, err)

	_, err = NewCrossMHA(MHAConfig{EmbedDim: 64, NumHeads: 8, Kernel: Kernel(-1)})
	assert.ErrorIs(t, err, ErrKernel)
}

func TestCrossMHAKernelEquivalence(t *testing.T) {
	q := ramp(2*6*16, 0.02, -0.2)
	kv := ramp(2*6*16, 0.03, 0.2)

	outputs := make([][]float32, 0, 2)
	for _, kernel := range []Kernel{KernelFused, KernelReference} {
		m, err := NewCrossMHA(MHAConfig{EmbedDim: 16, NumHeads: 2, Kernel: kernel})
		require.NoError(t, err)
		fillParameters(m.Parameters())

		out, err := m.Forward(q, kv, 2, 6, nil)
		require.NoError(t, err)
		outputs = append(outputs, out)
	}
	requireClose(t, outputs[0], outputs[1], 1e-3)
}
