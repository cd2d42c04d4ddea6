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
	stdmath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayerNormStatistics(t *testing.T) {
	norm, err := NewNorm(NormLayer, 16)
	require.NoError(t, err)

	x := ramp(4*16, 0.37, -1.2)
	require.NoError(t, norm.Apply(x))

	for g := range 4 {
		row := x[g*16 : (g+1)*16]
		var mean, sq float64
		for _, v := range row {
			mean += float64(v)
		}
		mean /= 16
		for _, v := range row {
			d := float64(v) - mean
			sq += d * d
		}
		assert.InDelta(t, 0, mean, 1e-5, "group %d mean", g)
		assert.InDelta(t, 1, sq/16, 1e-3, "group %d variance", g)
	}
}

func TestRMSNormMatchesManual(t *testing.T) {
	norm, err := NewNorm(NormRMS, 8)
	require.NoError(t, err)

	x := ramp(8, 0.41, -1.0)
	want := make([]float32, 8)
	var sq float64
	for _, v := range x {
		sq += float64(v) * float64(v)
	}
	inv := 1 / stdmath.Sqrt(sq/8+1e-6)
	for i, v := range x {
		want[i] = float32(float64(v) * inv)
	}

	require.NoError(t, norm.Apply(x))
	requireClose(t, x, want, 1e-6)
}

func TestNormNoneIsIdentity(t *testing.T) {
	norm, err := NewNorm(NormNone, 4)
	require.NoError(t, err)

	x := ramp(12, 0.5, -2)
	want := append([]float32(nil), x...)
	require.NoError(t, norm.Apply(x))
	assert.Equal(t, want, x)
}

func TestNormErrors(t *testing.T) {
	_, err := NewNorm(NormKind(42), 8)
	assert.Error(t, err)

	_, err = NewNorm(NormLayer, 0)
	assert.ErrorIs(t, err, ErrShape)

	norm, err := NewNorm(NormLayer, 8)
	require.NoError(t, err)
	assert.ErrorIs(t, norm.Apply(make([]float32, 12)), ErrShape)
}

func TestNormParameters(t *testing.T) {
	layer, err := NewNorm(NormLayer, 8)
	require.NoError(t, err)
	assert.Len(t, layer.Parameters(), 2)

	rms, err := NewNorm(NormRMS, 8)
	require.NoError(t, err)
	assert.Len(t, rms.Parameters(), 1)

	none, err := NewNorm(NormNone, 8)
	require.NoError(t, err)
	assert.Empty(t, none.Parameters())
}
