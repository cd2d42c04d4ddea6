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
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Dense computes a fully-connected layer: output = x @ weight^T + bias.
//
//   - x:      [batchSize, inFeatures] (row-major)
//   - weight: [outFeatures, inFeatures] (row-major)
//   - bias:   [outFeatures], nil to skip
//   - output: [batchSize, outFeatures]
//
// The same weight layout backs the 1x1 convolutions of the overlap variant:
// a pointwise convolution is a Dense over the channel axis at every pixel.
func Dense(kernel Kernel, x, weight, bias, output []float32, batchSize, inFeatures, outFeatures int) {
	if batchSize == 0 || inFeatures == 0 || outFeatures == 0 {
		return
	}

	switch resolveKernel(kernel, batchSize) {
	case KernelFused:
		xm := blas32.General{Rows: batchSize, Cols: inFeatures, Stride: inFeatures, Data: x}
		wm := blas32.General{Rows: outFeatures, Cols: inFeatures, Stride: inFeatures, Data: weight}
		om := blas32.General{Rows: batchSize, Cols: outFeatures, Stride: outFeatures, Data: output}
		blas32.Gemm(blas.NoTrans, blas.Trans, 1, xm, wm, 0, om)

		if bias != nil {
			for i := range batchSize {
				off := i * outFeatures
				for j := range outFeatures {
					output[off+j] += bias[j]
				}
			}
		}
	default:
		denseReference(x, weight, bias, output, batchSize, inFeatures, outFeatures)
	}
}

// denseReference is the scalar path with float64 accumulation.
func denseReference(x, weight, bias, output []float32, batchSize, inFeatures, outFeatures int) {
	for i := range batchSize {
		xOff := i * inFeatures
		oOff := i * outFeatures

		for j := range outFeatures {
			wOff := j * inFeatures
			var sum float64
			for p := range inFeatures {
				sum += float64(x[xOff+p]) * float64(weight[wOff+p])
			}
			if bias != nil {
				sum += float64(bias[j])
			}
			output[oOff+j] = float32(sum)
		}
	}
}
