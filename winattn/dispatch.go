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
	"os"

	"golang.org/x/sys/cpu"
)

// Kernel selects the execution path for scaled dot-product attention and the
// dense projections. Both non-auto kernels compute the same result within
// floating-point tolerance; the choice is a performance and compatibility
// policy, never a correctness branch.
type Kernel int

const (
	// KernelAuto picks the preferred kernel for this runtime at init time.
	KernelAuto Kernel = iota

	// KernelFused uses GEMM-backed blocked kernels.
	KernelFused

	// KernelReference uses plain scalar loops with float64 accumulation.
	// Always available; the other kernels are verified against it.
	KernelReference
)

// MaxFusedBatch is the largest batch dimension dispatched to the fused
// kernel. Fused attention kernels on some accelerators reject launch
// configurations with batch dimensions above this bound, so larger batches
// always take the reference path regardless of the configured kernel.
const MaxFusedBatch = 65535

// String returns a human-readable name for the kernel.
func (k Kernel) String() string {
	switch k {
	case KernelAuto:
		return "auto"
	case KernelFused:
		return "fused"
	case KernelReference:
		return "reference"
	default:
		return "unknown"
	}
}

func (k Kernel) valid() bool {
	return k >= KernelAuto && k <= KernelReference
}

// autoKernel is the kernel KernelAuto resolves to, detected once at init.
var autoKernel = KernelFused

func init() {
	// The fused kernel only pays off when the GEMM inner loops vectorize.
	if !(cpu.X86.HasSSE2 || cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD) {
		autoKernel = KernelReference
	}

	// Environment override, useful for debugging numeric differences.
	switch os.Getenv("WINATTN_KERNEL") {
	case "fused":
		autoKernel = KernelFused
	case "reference":
		autoKernel = KernelReference
	}
}

// AutoKernel reports the kernel KernelAuto resolves to on this runtime.
func AutoKernel() Kernel {
	return autoKernel
}

// resolveKernel maps KernelAuto to the detected kernel and applies the
// batch-size bound.
func resolveKernel(k Kernel, batch int) Kernel {
	if k == KernelAuto {
		k = autoKernel
	}
	if batch > MaxFusedBatch {
		return KernelReference
	}
	return k
}
