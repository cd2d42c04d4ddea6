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

import "testing"

func TestKernelString(t *testing.T) {
	tests := []struct {
		kernel Kernel
		want   string
	}{
		{KernelAuto, "auto"},
		{KernelFused, "fused"},
		{KernelReference, "reference"},
		{Kernel(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kernel.String(); got != tt.want {
			t.Errorf("Kernel(%d).String() = %q, want %q", tt.kernel, got, tt.want)
		}
	}
}

func TestResolveKernel(t *testing.T) {
	if got := resolveKernel(KernelAuto, 1); got == KernelAuto {
		t.Error("resolveKernel(KernelAuto, 1) did not resolve to a concrete kernel")
	}
	if got := resolveKernel(KernelFused, MaxFusedBatch); got != KernelFused {
		t.Errorf("batch at bound resolved to %v, want fused", got)
	}
	if got := resolveKernel(KernelFused, MaxFusedBatch+1); got != KernelReference {
		t.Errorf("batch above bound resolved to %v, want reference", got)
	}
	if got := resolveKernel(KernelReference, 4); got != KernelReference {
		t.Errorf("reference resolved to %v", got)
	}
}

func TestAutoKernelConcrete(t *testing.T) {
	if k := AutoKernel(); k != KernelFused && k != KernelReference {
		t.Errorf("AutoKernel() = %v, want a concrete kernel", k)
	}
}
