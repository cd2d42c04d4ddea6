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

// Package winattn implements windowed multi-head attention operators for 2-D
// feature maps: a scaled dot-product attention core with head splitting, self-
// and cross-attention blocks, window-partitioned wrappers, an overlapping
// window variant, and a learned relative-position score bias.
//
// Tensors are flat row-major []float32 slices with explicit dimensions.
// Feature maps use channel-first (BCHW) layout at module boundaries; package
// layout converts between layouts and partitions maps into attention windows.
//
// All operators are pure functions of their inputs plus the weights owned by
// the module structs. Weight values are assigned externally (see Parameters);
// no initialization policy is defined here. Per-head, per-window and per-batch
// work is independent and may be parallelized with a workerpool.Pool.
package winattn
