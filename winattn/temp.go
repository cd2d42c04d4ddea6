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

import "sync"

// Pool for per-call scratch slices (attention scores, gathered heads).
var tempPool = sync.Pool{
	New: func() any { return new([]float32) },
}

// getTempSlice gets a scratch slice of exactly the given length from the
// pool. Contents are unspecified; callers must fully overwrite it.
func getTempSlice(size int) []float32 {
	p := tempPool.Get().(*[]float32)
	if cap(*p) < size {
		*p = make([]float32, size)
	}
	return (*p)[:size]
}

// putTempSlice returns a scratch slice to the pool.
func putTempSlice(s []float32) {
	tempPool.Put(&s)
}
