// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package heap

import (
	"container/heap"
)

// _heap keeps the worst element on top so that it can be evicted first.
type _heap[T any] struct {
	elems []T
	less  func(a, b T) bool
}

func (h *_heap[T]) Len() int {
	return len(h.elems)
}

func (h *_heap[T]) Less(i, j int) bool {
	return h.less(h.elems[j], h.elems[i])
}

func (h *_heap[T]) Swap(i, j int) {
	h.elems[i], h.elems[j] = h.elems[j], h.elems[i]
}

func (h *_heap[T]) Push(x any) {
	h.elems = append(h.elems, x.(T))
}

func (h *_heap[T]) Pop() any {
	old := h.elems
	n := len(old)
	x := old[n-1]
	h.elems = old[:n-1]
	return x
}

// TopKFilter filters out top k items under a ranking order. less(a, b) reports
// whether a ranks before b and must be a strict total order for the result to
// be deterministic.
type TopKFilter[T any] struct {
	_heap[T]
	k int
}

// NewTopKFilter creates a top k filter.
func NewTopKFilter[T any](k int, less func(a, b T) bool) *TopKFilter[T] {
	return &TopKFilter[T]{_heap: _heap[T]{less: less}, k: k}
}

// Push pushes the element x onto the heap.
// The complexity is O(log k).
func (filter *TopKFilter[T]) Push(item T) {
	if filter.k <= 0 {
		return
	}
	if filter.Len() == filter.k && !filter.less(item, filter.elems[0]) {
		return
	}
	heap.Push(&filter._heap, item)
	if filter.Len() > filter.k {
		heap.Pop(&filter._heap)
	}
}

// PopAll pops all items in the filter in ranking order.
func (filter *TopKFilter[T]) PopAll() []T {
	items := make([]T, filter.Len())
	for i := len(items) - 1; i >= 0; i-- {
		items[i] = heap.Pop(&filter._heap).(T)
	}
	return items
}
