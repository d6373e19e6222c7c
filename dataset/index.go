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

package dataset

// ProductIndex maps product ids to dense indices and back. It is built once
// from products in ascending id order and never mutated.
type ProductIndex struct {
	si map[string]int32
	is []string
}

// NewProductIndex indexes ids in the given order.
func NewProductIndex(ids []string) *ProductIndex {
	index := &ProductIndex{
		si: make(map[string]int32, len(ids)),
		is: make([]string, len(ids)),
	}
	copy(index.is, ids)
	for i, id := range ids {
		index.si[id] = int32(i)
	}
	return index
}

// Len returns the number of products.
func (idx *ProductIndex) Len() int {
	return len(idx.is)
}

// ToIndex returns the index of a product id.
func (idx *ProductIndex) ToIndex(id string) (int32, bool) {
	i, ok := idx.si[id]
	return i, ok
}

// ToProduct returns the product id of an index.
func (idx *ProductIndex) ToProduct(i int32) (string, bool) {
	if i < 0 || int(i) >= len(idx.is) {
		return "", false
	}
	return idx.is[i], true
}

// Ids returns a copy of all product ids in index order.
func (idx *ProductIndex) Ids() []string {
	ids := make([]string, len(idx.is))
	copy(ids, idx.is)
	return ids
}
