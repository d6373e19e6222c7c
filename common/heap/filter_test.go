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
	"testing"

	"github.com/stretchr/testify/assert"
)

type scored struct {
	Id    int
	Count int
	Price float64
}

func byCountThenPrice(a, b scored) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Id < b.Id
}

func TestTopKFilter(t *testing.T) {
	a := NewTopKFilter(3, func(a, b int) bool { return a > b })
	a.Push(10)
	a.Push(20)
	a.Push(30)
	assert.Equal(t, []int{30, 20, 10}, a.PopAll())
	// full filter
	for _, v := range []int{10, 20, 30, 40, 50, 12, 67, 32} {
		a.Push(v)
	}
	assert.Equal(t, []int{67, 50, 40}, a.PopAll())
	assert.Empty(t, a.PopAll())
}

func TestTopKFilterTies(t *testing.T) {
	a := NewTopKFilter(3, byCountThenPrice)
	a.Push(scored{Id: 0, Count: 2, Price: 9})
	a.Push(scored{Id: 1, Count: 5, Price: 3})
	a.Push(scored{Id: 2, Count: 2, Price: 1})
	a.Push(scored{Id: 3, Count: 2, Price: 1})
	a.Push(scored{Id: 4, Count: 1, Price: 0})
	assert.Equal(t, []scored{
		{Id: 1, Count: 5, Price: 3},
		{Id: 2, Count: 2, Price: 1},
		{Id: 3, Count: 2, Price: 1},
	}, a.PopAll())
}

func TestTopKFilterZero(t *testing.T) {
	a := NewTopKFilter(0, func(a, b int) bool { return a > b })
	a.Push(1)
	assert.Empty(t, a.PopAll())
}
