// Copyright 2020 gorse Project Authors
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

import (
	"strings"
	"testing"
	"time"
	"unsafe"

	"github.com/gorse-io/nextitem/storage/data"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC)

func event(userId, productId, eventType string, second int, price float64) data.Event {
	return data.Event{
		UserId:      userId,
		ProductId:   productId,
		UserSession: "s" + userId,
		EventType:   eventType,
		EventTime:   epoch.Add(time.Duration(second) * time.Second),
		Price:       price,
	}
}

func TestLoad(t *testing.T) {
	events := []data.Event{
		{UserId: "1", ProductId: "10", UserSession: "a", EventType: "view", Price: 5, CategoryId: "c1", CategoryCode: "electronics.smartphone", Brand: "apple"},
		{UserId: "1", ProductId: "10", UserSession: "a", EventType: "cart", Price: 7, CategoryId: "c1", CategoryCode: "electronics.smartphone", Brand: "apple"},
		{UserId: "2", ProductId: "10", UserSession: "b", EventType: "purchase", Price: 7, CategoryId: "c1", CategoryCode: "electronics.smartphone", Brand: "apple"},
		{UserId: "2", ProductId: "20", UserSession: "b", EventType: "purchase", Price: 3, CategoryId: "c2", CategoryCode: "appliances.kitchen.oven", Brand: "bosch"},
		{UserId: "3", ProductId: "20", EventType: "PURCHASE", Price: 3, CategoryId: "c2", CategoryCode: "appliances.kitchen.oven", Brand: "bosch"},
		{UserId: "3", ProductId: "30", EventType: "view", Price: 1},
	}
	store, err := Load(events)
	assert.NoError(t, err)

	// normalization
	txn := store.Transactions()[0]
	assert.Equal(t, "U-1", txn.UserId)
	assert.Equal(t, "P-10", txn.ProductId)
	assert.Equal(t, "S-a", txn.SessionId)
	assert.Equal(t, []string{"electronics", "smartphone"}, txn.CategoryPath)
	assert.Empty(t, store.Transactions()[4].SessionId)

	// views
	assert.Len(t, store.Views(), 2)
	assert.Len(t, store.Purchases(), 3)
	assert.Len(t, store.Relevants(), 4)
	for _, txn := range store.Relevants() {
		assert.True(t, txn.EventType.IsRelevant())
	}

	// products
	assert.Equal(t, 3, store.NProducts())
	assert.Equal(t, 3, store.SubcategoryDepth())
	assert.Equal(t, []Product{
		{ProductId: "P-10", CategoryId: "c1", Categories: []string{"electronics", "smartphone", AbsentLevel}, Brand: "apple", Price: 7, Index: 0},
		{ProductId: "P-20", CategoryId: "c2", Categories: []string{"appliances", "kitchen", "oven"}, Brand: "bosch", Price: 3, Index: 1},
		{ProductId: "P-30", Categories: []string{AbsentLevel, AbsentLevel, AbsentLevel}, Price: 1, Index: 2},
	}, store.Products())
	for i, p := range store.Products() {
		idx, ok := store.Index().ToIndex(p.ProductId)
		assert.True(t, ok)
		assert.Equal(t, int32(i), idx)
	}
	product, err := store.Product("P-20")
	assert.NoError(t, err)
	assert.Equal(t, "bosch", product.Brand)
	_, err = store.Product("P-40")
	assert.True(t, errors.Is(err, errors.NotFound))

	// metrics
	metrics, err := store.Metrics("P-20")
	assert.NoError(t, err)
	assert.Equal(t, ProductMetrics{SalesCount: 2, TotalSales: 6}, metrics)
	metrics, err = store.Metrics("P-10")
	assert.NoError(t, err)
	assert.Equal(t, ProductMetrics{SalesCount: 1, TotalSales: 7}, metrics)
	assert.Equal(t, ProductMetrics{}, store.AllMetrics()[2])
	_, err = store.Metrics("P-40")
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestLoadWithoutPrefix(t *testing.T) {
	store, err := Load([]data.Event{event("1", "10", "view", 0, 1)}, WithoutPrefix())
	assert.NoError(t, err)
	assert.Equal(t, "1", store.Transactions()[0].UserId)
	assert.Equal(t, "10", store.Transactions()[0].ProductId)
	assert.Equal(t, "s1", store.Transactions()[0].SessionId)
	assert.Equal(t, 0, store.SubcategoryDepth())
}

func TestLoadInternStrings(t *testing.T) {
	var events []data.Event
	for i := 0; i < 2; i++ {
		e := event(strings.Clone("1"), strings.Clone("10"), "view", i, 1)
		e.CategoryCode = strings.Clone("electronics.audio")
		e.Brand = strings.Clone("sony")
		events = append(events, e)
	}
	store, err := Load(events)
	assert.NoError(t, err)
	a, b := store.Transactions()[0], store.Transactions()[1]
	assert.Same(t, unsafe.StringData(a.UserId), unsafe.StringData(b.UserId))
	assert.Same(t, unsafe.StringData(a.ProductId), unsafe.StringData(b.ProductId))
	assert.Same(t, unsafe.StringData(a.Brand), unsafe.StringData(b.Brand))
	assert.Same(t, unsafe.StringData(a.CategoryPath[1]), unsafe.StringData(b.CategoryPath[1]))
}

func TestLoadHighestPrice(t *testing.T) {
	store, err := Load([]data.Event{
		event("1", "10", "view", 0, 3),
		event("1", "10", "view", 1, 9),
		event("2", "10", "view", 2, 5),
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, store.NProducts())
	assert.Equal(t, 9.0, store.Products()[0].Price)
}

func TestLoadMalformed(t *testing.T) {
	for _, events := range [][]data.Event{
		{{ProductId: "10", EventType: "view"}},
		{{UserId: "1", EventType: "view"}},
		{{UserId: "1", ProductId: "10"}},
		{{UserId: "1", ProductId: "10", EventType: "remove_from_cart"}},
	} {
		_, err := Load(append([]data.Event{event("1", "10", "view", 0, 1)}, events...))
		assert.True(t, errors.Is(err, errors.NotValid), err)
		assert.ErrorContains(t, err, "record 1")
	}
}

func TestParseEventType(t *testing.T) {
	eventType, err := ParseEventType(" Cart ")
	assert.NoError(t, err)
	assert.Equal(t, Cart, eventType)
	assert.True(t, eventType.IsRelevant())
	assert.False(t, View.IsRelevant())
	_, err = ParseEventType("wishlist")
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestSplitCategoryPath(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitCategoryPath("a.b.c"))
	assert.Nil(t, SplitCategoryPath(""))
	assert.Nil(t, SplitCategoryPath("  "))
}
