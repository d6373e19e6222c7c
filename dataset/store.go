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
	"sort"
	"strings"

	"github.com/gorse-io/nextitem/storage/data"
	"github.com/juju/errors"
	"modernc.org/strutil"
)

var (
	ErrUserNotExist    = errors.NotFoundf("user")
	ErrProductNotExist = errors.NotFoundf("product")
)

// Product is the catalog row of a product. Categories are padded to the
// subcategory depth of the dataset with AbsentLevel.
type Product struct {
	ProductId  string
	CategoryId string
	Categories []string
	Brand      string
	Price      float64
	Index      int32
}

// ProductMetrics aggregates purchase events of a product.
type ProductMetrics struct {
	SalesCount int
	TotalSales float64
}

// Store holds the normalized interaction log and the tables derived from it.
// A Store is immutable after Load.
type Store struct {
	transactions []Transaction
	views        []Transaction
	purchases    []Transaction
	relevants    []Transaction
	products     []Product
	index        *ProductIndex
	metrics      []ProductMetrics
	depth        int
}

// Load normalizes raw events into a Store. It fails on the first record without
// user_id, product_id or a known event_type.
func Load(events []data.Event, opts ...LoadOption) (*Store, error) {
	o := loadOptions{prefix: true, pool: strutil.NewPool()}
	for _, opt := range opts {
		opt(&o)
	}
	transactions := make([]Transaction, len(events))
	for i, event := range events {
		var err error
		if transactions[i], err = newTransaction(i, event, o); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return newStore(transactions), nil
}

func newStore(transactions []Transaction) *Store {
	s := &Store{transactions: transactions}
	for _, txn := range transactions {
		switch txn.EventType {
		case View:
			s.views = append(s.views, txn)
		case Purchase:
			s.purchases = append(s.purchases, txn)
			s.relevants = append(s.relevants, txn)
		case Cart:
			s.relevants = append(s.relevants, txn)
		}
	}
	s.products, s.depth = deriveProducts(transactions)
	s.index = NewProductIndex(productIds(s.products))
	s.metrics = make([]ProductMetrics, len(s.products))
	for _, txn := range s.purchases {
		i, _ := s.index.ToIndex(txn.ProductId)
		s.metrics[i].SalesCount++
		s.metrics[i].TotalSales += txn.Price
	}
	return s
}

// deriveProducts keeps one row per product id: distinct attribute rows are sorted by
// (product_id asc, price desc) and the first one wins. The subcategory depth is the
// longest category path.
func deriveProducts(transactions []Transaction) ([]Product, int) {
	type row struct {
		productId  string
		categoryId string
		categories string
		brand      string
		price      float64
	}
	seen := make(map[row]struct{})
	var rows []row
	for _, txn := range transactions {
		r := row{
			productId:  txn.ProductId,
			categoryId: txn.CategoryId,
			categories: strings.Join(txn.CategoryPath, "."),
			brand:      txn.Brand,
			price:      txn.Price,
		}
		if _, ok := seen[r]; !ok {
			seen[r] = struct{}{}
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].productId != rows[j].productId {
			return rows[i].productId < rows[j].productId
		}
		return rows[i].price > rows[j].price
	})
	var products []Product
	depth := 0
	for _, r := range rows {
		if len(products) > 0 && products[len(products)-1].ProductId == r.productId {
			continue
		}
		categories := SplitCategoryPath(r.categories)
		depth = max(depth, len(categories))
		products = append(products, Product{
			ProductId:  r.productId,
			CategoryId: r.categoryId,
			Categories: categories,
			Brand:      r.brand,
			Price:      r.price,
			Index:      int32(len(products)),
		})
	}
	for i := range products {
		padded := make([]string, depth)
		copy(padded, products[i].Categories)
		for j := len(products[i].Categories); j < depth; j++ {
			padded[j] = AbsentLevel
		}
		products[i].Categories = padded
	}
	return products, depth
}

func productIds(products []Product) []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ProductId
	}
	return ids
}

// Transactions returns all transactions in log order.
func (s *Store) Transactions() []Transaction {
	return s.transactions
}

// Views returns view transactions in log order.
func (s *Store) Views() []Transaction {
	return s.views
}

// Purchases returns purchase transactions in log order.
func (s *Store) Purchases() []Transaction {
	return s.purchases
}

// Relevants returns purchase and cart transactions in log order.
func (s *Store) Relevants() []Transaction {
	return s.relevants
}

// Products returns products in index order.
func (s *Store) Products() []Product {
	return s.products
}

func (s *Store) NProducts() int {
	return len(s.products)
}

// Product returns a product by id.
func (s *Store) Product(productId string) (Product, error) {
	i, ok := s.index.ToIndex(productId)
	if !ok {
		return Product{}, errors.Annotate(ErrProductNotExist, productId)
	}
	return s.products[i], nil
}

// Index returns the mapping between product ids and indices.
func (s *Store) Index() *ProductIndex {
	return s.index
}

// SubcategoryDepth returns the number of category levels of every product.
func (s *Store) SubcategoryDepth() int {
	return s.depth
}

// Metrics returns sales metrics of a product.
func (s *Store) Metrics(productId string) (ProductMetrics, error) {
	i, ok := s.index.ToIndex(productId)
	if !ok {
		return ProductMetrics{}, errors.Annotate(ErrProductNotExist, productId)
	}
	return s.metrics[i], nil
}

// AllMetrics returns sales metrics in index order.
func (s *Store) AllMetrics() []ProductMetrics {
	return s.metrics
}
