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

package model

import (
	"io"

	"github.com/gorse-io/nextitem/base/encoding"
	"github.com/gorse-io/nextitem/dataset"
	"github.com/juju/errors"
)

// Catalog is the product table a model ranks over. It is copied out of the
// dataset at setup so that a model restored from a snapshot can recommend
// without the dataset.
type Catalog struct {
	Products []dataset.Product
	Metrics  []dataset.ProductMetrics
	index    *dataset.ProductIndex
}

// NewCatalog copies products and sales metrics of a dataset in index order.
func NewCatalog(ds *dataset.Dataset) *Catalog {
	store := ds.Store()
	products := make([]dataset.Product, store.NProducts())
	copy(products, store.Products())
	metrics := make([]dataset.ProductMetrics, len(store.AllMetrics()))
	copy(metrics, store.AllMetrics())
	return newCatalog(products, metrics)
}

func newCatalog(products []dataset.Product, metrics []dataset.ProductMetrics) *Catalog {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ProductId
	}
	return &Catalog{
		Products: products,
		Metrics:  metrics,
		index:    dataset.NewProductIndex(ids),
	}
}

func (c *Catalog) Len() int {
	return len(c.Products)
}

// ToIndex returns the index of a product or a not found error.
func (c *Catalog) ToIndex(productId string) (int32, error) {
	i, ok := c.index.ToIndex(productId)
	if !ok {
		return 0, errors.Annotate(dataset.ErrProductNotExist, productId)
	}
	return i, nil
}

// Ids returns product ids of indices.
func (c *Catalog) Ids(indices []int32) []string {
	ids := make([]string, len(indices))
	for i, index := range indices {
		ids[i] = c.Products[index].ProductId
	}
	return ids
}

// Marshal catalog into byte stream.
func (c *Catalog) Marshal(w io.Writer) error {
	if err := encoding.WriteGob(w, c.Products); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteGob(w, c.Metrics)
}

// UnmarshalCatalog reads a catalog written by Marshal.
func UnmarshalCatalog(r io.Reader) (*Catalog, error) {
	var products []dataset.Product
	if err := encoding.ReadGob(r, &products); err != nil {
		return nil, errors.Trace(err)
	}
	var metrics []dataset.ProductMetrics
	if err := encoding.ReadGob(r, &metrics); err != nil {
		return nil, errors.Trace(err)
	}
	if len(metrics) != len(products) {
		return nil, errors.NotValidf("%d metrics for %d products", len(metrics), len(products))
	}
	for i, p := range products {
		if p.Index != int32(i) {
			return nil, errors.NotValidf("product %s at position %d with index %d", p.ProductId, i, p.Index)
		}
	}
	return newCatalog(products, metrics), nil
}
