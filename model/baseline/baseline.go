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

package baseline

import (
	"context"
	"io"

	"github.com/gorse-io/nextitem/base/encoding"
	"github.com/gorse-io/nextitem/common/heap"
	"github.com/gorse-io/nextitem/config"
	"github.com/gorse-io/nextitem/dataset"
	"github.com/gorse-io/nextitem/model"
	"github.com/juju/errors"
)

// Candidate is a recommended product with its co-occurrence count against the seed.
type Candidate struct {
	ProductId string
	Count     int32
	Price     float64
	index     int32
}

// rankBefore orders candidates by count descending, then price ascending. Ties
// keep product index order.
func rankBefore(a, b Candidate) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.index < b.index
}

// Baseline recommends the products most often bought together with the seed
// product by training users.
//
// Hyper-parameters:
//
//	PairPolicy	- How pairs are formed: config.PairDistinct (default) pairs
//	              distinct training items, config.PairEvents pairs training
//	              transactions.
type Baseline struct {
	model.BaseModel
	catalog *model.Catalog
	matrix  *Matrix
	// Hyper parameters
	policy string
}

// NewBaseline creates a co-occurrence model.
func NewBaseline(params model.Params) *Baseline {
	b := new(Baseline)
	b.SetParams(params)
	return b
}

// SetParams sets hyper-parameters of the co-occurrence model.
func (b *Baseline) SetParams(params model.Params) {
	b.BaseModel.SetParams(params)
	b.policy = b.Params.GetString(model.PairPolicy, config.PairDistinct)
}

func (b *Baseline) GetName() string {
	return config.ModelBaseline
}

func (b *Baseline) Matrix() *Matrix {
	return b.matrix
}

// Setup builds the co-occurrence matrix of the training partition.
func (b *Baseline) Setup(ctx context.Context, ds *dataset.Dataset) error {
	matrix, err := BuildMatrix(ctx, ds, b.policy)
	if err != nil {
		return errors.Trace(err)
	}
	b.matrix = matrix
	b.catalog = model.NewCatalog(ds)
	return nil
}

// Recommend returns the n products with the highest co-occurrence count against
// itemId. Every product is a candidate, the seed included with count 0, so a
// seed without co-occurrences gets products ordered by price. Info is the
// []Candidate behind the list.
func (b *Baseline) Recommend(_ context.Context, _, itemId string, n int) ([]string, any, error) {
	if b.matrix == nil {
		return nil, nil, errors.NotValidf("%s model before setup", b.GetName())
	}
	seed, err := b.catalog.ToIndex(itemId)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	coldStart := !b.matrix.HasRow(seed)
	filter := heap.NewTopKFilter(n, rankBefore)
	for i, product := range b.catalog.Products {
		c := Candidate{ProductId: product.ProductId, Price: product.Price, index: int32(i)}
		if !coldStart {
			c.Count = b.matrix.Get(seed, int32(i))
		}
		filter.Push(c)
	}
	candidates := filter.PopAll()
	recommendations := make([]string, len(candidates))
	for i, c := range candidates {
		recommendations[i] = c.ProductId
	}
	return recommendations, candidates, nil
}

// Marshal model into byte stream.
func (b *Baseline) Marshal(w io.Writer) error {
	if b.matrix == nil {
		return errors.NotValidf("%s model before setup", b.GetName())
	}
	if err := encoding.WriteGob(w, b.Params); err != nil {
		return errors.Trace(err)
	}
	if err := b.catalog.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return b.matrix.Marshal(w)
}

// Unmarshal model from byte stream.
func (b *Baseline) Unmarshal(r io.Reader) error {
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	b.SetParams(params)
	catalog, err := model.UnmarshalCatalog(r)
	if err != nil {
		return errors.Trace(err)
	}
	matrix, err := UnmarshalMatrix(r)
	if err != nil {
		return errors.Trace(err)
	}
	if matrix.Len() != catalog.Len() {
		return errors.NotValidf("matrix over %d products for %d products", matrix.Len(), catalog.Len())
	}
	b.catalog, b.matrix = catalog, matrix
	return nil
}
