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

package heuristic

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

// Score is the ad-hoc score of a candidate product.
type Score struct {
	ProductId       string
	Score           float64
	CategoryScore   float64
	BrandScore      float64
	PopularityScore float64
	Price           float64
	index           int32
}

func scoreBefore(a, b Score) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.index < b.index
}

// AdHoc recommends products close to the seed in the category tree. The score
// of a candidate is
//
//	category * (BrandWeight * brand + PopularityWeight * popularity)
//
// where category is the share of the seed's category levels the candidate
// matches, brand is 1 for the seed's brand and popularity is the candidate's
// share of sales among candidates. Candidates below CategoryCutoff are dropped.
//
// Hyper-parameters:
//
//	CategoryCutoff		- Minimum category score. Default is 0.5.
//	BrandWeight		- Weight of a brand match. Default is 0.0005.
//	PopularityWeight	- Weight of the sales share. Default is 0.9995.
type AdHoc struct {
	model.BaseModel
	catalog *model.Catalog
	// Hyper parameters
	categoryCutoff   float64
	brandWeight      float64
	popularityWeight float64
}

// NewAdHoc creates an ad-hoc model.
func NewAdHoc(params model.Params) *AdHoc {
	a := new(AdHoc)
	a.SetParams(params)
	return a
}

// SetParams sets hyper-parameters of the ad-hoc model.
func (a *AdHoc) SetParams(params model.Params) {
	a.BaseModel.SetParams(params)
	a.categoryCutoff = a.Params.GetFloat64(model.CategoryCutoff, 0.5)
	a.brandWeight = a.Params.GetFloat64(model.BrandWeight, 0.0005)
	a.popularityWeight = a.Params.GetFloat64(model.PopularityWeight, 0.9995)
}

func (a *AdHoc) GetName() string {
	return config.ModelAdHoc
}

func (a *AdHoc) Setup(_ context.Context, ds *dataset.Dataset) error {
	a.catalog = model.NewCatalog(ds)
	return nil
}

// categoryScore returns the share of known category levels of anchor that
// product matches. It is false if anchor has no known level.
func categoryScore(anchor, product dataset.Product) (float64, bool) {
	known, matched := 0, 0
	for level, category := range anchor.Categories {
		if category == dataset.AbsentLevel {
			continue
		}
		known++
		if level < len(product.Categories) && product.Categories[level] == category {
			matched++
		}
	}
	if known == 0 {
		return 0, false
	}
	return float64(matched) / float64(known), true
}

// Recommend returns the n products with the highest ad-hoc score against itemId.
// A seed without category yields no candidates. Info is the []Score behind the list.
func (a *AdHoc) Recommend(_ context.Context, _, itemId string, n int) ([]string, any, error) {
	if a.catalog == nil {
		return nil, nil, errors.NotValidf("%s model before setup", a.GetName())
	}
	seed, err := a.catalog.ToIndex(itemId)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	anchor := a.catalog.Products[seed]
	var (
		candidates []Score
		totalSales int
	)
	for i, product := range a.catalog.Products {
		category, ok := categoryScore(anchor, product)
		if !ok {
			break
		}
		if category < a.categoryCutoff {
			continue
		}
		s := Score{
			ProductId:     product.ProductId,
			CategoryScore: category,
			Price:         product.Price,
			index:         int32(i),
		}
		if anchor.Brand != "" && product.Brand == anchor.Brand {
			s.BrandScore = 1
		}
		candidates = append(candidates, s)
		totalSales += a.catalog.Metrics[i].SalesCount
	}
	filter := heap.NewTopKFilter(n, scoreBefore)
	for _, s := range candidates {
		if totalSales > 0 {
			s.PopularityScore = float64(a.catalog.Metrics[s.index].SalesCount) / float64(totalSales)
		}
		s.Score = s.CategoryScore * (a.brandWeight*s.BrandScore + a.popularityWeight*s.PopularityScore)
		filter.Push(s)
	}
	scores := filter.PopAll()
	recommendations := make([]string, len(scores))
	for i, s := range scores {
		recommendations[i] = s.ProductId
	}
	return recommendations, scores, nil
}

// Marshal model into byte stream.
func (a *AdHoc) Marshal(w io.Writer) error {
	if a.catalog == nil {
		return errors.NotValidf("%s model before setup", a.GetName())
	}
	if err := encoding.WriteGob(w, a.Params); err != nil {
		return errors.Trace(err)
	}
	return a.catalog.Marshal(w)
}

// Unmarshal model from byte stream.
func (a *AdHoc) Unmarshal(r io.Reader) error {
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	a.SetParams(params)
	catalog, err := model.UnmarshalCatalog(r)
	if err != nil {
		return errors.Trace(err)
	}
	a.catalog = catalog
	return nil
}
