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
	"sort"

	"github.com/gorse-io/nextitem/base/encoding"
	"github.com/gorse-io/nextitem/config"
	"github.com/gorse-io/nextitem/dataset"
	"github.com/gorse-io/nextitem/model"
	"github.com/juju/errors"
)

// Popular recommends best sellers regardless of the seed product. Products are
// ranked by sales count descending, then price ascending.
type Popular struct {
	model.BaseModel
	catalog *model.Catalog
	ranking []int32
}

// NewPopular creates a popularity model.
func NewPopular(params model.Params) *Popular {
	p := new(Popular)
	p.SetParams(params)
	return p
}

func (p *Popular) GetName() string {
	return config.ModelPopular
}

func (p *Popular) Setup(_ context.Context, ds *dataset.Dataset) error {
	p.init(model.NewCatalog(ds))
	return nil
}

func (p *Popular) init(catalog *model.Catalog) {
	p.catalog = catalog
	p.ranking = make([]int32, catalog.Len())
	for i := range p.ranking {
		p.ranking[i] = int32(i)
	}
	sort.SliceStable(p.ranking, func(i, j int) bool {
		a, b := p.ranking[i], p.ranking[j]
		if catalog.Metrics[a].SalesCount != catalog.Metrics[b].SalesCount {
			return catalog.Metrics[a].SalesCount > catalog.Metrics[b].SalesCount
		}
		return catalog.Products[a].Price < catalog.Products[b].Price
	})
}

// Recommend returns the n best sellers. Info is their []dataset.ProductMetrics.
func (p *Popular) Recommend(_ context.Context, _, itemId string, n int) ([]string, any, error) {
	if p.catalog == nil {
		return nil, nil, errors.NotValidf("%s model before setup", p.GetName())
	}
	if _, err := p.catalog.ToIndex(itemId); err != nil {
		return nil, nil, errors.Trace(err)
	}
	top := p.ranking[:max(0, min(n, len(p.ranking)))]
	metrics := make([]dataset.ProductMetrics, len(top))
	for i, index := range top {
		metrics[i] = p.catalog.Metrics[index]
	}
	return p.catalog.Ids(top), metrics, nil
}

// Marshal model into byte stream.
func (p *Popular) Marshal(w io.Writer) error {
	if p.catalog == nil {
		return errors.NotValidf("%s model before setup", p.GetName())
	}
	if err := encoding.WriteGob(w, p.Params); err != nil {
		return errors.Trace(err)
	}
	return p.catalog.Marshal(w)
}

// Unmarshal model from byte stream. The ranking is rebuilt from the catalog.
func (p *Popular) Unmarshal(r io.Reader) error {
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	p.SetParams(params)
	catalog, err := model.UnmarshalCatalog(r)
	if err != nil {
		return errors.Trace(err)
	}
	p.init(catalog)
	return nil
}
