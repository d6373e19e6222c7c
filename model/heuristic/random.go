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
	"sync"

	"github.com/gorse-io/nextitem/base/encoding"
	"github.com/gorse-io/nextitem/config"
	"github.com/gorse-io/nextitem/dataset"
	"github.com/gorse-io/nextitem/model"
	"github.com/juju/errors"
)

// Random recommends products drawn uniformly without replacement. The seed
// product is ignored.
//
// Hyper-parameters:
//
//	RandomState	- The random seed. Default is 0.
type Random struct {
	model.BaseModel
	catalog *model.Catalog
	mu      sync.Mutex
}

// NewRandom creates a random model.
func NewRandom(params model.Params) *Random {
	r := new(Random)
	r.SetParams(params)
	return r
}

func (r *Random) GetName() string {
	return config.ModelRandom
}

func (r *Random) Setup(_ context.Context, ds *dataset.Dataset) error {
	r.catalog = model.NewCatalog(ds)
	return nil
}

// Recommend draws n distinct products, or all products if there are fewer.
func (r *Random) Recommend(_ context.Context, _, itemId string, n int) ([]string, any, error) {
	if r.catalog == nil {
		return nil, nil, errors.NotValidf("%s model before setup", r.GetName())
	}
	if _, err := r.catalog.ToIndex(itemId); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if n <= 0 {
		return []string{}, nil, nil
	}
	r.mu.Lock()
	sampled := r.GetRandomGenerator().Sample(0, r.catalog.Len(), n)
	r.mu.Unlock()
	indices := make([]int32, len(sampled))
	for i, index := range sampled {
		indices[i] = int32(index)
	}
	return r.catalog.Ids(indices), nil, nil
}

// Marshal model into byte stream.
func (r *Random) Marshal(w io.Writer) error {
	if r.catalog == nil {
		return errors.NotValidf("%s model before setup", r.GetName())
	}
	if err := encoding.WriteGob(w, r.Params); err != nil {
		return errors.Trace(err)
	}
	return r.catalog.Marshal(w)
}

// Unmarshal model from byte stream. The random generator restarts from RandomState.
func (r *Random) Unmarshal(rd io.Reader) error {
	var params model.Params
	if err := encoding.ReadGob(rd, &params); err != nil {
		return errors.Trace(err)
	}
	r.SetParams(params)
	catalog, err := model.UnmarshalCatalog(rd)
	if err != nil {
		return errors.Trace(err)
	}
	r.catalog = catalog
	return nil
}
