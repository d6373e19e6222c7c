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

package snapshot

import (
	"bufio"
	"context"
	"io"

	"github.com/gorse-io/nextitem/base/encoding"
	"github.com/gorse-io/nextitem/base/log"
	"github.com/gorse-io/nextitem/dataset"
	"github.com/gorse-io/nextitem/model"
	"github.com/gorse-io/nextitem/model/registry"
	"github.com/gorse-io/nextitem/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const header = "nextitem-snapshot/v1"

// Save writes a dataset and a model set up on it into one blob. The blob is
// persisted only if every byte reaches the store.
func Save(ctx context.Context, store blob.Store, name string, ds *dataset.Dataset, m model.Model) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return errors.Annotatef(err, "create snapshot %s", name)
	}
	if err = write(w, ds, m); err != nil {
		w.Abort(err)
		return errors.Annotatef(err, "write snapshot %s", name)
	}
	if err = w.Close(); err != nil {
		return errors.Annotatef(err, "save snapshot %s", name)
	}
	log.Logger().Info("snapshot saved",
		zap.String("name", name),
		zap.String("model", m.GetName()),
		zap.Int("n_users", ds.NUsers()),
		zap.Int("n_products", ds.NProducts()))
	return nil
}

func write(w io.Writer, ds *dataset.Dataset, m model.Model) error {
	buf := bufio.NewWriter(w)
	if err := encoding.WriteString(buf, header); err != nil {
		return errors.Trace(err)
	}
	if err := ds.Marshal(buf); err != nil {
		return errors.Trace(err)
	}
	if err := registry.MarshalModel(buf, m); err != nil {
		return errors.Trace(err)
	}
	return buf.Flush()
}

// Load reads a dataset and a model written by Save.
func Load(ctx context.Context, store blob.Store, name string) (*dataset.Dataset, model.Model, error) {
	r, err := store.Open(ctx, name)
	if err != nil {
		return nil, nil, errors.Annotatef(err, "open snapshot %s", name)
	}
	defer r.Close()
	buf := bufio.NewReader(r)
	h, err := encoding.ReadString(buf)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	if h != header {
		return nil, nil, errors.NotValidf("snapshot header %q", h)
	}
	ds, err := dataset.Unmarshal(buf)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	m, err := registry.UnmarshalModel(buf)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	log.Logger().Info("snapshot loaded",
		zap.String("name", name),
		zap.String("model", m.GetName()),
		zap.Int("n_users", ds.NUsers()),
		zap.Int("n_products", ds.NProducts()))
	return ds, m, nil
}
