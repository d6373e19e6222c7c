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
	"context"
	"testing"
	"time"

	"github.com/gorse-io/nextitem/base/encoding"
	"github.com/gorse-io/nextitem/config"
	"github.com/gorse-io/nextitem/dataset"
	"github.com/gorse-io/nextitem/model/baseline"
	"github.com/gorse-io/nextitem/model/registry"
	"github.com/gorse-io/nextitem/storage/blob"
	"github.com/gorse-io/nextitem/storage/data"
	"github.com/juju/errors"
	"github.com/stretchr/testify/suite"
)

type SnapshotTestSuite struct {
	suite.Suite
	store blob.Store
}

func (suite *SnapshotTestSuite) SetupTest() {
	cfg := config.GetDefaultConfig().Blob
	cfg.Dir = suite.T().TempDir()
	var err error
	suite.store, err = blob.Open(cfg)
	suite.NoError(err)
}

func (suite *SnapshotTestSuite) newDataset() *dataset.Dataset {
	var events []data.Event
	baskets := [][]string{{"1", "2", "3", "4", "5"}, {"2", "3"}, {"1", "3", "4"}, {"5"}}
	for u, basket := range baskets {
		for i, productId := range basket {
			events = append(events, data.Event{
				UserId:       string(rune('a' + u)),
				ProductId:    productId,
				UserSession:  "s",
				EventType:    data.EventCart,
				EventTime:    time.Date(2020, 1, 1, 0, 0, i, 0, time.UTC),
				CategoryCode: "electronics.audio.headphone",
				Brand:        "sony",
				Price:        float64(10 - i),
			})
		}
	}
	store, err := dataset.Load(events)
	suite.NoError(err)
	ds, err := dataset.New(store, 0.4)
	suite.NoError(err)
	return ds
}

func (suite *SnapshotTestSuite) TestSaveLoad() {
	ds := suite.newDataset()
	cfg := config.GetDefaultConfig().Model
	m, err := registry.New(cfg)
	suite.NoError(err)
	ctx := context.Background()
	suite.NoError(m.Setup(ctx, ds))
	suite.NoError(Save(ctx, suite.store, "snapshot.bin", ds, m))

	restoredDataset, restoredModel, err := Load(ctx, suite.store, "snapshot.bin")
	suite.NoError(err)
	suite.Equal(ds.Users(), restoredDataset.Users())
	suite.Equal(ds.Store().Index(), restoredDataset.Store().Index())
	suite.Equal(ds.Store().Products(), restoredDataset.Store().Products())
	suite.Equal(m.GetName(), restoredModel.GetName())
	suite.Equal(m.(*baseline.Baseline).Matrix(), restoredModel.(*baseline.Baseline).Matrix())

	blobs, err := suite.store.List(ctx)
	suite.NoError(err)
	if suite.Len(blobs, 1) {
		suite.Equal("snapshot.bin", blobs[0].Name)
		suite.Positive(blobs[0].Size)
	}
}

func (suite *SnapshotTestSuite) TestSaveError() {
	ctx := context.Background()
	ds := suite.newDataset()
	m, err := registry.New(config.GetDefaultConfig().Model)
	suite.NoError(err)
	suite.NoError(m.Setup(ctx, ds))
	// a non-empty directory occupies the snapshot name
	w, err := suite.store.Create(ctx, "snapshot.bin/old")
	suite.NoError(err)
	suite.NoError(w.Close())

	err = Save(ctx, suite.store, "snapshot.bin", ds, m)
	suite.ErrorContains(err, "save snapshot snapshot.bin")
	_, _, err = Load(ctx, suite.store, "snapshot.bin")
	suite.Error(err)
}

func (suite *SnapshotTestSuite) TestLoadMissing() {
	_, _, err := Load(context.Background(), suite.store, "missing.bin")
	suite.True(errors.Is(err, errors.NotFound))
}

func (suite *SnapshotTestSuite) TestLoadInvalidHeader() {
	ctx := context.Background()
	w, err := suite.store.Create(ctx, "invalid.bin")
	suite.NoError(err)
	suite.NoError(encoding.WriteString(w, "gorse"))
	suite.NoError(w.Close())
	_, _, err = Load(ctx, suite.store, "invalid.bin")
	suite.True(errors.Is(err, errors.NotValid))
}

func TestSnapshot(t *testing.T) {
	suite.Run(t, new(SnapshotTestSuite))
}
