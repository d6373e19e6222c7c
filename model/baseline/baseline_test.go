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
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/nextitem/base"
	"github.com/gorse-io/nextitem/config"
	"github.com/gorse-io/nextitem/dataset"
	"github.com/gorse-io/nextitem/model"
	"github.com/gorse-io/nextitem/storage/data"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func event(userId, productId, eventType string, second int, price float64) data.Event {
	return data.Event{
		UserId:    userId,
		ProductId: productId,
		EventType: eventType,
		EventTime: time.Date(2020, 1, 1, 0, 0, second, 0, time.UTC),
		Price:     price,
	}
}

var prices = map[string]float64{"P1": 100, "P2": 10, "P3": 50, "P4": 1, "P5": 2, "P6": 0.5}

// newDataset gives every user a purchase of each of its products. P6 is only viewed.
func newDataset(t *testing.T, ratio float64, baskets ...[]string) *dataset.Dataset {
	var events []data.Event
	for u, basket := range baskets {
		for i, productId := range basket {
			events = append(events, event(strconv.Itoa(u), productId, data.EventPurchase, i, prices[productId]))
		}
	}
	events = append(events, event("viewer", "P6", data.EventView, 0, prices["P6"]))
	store, err := dataset.Load(events, dataset.WithoutPrefix())
	assert.NoError(t, err)
	ds, err := dataset.New(store, ratio)
	assert.NoError(t, err)
	return ds
}

func repeat(n int, basket ...string) [][]string {
	baskets := make([][]string, n)
	for i := range baskets {
		baskets[i] = basket
	}
	return baskets
}

type BaselineTestSuite struct {
	suite.Suite
	dataset *dataset.Dataset
	model   *Baseline
}

func (suite *BaselineTestSuite) SetupTest() {
	var baskets [][]string
	baskets = append(baskets, repeat(2, "P1", "P2")...)
	baskets = append(baskets, repeat(3, "P1", "P5")...)
	baskets = append(baskets, repeat(4, "P2", "P3")...)
	baskets = append(baskets, repeat(1, "P2", "P4")...)
	baskets = append(baskets, repeat(1, "P3", "P5")...)
	suite.dataset = newDataset(suite.T(), 0, baskets...)
	suite.model = NewBaseline(model.Params{model.PairPolicy: config.PairDistinct})
	suite.NoError(suite.model.Setup(context.Background(), suite.dataset))
}

func (suite *BaselineTestSuite) index(productId string) int32 {
	i, ok := suite.dataset.Store().Index().ToIndex(productId)
	suite.True(ok)
	return i
}

func (suite *BaselineTestSuite) TestMatrix() {
	m := suite.model.Matrix()
	suite.Equal(6, m.Len())
	suite.Equal(5, m.NNZ())
	suite.InDelta(5.0/15, m.Density(), 1e-9)
	expected := map[[2]string]int32{
		{"P1", "P2"}: 2,
		{"P1", "P5"}: 3,
		{"P2", "P3"}: 4,
		{"P2", "P4"}: 1,
		{"P3", "P5"}: 1,
	}
	for pair, count := range expected {
		i, j := suite.index(pair[0]), suite.index(pair[1])
		suite.Equal(count, m.Get(i, j))
		suite.Equal(count, m.Get(j, i))
	}
	suite.Zero(m.Get(suite.index("P1"), suite.index("P3")))
	suite.Zero(m.Get(suite.index("P2"), suite.index("P2")))
	suite.False(m.HasRow(suite.index("P6")))
	suite.True(m.HasRow(suite.index("P4")))
}

func (suite *BaselineTestSuite) TestRecommend() {
	ctx := context.Background()
	items, info, err := suite.model.Recommend(ctx, "", "P2", 3)
	suite.NoError(err)
	suite.Equal([]string{"P3", "P1", "P4"}, items)
	candidates := info.([]Candidate)
	suite.Equal([]int32{4, 2, 1}, []int32{candidates[0].Count, candidates[1].Count, candidates[2].Count})

	// zero-count candidates, the seed included, follow by price
	items, _, err = suite.model.Recommend(ctx, "", "P2", 10)
	suite.NoError(err)
	suite.Equal([]string{"P3", "P1", "P4", "P6", "P5", "P2"}, items)

	// cold start
	items, _, err = suite.model.Recommend(ctx, "", "P6", 4)
	suite.NoError(err)
	suite.Equal([]string{"P6", "P4", "P5", "P2"}, items)

	items, _, err = suite.model.Recommend(ctx, "", "P2", 0)
	suite.NoError(err)
	suite.Empty(items)

	_, _, err = suite.model.Recommend(ctx, "", "P9", 3)
	suite.True(errors.Is(err, errors.NotFound))
}

func (suite *BaselineTestSuite) TestMarshal() {
	buf := bytes.NewBuffer(nil)
	suite.NoError(suite.model.Marshal(buf))
	restored := new(Baseline)
	suite.NoError(restored.Unmarshal(buf))
	suite.Equal(suite.model.Matrix(), restored.Matrix())
	suite.Equal(config.PairDistinct, restored.policy)
	items, _, err := restored.Recommend(context.Background(), "", "P2", 3)
	suite.NoError(err)
	suite.Equal([]string{"P3", "P1", "P4"}, items)

	// equal matrices produce equal bytes
	a, b := bytes.NewBuffer(nil), bytes.NewBuffer(nil)
	suite.NoError(suite.model.Matrix().Marshal(a))
	suite.NoError(restored.Matrix().Marshal(b))
	suite.Equal(a.Bytes(), b.Bytes())
}

func (suite *BaselineTestSuite) TestNotSetup() {
	m := NewBaseline(nil)
	_, _, err := m.Recommend(context.Background(), "", "P2", 3)
	suite.True(errors.Is(err, errors.NotValid))
	suite.True(errors.Is(m.Marshal(bytes.NewBuffer(nil)), errors.NotValid))
}

func TestBaseline(t *testing.T) {
	suite.Run(t, new(BaselineTestSuite))
}

func TestPairPolicy(t *testing.T) {
	// user 0 buys P1 twice
	ds := newDataset(t, 0, []string{"P1", "P2", "P1"}, []string{"P1", "P2"})
	p1, _ := ds.Store().Index().ToIndex("P1")
	p2, _ := ds.Store().Index().ToIndex("P2")

	distinct, err := BuildMatrix(context.Background(), ds, config.PairDistinct)
	assert.NoError(t, err)
	assert.Equal(t, int32(2), distinct.Get(p1, p2))

	events, err := BuildMatrix(context.Background(), ds, config.PairEvents)
	assert.NoError(t, err)
	assert.Equal(t, int32(3), events.Get(p1, p2))
	assert.Zero(t, events.Get(p1, p1))

	_, err = BuildMatrix(context.Background(), ds, "window")
	assert.True(t, errors.Is(err, errors.NotSupported))
}

func TestMatrixValidationItems(t *testing.T) {
	// the first half of every basket is held out
	ds := newDataset(t, 0.5, []string{"P1", "P2", "P3", "P4"})
	m, err := BuildMatrix(context.Background(), ds, config.PairDistinct)
	assert.NoError(t, err)
	p1, _ := ds.Store().Index().ToIndex("P1")
	p2, _ := ds.Store().Index().ToIndex("P2")
	p3, _ := ds.Store().Index().ToIndex("P3")
	p4, _ := ds.Store().Index().ToIndex("P4")
	assert.Zero(t, m.Get(p1, p2))
	assert.Zero(t, m.Get(p1, p3))
	assert.Equal(t, int32(1), m.Get(p3, p4))
	assert.Equal(t, 1, m.NNZ())
}

func TestMatrixSymmetry(t *testing.T) {
	rng := base.NewRandomGenerator(0)
	products := []string{"P1", "P2", "P3", "P4", "P5"}
	var baskets [][]string
	for u := 0; u < 50; u++ {
		var basket []string
		for _, i := range rng.Sample(0, len(products), 1+rng.Intn(len(products))) {
			basket = append(basket, products[i])
		}
		baskets = append(baskets, basket)
	}
	ds := newDataset(t, 0.3, baskets...)
	m, err := BuildMatrix(context.Background(), ds, config.PairDistinct)
	assert.NoError(t, err)
	index := ds.Store().Index()
	for _, a := range products {
		for _, b := range products {
			if a == b {
				continue
			}
			i, _ := index.ToIndex(a)
			j, _ := index.ToIndex(b)
			expected := 0
			for _, user := range ds.Users() {
				train := mapset.NewThreadUnsafeSet(user.TrainItems...)
				if train.Contains(a) && train.Contains(b) {
					expected++
				}
			}
			assert.Equal(t, m.Get(i, j), m.Get(j, i), fmt.Sprintf("%s-%s", a, b))
			assert.Equal(t, int32(expected), m.Get(i, j), fmt.Sprintf("%s-%s", a, b))
		}
	}
}

func TestUnmarshalMatrix(t *testing.T) {
	m := NewMatrix(3)
	m.add(2, 0, 5)
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, m.Marshal(buf))
	restored, err := UnmarshalMatrix(buf)
	assert.NoError(t, err)
	assert.Equal(t, m, restored)
	assert.Equal(t, int32(5), restored.Get(0, 2))

	// cell outside the matrix
	m = NewMatrix(3)
	m.add(0, 7, 1)
	buf.Reset()
	assert.NoError(t, m.Marshal(buf))
	_, err = UnmarshalMatrix(buf)
	assert.True(t, errors.Is(err, errors.NotValid))

	// negative row
	buf.Reset()
	for _, v := range []any{int64(3), int64(1), []uint64{uint64(0xffffffff)<<32 | 1}, []int32{1}} {
		assert.NoError(t, binary.Write(buf, binary.LittleEndian, v))
	}
	_, err = UnmarshalMatrix(buf)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestMatrixMarshalOrder(t *testing.T) {
	a, b := NewMatrix(100), NewMatrix(100)
	for i := int32(0); i < 50; i++ {
		a.add(i, 99-i, i+1)
		b.add(49-i, 50+i, 50-i)
	}
	bufA, bufB := bytes.NewBuffer(nil), bytes.NewBuffer(nil)
	assert.NoError(t, a.Marshal(bufA))
	assert.NoError(t, b.Marshal(bufB))
	assert.Equal(t, bufA.Bytes(), bufB.Bytes())
}
