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
	"io"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/nextitem/base"
	"github.com/gorse-io/nextitem/base/encoding"
	"github.com/gorse-io/nextitem/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Dataset is a Store with its users split into validation and training items.
type Dataset struct {
	store     *Store
	ratio     float64
	users     []User
	userIndex map[string]int
}

// New splits users of a store.
func New(store *Store, ratio float64) (*Dataset, error) {
	start := time.Now()
	users, err := SplitUsers(store, ratio)
	if err != nil {
		return nil, errors.Trace(err)
	}
	d := newDataset(store, ratio, users)
	log.Logger().Info("split users",
		zap.Int("n_users", len(users)),
		zap.Int("n_products", store.NProducts()),
		zap.Int("n_transactions", len(store.Transactions())),
		zap.Float64("split_ratio", ratio),
		zap.Duration("used_time", time.Since(start)))
	return d, nil
}

func newDataset(store *Store, ratio float64, users []User) *Dataset {
	d := &Dataset{
		store:     store,
		ratio:     ratio,
		users:     users,
		userIndex: make(map[string]int, len(users)),
	}
	for i, user := range users {
		d.userIndex[user.UserId] = i
	}
	return d
}

func (d *Dataset) Store() *Store {
	return d.store
}

func (d *Dataset) SplitRatio() float64 {
	return d.ratio
}

// Users returns users in ascending id order.
func (d *Dataset) Users() []User {
	return d.users
}

func (d *Dataset) NUsers() int {
	return len(d.users)
}

func (d *Dataset) NProducts() int {
	return d.store.NProducts()
}

// User returns a user by id.
func (d *Dataset) User(userId string) (*User, error) {
	i, ok := d.userIndex[userId]
	if !ok {
		return nil, errors.Annotate(ErrUserNotExist, userId)
	}
	return &d.users[i], nil
}

// Product returns a product by id.
func (d *Dataset) Product(productId string) (Product, error) {
	return d.store.Product(productId)
}

// FilterUsers returns users satisfying the predicate in ascending id order.
func (d *Dataset) FilterUsers(predicate func(*User) bool) []*User {
	var users []*User
	for i := range d.users {
		if predicate(&d.users[i]) {
			users = append(users, &d.users[i])
		}
	}
	return users
}

// RandomUser picks a user with at least minInteractions relevant items. With
// forValidation, the user must also hold out at least one validation item.
func (d *Dataset) RandomUser(rng base.RandomGenerator, minInteractions int, forValidation bool) (*User, error) {
	candidates := d.FilterUsers(func(u *User) bool {
		return u.NRelevant() >= minInteractions && len(u.TrainItems) > 0 &&
			(!forValidation || len(u.ValidationItems) > 0)
	})
	if len(candidates) == 0 {
		return nil, errors.NotFoundf("user with at least %d interactions", minInteractions)
	}
	return base.Choice(rng, candidates), nil
}

// RandomProduct picks a product uniformly.
func (d *Dataset) RandomProduct(rng base.RandomGenerator) (Product, error) {
	if d.NProducts() == 0 {
		return Product{}, errors.Annotate(ErrProductNotExist, "empty catalog")
	}
	return base.Choice(rng, d.store.Products()), nil
}

// RandomTrainItem picks one of the training items of a user.
func (d *Dataset) RandomTrainItem(rng base.RandomGenerator, user *User) (string, error) {
	if len(user.TrainItems) == 0 {
		return "", errors.NotFoundf("training item of %s", user.UserId)
	}
	return base.Choice(rng, user.TrainItems), nil
}

// RandomValidationItem picks one of the validation items of a user.
func (d *Dataset) RandomValidationItem(rng base.RandomGenerator, user *User) (string, error) {
	if len(user.ValidationItems) == 0 {
		return "", errors.NotFoundf("validation item of %s", user.UserId)
	}
	return base.Choice(rng, user.ValidationItems), nil
}

// TrainingTransactions returns relevant transactions whose product is a training
// item of their user, in log order.
func (d *Dataset) TrainingTransactions() []Transaction {
	train := make(map[string]mapset.Set[string], len(d.users))
	for _, user := range d.users {
		train[user.UserId] = mapset.NewThreadUnsafeSet(user.TrainItems...)
	}
	var transactions []Transaction
	for _, txn := range d.store.Relevants() {
		if set, ok := train[txn.UserId]; ok && set.Contains(txn.ProductId) {
			transactions = append(transactions, txn)
		}
	}
	return transactions
}

// Marshal writes transactions, products and users. Derived views and metrics are
// rebuilt on Unmarshal.
func (d *Dataset) Marshal(w io.Writer) error {
	if err := encoding.WriteGob(w, d.store.transactions); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, d.store.products); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, d.ratio); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, d.users); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal reads a dataset written by Marshal.
func Unmarshal(r io.Reader) (*Dataset, error) {
	var (
		transactions []Transaction
		products     []Product
		ratio        float64
		users        []User
	)
	if err := encoding.ReadGob(r, &transactions); err != nil {
		return nil, errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &products); err != nil {
		return nil, errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &ratio); err != nil {
		return nil, errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &users); err != nil {
		return nil, errors.Trace(err)
	}
	store := newStore(transactions)
	if len(store.products) != len(products) {
		return nil, errors.NotValidf("snapshot with %d products, rebuilt %d", len(products), len(store.products))
	}
	for i := range products {
		if store.products[i].ProductId != products[i].ProductId {
			return nil, errors.NotValidf("snapshot product %d", i)
		}
	}
	for i := range users {
		// restore the shared backing array of the partition
		n := len(users[i].ValidationItems)
		if n > len(users[i].RelevantItems) {
			return nil, errors.NotValidf("user %s with %d validation items of %d relevant items",
				users[i].UserId, n, len(users[i].RelevantItems))
		}
		users[i].ValidationItems = users[i].RelevantItems[:n:n]
		users[i].TrainItems = users[i].RelevantItems[n:]
	}
	return newDataset(store, ratio, users), nil
}
