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
	"math"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
)

// User is the relevance history of a user. ValidationItems ++ TrainItems == RelevantItems.
type User struct {
	UserId          string
	RelevantItems   []string
	ValidationItems []string
	TrainItems      []string
}

// NRelevant returns the number of distinct relevant products.
func (u *User) NRelevant() int {
	return len(u.RelevantItems)
}

// ValidationSize returns floor(ratio × n). Users with a single relevant item
// always keep it for training when ratio < 1.
func ValidationSize(ratio float64, n int) int {
	return int(math.Floor(ratio * float64(n)))
}

// SplitUsers partitions the relevant history of every user with at least one
// relevant transaction. Relevant items are distinct product ids ordered by first
// interaction: transactions are stably sorted by timestamp so events sharing a
// timestamp keep log order. For a chronological log this is log order. An
// unordered log is ordered by timestamp instead of by position, so a late row
// with an early timestamp counts as an early interaction. The first
// floor(ratio × n) items are held out for validation. Users are returned in
// ascending id order.
func SplitUsers(store *Store, ratio float64) ([]User, error) {
	if ratio < 0 || ratio >= 1 || math.IsNaN(ratio) {
		return nil, errors.NotValidf("split ratio %v outside [0, 1)", ratio)
	}
	relevants := make([]Transaction, len(store.Relevants()))
	copy(relevants, store.Relevants())
	sort.SliceStable(relevants, func(i, j int) bool {
		return relevants[i].Timestamp.Before(relevants[j].Timestamp)
	})
	items := make(map[string][]string)
	seen := make(map[string]mapset.Set[string])
	for _, txn := range relevants {
		set, ok := seen[txn.UserId]
		if !ok {
			set = mapset.NewThreadUnsafeSet[string]()
			seen[txn.UserId] = set
		}
		if set.Add(txn.ProductId) {
			items[txn.UserId] = append(items[txn.UserId], txn.ProductId)
		}
	}
	users := make([]User, 0, len(items))
	for userId, relevantItems := range items {
		n := ValidationSize(ratio, len(relevantItems))
		users = append(users, User{
			UserId:          userId,
			RelevantItems:   relevantItems,
			ValidationItems: relevantItems[:n:n],
			TrainItems:      relevantItems[n:],
		})
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].UserId < users[j].UserId
	})
	return users, nil
}
