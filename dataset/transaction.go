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
	"strings"
	"time"

	"github.com/gorse-io/nextitem/base"
	"github.com/gorse-io/nextitem/storage/data"
	"github.com/juju/errors"
	"modernc.org/strutil"
)

// AbsentLevel pads category paths shorter than the subcategory depth.
const AbsentLevel = ""

// Identifier prefixes added during normalization.
const (
	UserPrefix    = "U-"
	ProductPrefix = "P-"
	SessionPrefix = "S-"
)

type EventType string

const (
	View     EventType = data.EventView
	Cart     EventType = data.EventCart
	Purchase EventType = data.EventPurchase
)

// ParseEventType parses an event type. Unknown types are not valid.
func ParseEventType(s string) (EventType, error) {
	switch t := EventType(strings.ToLower(strings.TrimSpace(s))); t {
	case View, Cart, Purchase:
		return t, nil
	}
	return "", errors.NotValidf("event type %q", s)
}

// IsRelevant returns true for purchases and carts.
func (t EventType) IsRelevant() bool {
	return t == Purchase || t == Cart
}

// Transaction is an interaction of a user with a product.
type Transaction struct {
	UserId       string
	ProductId    string
	SessionId    string
	EventType    EventType
	Timestamp    time.Time
	Price        float64
	CategoryId   string
	CategoryPath []string
	Brand        string
}

// SplitCategoryPath splits a dotted category code into levels. An empty code has no levels.
func SplitCategoryPath(code string) []string {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	return strings.Split(code, ".")
}

type loadOptions struct {
	prefix bool
	// pool interns strings repeated across records.
	pool *strutil.Pool
}

type LoadOption func(*loadOptions)

// WithoutPrefix keeps identifiers as they are in the source.
func WithoutPrefix() LoadOption {
	return func(o *loadOptions) {
		o.prefix = false
	}
}

// WithPrefix enables or disables identifier prefixing.
func WithPrefix(prefix bool) LoadOption {
	return func(o *loadOptions) {
		o.prefix = prefix
	}
}

func newTransaction(i int, event data.Event, opts loadOptions) (Transaction, error) {
	if err := base.ValidateId(event.UserId); err != nil {
		return Transaction{}, errors.Annotatef(err, "record %d user_id", i)
	}
	if err := base.ValidateId(event.ProductId); err != nil {
		return Transaction{}, errors.Annotatef(err, "record %d product_id", i)
	}
	if strings.TrimSpace(event.EventType) == "" {
		return Transaction{}, errors.NotValidf("record %d without event_type", i)
	}
	eventType, err := ParseEventType(event.EventType)
	if err != nil {
		return Transaction{}, errors.Annotatef(err, "record %d", i)
	}
	txn := Transaction{
		UserId:       strings.TrimSpace(event.UserId),
		ProductId:    strings.TrimSpace(event.ProductId),
		SessionId:    strings.TrimSpace(event.UserSession),
		EventType:    eventType,
		Timestamp:    event.EventTime,
		Price:        event.Price,
		CategoryId:   event.CategoryId,
		CategoryPath: SplitCategoryPath(event.CategoryCode),
		Brand:        event.Brand,
	}
	if opts.prefix {
		txn.UserId = UserPrefix + txn.UserId
		txn.ProductId = ProductPrefix + txn.ProductId
		if txn.SessionId != "" {
			txn.SessionId = SessionPrefix + txn.SessionId
		}
	}
	if opts.pool != nil {
		txn.UserId = opts.pool.Align(txn.UserId)
		txn.ProductId = opts.pool.Align(txn.ProductId)
		txn.SessionId = opts.pool.Align(txn.SessionId)
		txn.CategoryId = opts.pool.Align(txn.CategoryId)
		txn.Brand = opts.pool.Align(txn.Brand)
		for j, level := range txn.CategoryPath {
			txn.CategoryPath[j] = opts.pool.Align(level)
		}
	}
	return txn, nil
}
