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

package model

import (
	"context"
	"io"

	"github.com/gorse-io/nextitem/base"
	"github.com/gorse-io/nextitem/dataset"
)

// Model is the interface for all next-item recommenders. Any model in a
// subpackage of this package should implement it.
type Model interface {
	// GetName returns the registered name of the model.
	GetName() string
	// SetParams sets hyper-parameters.
	SetParams(params Params)
	// GetParams returns hyper-parameters.
	GetParams() Params
	// Setup prepares the model on the training partition of a dataset.
	Setup(ctx context.Context, ds *dataset.Dataset) error
	// Recommend returns at most n product ids for a user who interacted with itemId,
	// plus model specific info. It must be safe for concurrent use after Setup.
	Recommend(ctx context.Context, userId, itemId string, n int) ([]string, any, error)
	// Marshal model into byte stream.
	Marshal(w io.Writer) error
	// Unmarshal model from byte stream.
	Unmarshal(r io.Reader) error
}

// BaseModel must be included by every recommendation model. Hyper-parameters
// and random generator are managed by BaseModel.
type BaseModel struct {
	Params Params               // Hyper-parameters
	rng    base.RandomGenerator // Random generator
}

// SetParams sets hyper-parameters for the BaseModel model.
func (model *BaseModel) SetParams(params Params) {
	model.Params = params
	model.rng = base.NewRandomGenerator(model.Params.GetInt64(RandomState, 0))
}

// GetParams returns all hyper-parameters.
func (model *BaseModel) GetParams() Params {
	return model.Params
}

func (model *BaseModel) GetRandomGenerator() base.RandomGenerator {
	return model.rng
}
