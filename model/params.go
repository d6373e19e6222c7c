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
	"reflect"

	"github.com/gorse-io/nextitem/base/log"
	"github.com/gorse-io/nextitem/config"
	"go.uber.org/zap"
)

// ParamName is the type of hyper-parameter names.
type ParamName string

// Predefined hyper-parameter names
const (
	RandomState      ParamName = "RandomState"      // random state (seed)
	PairPolicy       ParamName = "PairPolicy"       // how co-occurrence pairs are generated
	CategoryCutoff   ParamName = "CategoryCutoff"   // minimum category proximity of ad-hoc candidates
	BrandWeight      ParamName = "BrandWeight"      // score bonus for a matching brand
	PopularityWeight ParamName = "PopularityWeight" // weight of the sales share in ad-hoc scores
)

// Params stores hyper-parameters for a model. For example, hyper-parameters
// for the ad-hoc model are given by:
//
//	model.Params{
//		model.CategoryCutoff:   0.5,
//		model.BrandWeight:      0.0005,
//		model.PopularityWeight: 0.9995,
//	}
type Params map[ParamName]interface{}

// NewParamsFromConfig builds hyper-parameters from the model section of a config.
func NewParamsFromConfig(cfg config.ModelConfig) Params {
	return Params{
		RandomState:      cfg.RandomState,
		PairPolicy:       cfg.PairPolicy,
		CategoryCutoff:   cfg.CategoryCutoff,
		BrandWeight:      cfg.BrandWeight,
		PopularityWeight: cfg.PopularityWeight,
	}
}

// Copy hyper-parameters.
func (parameters Params) Copy() Params {
	newParams := make(Params, len(parameters))
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

// GetInt64 gets a int64 parameter by name. Returns _default if not exists or type doesn't match. The
// type will be converted if given int.
func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "int64"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetFloat64 gets a float64 parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetFloat64(name ParamName, _default float64) float64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case float64:
			return val
		case float32:
			return float64(val)
		case int:
			return float64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "float64"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetString gets a string parameter. Returns _default if not exists or type doesn't match.
func (parameters Params) GetString(name ParamName, _default string) string {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case string:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "string"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}
