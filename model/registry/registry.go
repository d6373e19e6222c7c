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

package registry

import (
	"io"

	"github.com/gorse-io/nextitem/base/encoding"
	"github.com/gorse-io/nextitem/config"
	"github.com/gorse-io/nextitem/model"
	"github.com/gorse-io/nextitem/model/baseline"
	"github.com/gorse-io/nextitem/model/heuristic"
	"github.com/juju/errors"
)

// Names lists registered models.
var Names = []string{config.ModelBaseline, config.ModelRandom, config.ModelAdHoc, config.ModelPopular}

// NewModel creates a model by name.
func NewModel(name string, params model.Params) (model.Model, error) {
	switch name {
	case config.ModelBaseline:
		return baseline.NewBaseline(params), nil
	case config.ModelRandom:
		return heuristic.NewRandom(params), nil
	case config.ModelAdHoc:
		return heuristic.NewAdHoc(params), nil
	case config.ModelPopular:
		return heuristic.NewPopular(params), nil
	}
	return nil, errors.NotSupportedf("model %s", name)
}

// New creates the model of a config section.
func New(cfg config.ModelConfig) (model.Model, error) {
	return NewModel(cfg.Name, model.NewParamsFromConfig(cfg))
}

// MarshalModel writes the model name followed by the model.
func MarshalModel(w io.Writer, m model.Model) error {
	if err := encoding.WriteString(w, m.GetName()); err != nil {
		return errors.Trace(err)
	}
	if err := m.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// UnmarshalModel reads a model written by MarshalModel.
func UnmarshalModel(r io.Reader) (model.Model, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	m, err := NewModel(name, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = m.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}
