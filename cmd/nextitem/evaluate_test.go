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

package main

import (
	"testing"

	"github.com/gorse-io/nextitem/config"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func newEvaluateCommand(t *testing.T, args ...string) *cobra.Command {
	cmd := &cobra.Command{Use: "evaluate"}
	addEvaluateFlags(cmd.Flags())
	assert.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestOverrideEvaluateConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Dataset.Source = "data/events.csv"
	overrideEvaluateConfig(newEvaluateCommand(t, "--k", "5", "--runs", "7", "-j", "3", "--seed", "9", "--filter", "n_train > 1"), cfg)
	assert.Equal(t, 5, cfg.Evaluate.K)
	assert.Equal(t, 7, cfg.Evaluate.Runs)
	assert.Equal(t, 3, cfg.Evaluate.Jobs)
	assert.Equal(t, int64(9), cfg.Evaluate.Seed)
	assert.Equal(t, "n_train > 1", cfg.Evaluate.UserFilter)
	assert.NoError(t, cfg.Validate())

	// flags left alone keep the configured values
	cfg = config.GetDefaultConfig()
	cfg.Dataset.Source = "data/events.csv"
	overrideEvaluateConfig(newEvaluateCommand(t), cfg)
	assert.Equal(t, config.GetDefaultConfig().Evaluate, cfg.Evaluate)
}

func TestOverrideEvaluateConfigInvalid(t *testing.T) {
	for _, args := range [][]string{{"--runs", "-1"}, {"--k", "0"}, {"--jobs", "0"}} {
		cfg := config.GetDefaultConfig()
		cfg.Dataset.Source = "data/events.csv"
		overrideEvaluateConfig(newEvaluateCommand(t, args...), cfg)
		assert.True(t, errors.Is(cfg.Validate(), errors.NotValid), args)
	}
}
