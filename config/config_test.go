// Copyright 2021 gorse Project Authors
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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestUnmarshal(t *testing.T) {
	data, err := os.ReadFile("config.toml.template")
	assert.NoError(t, err)
	text := string(data)
	text = strings.Replace(text, "bucket = \"\"", "bucket = \"nextitem\"", 1)
	viper.Reset()
	viper.SetConfigType("toml")
	err = viper.ReadConfig(strings.NewReader(text))
	assert.NoError(t, err)
	var config Config
	err = viper.Unmarshal(&config)
	assert.NoError(t, err)

	// [dataset]
	assert.Equal(t, "data/events.csv", config.Dataset.Source)
	assert.Equal(t, "", config.Dataset.TablePrefix)
	assert.Equal(t, 0.2, config.Dataset.SplitRatio)
	assert.True(t, config.Dataset.PrefixIds)
	// [model]
	assert.Equal(t, ModelBaseline, config.Model.Name)
	assert.Equal(t, PairDistinct, config.Model.PairPolicy)
	assert.Equal(t, 0.5, config.Model.CategoryCutoff)
	assert.Equal(t, 0.0005, config.Model.BrandWeight)
	assert.Equal(t, 0.9995, config.Model.PopularityWeight)
	assert.Equal(t, int64(0), config.Model.RandomState)
	// [evaluate]
	assert.Equal(t, 10, config.Evaluate.K)
	assert.Equal(t, 100, config.Evaluate.Runs)
	assert.Equal(t, 2, config.Evaluate.MinInteractions)
	assert.Equal(t, 1, config.Evaluate.Jobs)
	assert.Empty(t, config.Evaluate.UserFilter)
	// [blob]
	assert.Equal(t, BlobPOSIX, config.Blob.Type)
	assert.Equal(t, "snapshots", config.Blob.Dir)
	assert.Equal(t, "snapshot.bin", config.Blob.Name)
	assert.Equal(t, "nextitem", config.Blob.S3.Bucket)
	assert.False(t, config.Blob.S3.UseSSL)
	assert.NoError(t, config.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte(`
[dataset]
source = "sqlite:///tmp/events.db"
split_ratio = 0.5

[evaluate]
k = 5
`), 0644)
	assert.NoError(t, err)
	t.Setenv("NEXTITEM_EVALUATE_SEED", "42")
	t.Setenv("NEXTITEM_MODEL_NAME", "popular")

	config, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/events.db", config.Dataset.Source)
	assert.Equal(t, 0.5, config.Dataset.SplitRatio)
	assert.True(t, config.Dataset.PrefixIds)
	assert.Equal(t, 5, config.Evaluate.K)
	assert.Equal(t, 100, config.Evaluate.Runs)
	assert.Equal(t, int64(42), config.Evaluate.Seed)
	assert.Equal(t, ModelPopular, config.Model.Name)
}

func TestValidate(t *testing.T) {
	config := GetDefaultConfig()
	config.Dataset.Source = "data/events.csv"
	assert.NoError(t, config.Validate())

	config.Dataset.SplitRatio = 1
	assert.True(t, errors.Is(config.Validate(), errors.NotValid))
	config.Dataset.SplitRatio = 0.2

	config.Model.Name = "word2vec"
	assert.True(t, errors.Is(config.Validate(), errors.NotValid))
	config.Model.Name = ModelBaseline

	config.Evaluate.K = 0
	assert.True(t, errors.Is(config.Validate(), errors.NotValid))
	config.Evaluate.K = 10

	config.Blob.Type = BlobS3
	assert.True(t, errors.Is(config.Validate(), errors.NotValid))
	config.Blob.S3.Endpoint = "localhost:9000"
	config.Blob.S3.Bucket = "nextitem"
	assert.NoError(t, config.Validate())

	config.Dataset.Source = ""
	assert.Error(t, config.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
