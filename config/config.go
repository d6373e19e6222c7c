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

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const (
	ModelBaseline = "baseline"
	ModelRandom   = "random"
	ModelAdHoc    = "adhoc"
	ModelPopular  = "popular"

	PairDistinct = "distinct"
	PairEvents   = "events"

	BlobPOSIX = "posix"
	BlobS3    = "s3"
	BlobGCS   = "gcs"
	BlobAzure = "azure"
)

// Config is the configuration for the toolkit.
type Config struct {
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Model    ModelConfig    `mapstructure:"model"`
	Evaluate EvaluateConfig `mapstructure:"evaluate"`
	Blob     BlobConfig     `mapstructure:"blob"`
}

// DatasetConfig is the configuration for the interaction log.
type DatasetConfig struct {
	Source      string  `mapstructure:"source" validate:"required"`
	TablePrefix string  `mapstructure:"table_prefix"`
	SplitRatio  float64 `mapstructure:"split_ratio" validate:"gte=0,lt=1"`
	PrefixIds   bool    `mapstructure:"prefix_ids"`
}

// ModelConfig is the configuration for the recommender.
type ModelConfig struct {
	Name             string  `mapstructure:"name" validate:"oneof=baseline random adhoc popular"`
	PairPolicy       string  `mapstructure:"pair_policy" validate:"oneof=distinct events"`
	CategoryCutoff   float64 `mapstructure:"category_cutoff" validate:"gte=0,lte=1"`
	BrandWeight      float64 `mapstructure:"brand_weight" validate:"gte=0"`
	PopularityWeight float64 `mapstructure:"popularity_weight" validate:"gte=0"`
	RandomState      int64   `mapstructure:"random_state"`
}

// EvaluateConfig is the configuration for the evaluation harness.
type EvaluateConfig struct {
	K               int    `mapstructure:"k" validate:"gt=0"`
	Runs            int    `mapstructure:"runs" validate:"gt=0"`
	MinInteractions int    `mapstructure:"min_interactions" validate:"gte=1"`
	Seed            int64  `mapstructure:"seed"`
	Jobs            int    `mapstructure:"jobs" validate:"gte=1"`
	UserFilter      string `mapstructure:"user_filter"`
}

// BlobConfig is the configuration for snapshot storage.
type BlobConfig struct {
	Type  string          `mapstructure:"type" validate:"oneof=posix s3 gcs azure"`
	Dir   string          `mapstructure:"dir"`
	Name  string          `mapstructure:"name" validate:"required"`
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
	AccessToken     string `mapstructure:"access_token"`
}

type AzureBlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
	Container        string `mapstructure:"container"`
	Prefix           string `mapstructure:"prefix"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			SplitRatio: 0.2,
			PrefixIds:  true,
		},
		Model: ModelConfig{
			Name:             ModelBaseline,
			PairPolicy:       PairDistinct,
			CategoryCutoff:   0.5,
			BrandWeight:      0.0005,
			PopularityWeight: 0.9995,
		},
		Evaluate: EvaluateConfig{
			K:               10,
			Runs:            100,
			MinInteractions: 2,
			Jobs:            1,
		},
		Blob: BlobConfig{
			Type: BlobPOSIX,
			Dir:  "snapshots",
			Name: "snapshot.bin",
		},
	}
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [dataset]
	viper.SetDefault("dataset.source", defaultConfig.Dataset.Source)
	viper.SetDefault("dataset.table_prefix", defaultConfig.Dataset.TablePrefix)
	viper.SetDefault("dataset.split_ratio", defaultConfig.Dataset.SplitRatio)
	viper.SetDefault("dataset.prefix_ids", defaultConfig.Dataset.PrefixIds)
	// [model]
	viper.SetDefault("model.name", defaultConfig.Model.Name)
	viper.SetDefault("model.pair_policy", defaultConfig.Model.PairPolicy)
	viper.SetDefault("model.category_cutoff", defaultConfig.Model.CategoryCutoff)
	viper.SetDefault("model.brand_weight", defaultConfig.Model.BrandWeight)
	viper.SetDefault("model.popularity_weight", defaultConfig.Model.PopularityWeight)
	viper.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	// [evaluate]
	viper.SetDefault("evaluate.k", defaultConfig.Evaluate.K)
	viper.SetDefault("evaluate.runs", defaultConfig.Evaluate.Runs)
	viper.SetDefault("evaluate.min_interactions", defaultConfig.Evaluate.MinInteractions)
	viper.SetDefault("evaluate.seed", defaultConfig.Evaluate.Seed)
	viper.SetDefault("evaluate.jobs", defaultConfig.Evaluate.Jobs)
	viper.SetDefault("evaluate.user_filter", defaultConfig.Evaluate.UserFilter)
	// [blob]
	viper.SetDefault("blob.type", defaultConfig.Blob.Type)
	viper.SetDefault("blob.dir", defaultConfig.Blob.Dir)
	viper.SetDefault("blob.name", defaultConfig.Blob.Name)
	// [blob.s3]
	viper.SetDefault("blob.s3.endpoint", "")
	viper.SetDefault("blob.s3.access_key_id", "")
	viper.SetDefault("blob.s3.secret_access_key", "")
	viper.SetDefault("blob.s3.bucket", "")
	viper.SetDefault("blob.s3.prefix", "")
	viper.SetDefault("blob.s3.use_ssl", false)
	// [blob.gcs]
	viper.SetDefault("blob.gcs.bucket", "")
	viper.SetDefault("blob.gcs.prefix", "")
	viper.SetDefault("blob.gcs.credentials_file", "")
	viper.SetDefault("blob.gcs.access_token", "")
	// [blob.azure]
	viper.SetDefault("blob.azure.connection_string", "")
	viper.SetDefault("blob.azure.account_name", "")
	viper.SetDefault("blob.azure.account_key", "")
	viper.SetDefault("blob.azure.endpoint", "")
	viper.SetDefault("blob.azure.container", "")
	viper.SetDefault("blob.azure.prefix", "")
}

// LoadConfig loads configuration from a TOML file. Environment variables with the
// prefix NEXTITEM_ override file values, e.g. NEXTITEM_EVALUATE_SEED. An empty path
// loads defaults and environment variables only.
func LoadConfig(path string) (*Config, error) {
	viper.Reset()
	setDefault()
	viper.SetEnvPrefix("NEXTITEM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if path != "" {
		viper.SetConfigFile(path)
		viper.SetConfigType("toml")
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "failed to read config %s", path)
		}
	}
	var conf Config
	if err := viper.Unmarshal(&conf); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// Validate checks field constraints and cross-field requirements of the blob store.
func (config *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	switch config.Blob.Type {
	case BlobS3:
		if config.Blob.S3.Endpoint == "" || config.Blob.S3.Bucket == "" {
			return errors.NotValidf("blob.s3 without endpoint or bucket")
		}
	case BlobGCS:
		if config.Blob.GCS.Bucket == "" {
			return errors.NotValidf("blob.gcs without bucket")
		}
	case BlobAzure:
		if config.Blob.Azure.Container == "" {
			return errors.NotValidf("blob.azure without container")
		}
	}
	return nil
}
