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
	"time"

	"github.com/gorse-io/nextitem/base/log"
	"github.com/gorse-io/nextitem/model/registry"
	"github.com/gorse-io/nextitem/snapshot"
	"github.com/gorse-io/nextitem/storage/blob"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var buildCommand = &cobra.Command{
	Use:   "build",
	Short: "Split the dataset, set up a model and save a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		if name, _ := cmd.Flags().GetString("model"); name != "" {
			cfg.Model.Name = name
		}
		ctx, root := startTracer(cmd, "build")
		defer root.End()

		ds, err := loadDataset(ctx, cfg)
		if err != nil {
			return errors.Trace(err)
		}
		m, err := registry.New(cfg.Model)
		if err != nil {
			return errors.Trace(err)
		}
		start := time.Now()
		if err = m.Setup(ctx, ds); err != nil {
			return errors.Annotatef(err, "set up model %s", m.GetName())
		}
		log.Logger().Info("model set up",
			zap.String("model", m.GetName()),
			zap.Duration("setup_time", time.Since(start)))

		store, err := blob.Open(cfg.Blob)
		if err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(snapshot.Save(ctx, store, cfg.Blob.Name, ds, m))
	},
}

func init() {
	buildCommand.Flags().String("model", "", "model name, default to model.name")
	rootCommand.AddCommand(buildCommand)
}
