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
	"github.com/gorse-io/nextitem/base/log"
	"github.com/gorse-io/nextitem/base/progress"
	"github.com/gorse-io/nextitem/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCommand = &cobra.Command{
	Use:   "import <csv file>",
	Short: "Import an interaction log into a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		target, _ := cmd.Flags().GetString("database")
		if target == "" {
			target = cfg.Dataset.Source
		}
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		purge, _ := cmd.Flags().GetBool("purge")
		if batchSize <= 0 {
			return errors.NotValidf("batch size %d", batchSize)
		}

		events, err := data.LoadCSV(args[0])
		if err != nil {
			return errors.Trace(err)
		}
		database, err := data.Open(target, cfg.Dataset.TablePrefix)
		if err != nil {
			return errors.Trace(err)
		}
		defer database.Close()
		if err = database.Init(); err != nil {
			return errors.Trace(err)
		}
		if purge {
			if err = database.Purge(); err != nil {
				return errors.Trace(err)
			}
		}

		ctx, root := startTracer(cmd, "import")
		defer root.End()
		batches := lo.Chunk(events, batchSize)
		_, span := progress.Start(ctx, "insert_events", len(batches))
		for _, batch := range batches {
			if err = database.BatchInsertEvents(ctx, batch); err != nil {
				span.Fail(err)
				return errors.Trace(err)
			}
			span.Add(1)
		}
		span.End()
		log.Logger().Info("events imported",
			zap.String("source", args[0]),
			zap.String("database", log.RedactDBURL(target)),
			zap.Int("n_events", len(events)))
		return nil
	},
}

func init() {
	importCommand.Flags().String("database", "", "database URL, default to dataset.source")
	importCommand.Flags().Int("batch-size", 1000, "number of events per insert")
	importCommand.Flags().Bool("purge", false, "remove existing events before import")
	rootCommand.AddCommand(importCommand)
}
