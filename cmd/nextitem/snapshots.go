// Copyright 2025 gorse Project Authors
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
	"io"
	"os"
	"strconv"
	"time"

	"github.com/gorse-io/nextitem/base/log"
	"github.com/gorse-io/nextitem/storage/blob"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var snapshotsCommand = &cobra.Command{
	Use:   "snapshots",
	Short: "List or remove snapshots in the blob store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		store, err := blob.Open(cfg.Blob)
		if err != nil {
			return errors.Trace(err)
		}
		ctx := cmd.Context()
		if name, _ := cmd.Flags().GetString("remove"); name != "" {
			if err = store.Remove(ctx, name); err != nil {
				return errors.Trace(err)
			}
			log.Logger().Info("snapshot removed", zap.String("name", name))
			return nil
		}
		blobs, err := store.List(ctx)
		if err != nil {
			return errors.Trace(err)
		}
		return printSnapshots(os.Stdout, blobs)
	},
}

func printSnapshots(w io.Writer, blobs []blob.Info) error {
	table := tablewriter.NewWriter(w)
	table.Header("Name", "Size", "Modified")
	rows := lo.Map(blobs, func(b blob.Info, _ int) []string {
		return []string{b.Name, strconv.FormatInt(b.Size, 10), b.Modified.Format(time.DateTime)}
	})
	if err := table.Bulk(rows); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(table.Render())
}

func init() {
	snapshotsCommand.Flags().String("remove", "", "remove the snapshot with this name")
	rootCommand.AddCommand(snapshotsCommand)
}
