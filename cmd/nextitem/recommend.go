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
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gorse-io/nextitem/model"
	"github.com/gorse-io/nextitem/snapshot"
	"github.com/gorse-io/nextitem/storage/blob"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var recommendCommand = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend products for a user from a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		userId, _ := cmd.Flags().GetString("user")
		itemId, _ := cmd.Flags().GetString("item")
		n, _ := cmd.Flags().GetInt("n")
		if n <= 0 {
			n = cfg.Evaluate.K
		}
		verbose, _ := cmd.Flags().GetBool("explain")

		store, err := blob.Open(cfg.Blob)
		if err != nil {
			return errors.Trace(err)
		}
		ds, m, err := snapshot.Load(cmd.Context(), store, cfg.Blob.Name)
		if err != nil {
			return errors.Trace(err)
		}
		ctx := cmd.Context()
		evaluator, err := model.NewEvaluator(ctx, ds, m, cfg.Evaluate, model.Prepared())
		if err != nil {
			return errors.Trace(err)
		}
		full, validation, info, err := evaluator.Recommend(ctx, userId, itemId, n, true)
		if err != nil {
			return errors.Trace(err)
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Model: %s\n", evaluator.ModelName())
		table := tablewriter.NewWriter(out)
		table.Header("Rank", "Product", "Relevant", "Validation")
		for i, productId := range full.Recommendations {
			if err = table.Append(strconv.Itoa(i+1), productId,
				strconv.FormatBool(full.Matches[i]),
				strconv.FormatBool(validation.Matches[i])); err != nil {
				return errors.Trace(err)
			}
		}
		if err = table.Render(); err != nil {
			return errors.Trace(err)
		}

		metrics := tablewriter.NewWriter(out)
		metrics.Header("Metric", "Full", "Validation")
		for _, metric := range model.Metrics {
			if err = metrics.Append(metric.Name(n),
				formatMetric(full.Evaluate(metric, n)),
				formatMetric(validation.Evaluate(metric, n))); err != nil {
				return errors.Trace(err)
			}
		}
		if err = metrics.Render(); err != nil {
			return errors.Trace(err)
		}

		if verbose {
			text, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return errors.Trace(err)
			}
			_, _ = fmt.Fprintln(out, string(text))
		}
		return nil
	},
}

func init() {
	recommendCommand.Flags().String("user", "", "user id, a random user if empty")
	recommendCommand.Flags().String("item", "", "seed product id, a random training item if empty")
	recommendCommand.Flags().IntP("n", "n", 0, "number of recommendations, default to evaluate.k")
	recommendCommand.Flags().Bool("explain", false, "print the scores behind the list")
	rootCommand.AddCommand(recommendCommand)
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
