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
	"fmt"
	"io"

	"github.com/gorse-io/nextitem/base/log"
	"github.com/gorse-io/nextitem/config"
	"github.com/gorse-io/nextitem/dataset"
	"github.com/gorse-io/nextitem/model"
	"github.com/gorse-io/nextitem/model/registry"
	"github.com/gorse-io/nextitem/snapshot"
	"github.com/gorse-io/nextitem/storage/blob"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate latency and ranking accuracy of a model",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		overrideEvaluateConfig(cmd, cfg)
		if err = cfg.Validate(); err != nil {
			return errors.Trace(err)
		}
		fromSnapshot, _ := cmd.Flags().GetBool("snapshot")
		skipPerformance, _ := cmd.Flags().GetBool("skip-performance")
		ctx, root := startTracer(cmd, "evaluate")
		defer root.End()

		var (
			ds   *dataset.Dataset
			m    model.Model
			opts []model.EvaluatorOption
		)
		if fromSnapshot {
			store, err := blob.Open(cfg.Blob)
			if err != nil {
				return errors.Trace(err)
			}
			if ds, m, err = snapshot.Load(ctx, store, cfg.Blob.Name); err != nil {
				return errors.Trace(err)
			}
			opts = append(opts, model.Prepared())
		} else {
			if name, _ := cmd.Flags().GetString("model"); name != "" {
				cfg.Model.Name = name
			}
			if ds, err = loadDataset(ctx, cfg); err != nil {
				return errors.Trace(err)
			}
			if m, err = registry.New(cfg.Model); err != nil {
				return errors.Trace(err)
			}
		}

		evaluator, err := model.NewEvaluator(ctx, ds, m, cfg.Evaluate, opts...)
		if err != nil {
			return errors.Trace(err)
		}
		out := cmd.OutOrStdout()
		if !skipPerformance {
			performance, err := evaluator.EvaluatePerformance(ctx, cfg.Evaluate.Runs)
			if err != nil {
				return errors.Trace(err)
			}
			printPerformance(out, performance)
		}
		accuracy, err := evaluator.EvaluateAccuracy(ctx, cfg.Evaluate.K, cfg.Evaluate.Runs)
		if err != nil {
			return errors.Trace(err)
		}
		return printAccuracy(out, accuracy)
	},
}

func init() {
	evaluateCommand.Flags().String("model", "", "model name, default to model.name")
	evaluateCommand.Flags().Bool("snapshot", false, "evaluate the model saved in the snapshot")
	evaluateCommand.Flags().Bool("skip-performance", false, "skip the latency benchmark")
	addEvaluateFlags(evaluateCommand.Flags())
	rootCommand.AddCommand(evaluateCommand)
}

// addEvaluateFlags adds flags overriding the [evaluate] section.
func addEvaluateFlags(flags *pflag.FlagSet) {
	flags.Int("k", 0, "length of recommendation lists, default to evaluate.k")
	flags.Int("runs", 0, "number of sampled runs, default to evaluate.runs")
	flags.IntP("jobs", "j", 0, "number of concurrent runs, default to evaluate.jobs")
	flags.Int64("seed", 0, "sampling seed, default to evaluate.seed")
	flags.String("filter", "", "user filter expression, default to evaluate.user_filter")
}

// overrideEvaluateConfig applies command line flags on top of the [evaluate] section.
func overrideEvaluateConfig(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("k") {
		cfg.Evaluate.K, _ = flags.GetInt("k")
	}
	if flags.Changed("runs") {
		cfg.Evaluate.Runs, _ = flags.GetInt("runs")
	}
	if flags.Changed("jobs") {
		cfg.Evaluate.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("seed") {
		cfg.Evaluate.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("filter") {
		cfg.Evaluate.UserFilter, _ = flags.GetString("filter")
	}
}

func printPerformance(w io.Writer, report *model.PerformanceReport) {
	_, _ = fmt.Fprintf(w, "Model: %s\n", report.ModelName)
	_, _ = fmt.Fprintf(w, "Setup time: %v\n", report.SetupTime)
	_, _ = fmt.Fprintf(w, "Recommend time over %d runs: mean %v, min %v, max %v\n",
		report.Runs, report.Mean, report.Min, report.Max)
	logFailures(report.Failures)
}

func printAccuracy(w io.Writer, report *model.AccuracyReport) error {
	_, _ = fmt.Fprintf(w, "Model: %s, k = %d, runs = %d\n", report.ModelName, report.K, report.Runs)
	for _, phase := range model.Phases {
		_, _ = fmt.Fprintf(w, "Phase: %s\n", phase)
		table := tablewriter.NewWriter(w)
		table.Header(lo.ToAnySlice(model.TableHeader)...)
		if err := table.Bulk(report.Table(phase)); err != nil {
			return errors.Trace(err)
		}
		if err := table.Render(); err != nil {
			return errors.Trace(err)
		}
	}
	logFailures(report.Failures)
	return nil
}

func logFailures(failures []model.RunFailure) {
	if len(failures) == 0 {
		return
	}
	log.Logger().Warn("some runs failed", zap.Int("n_failures", len(failures)))
	for _, f := range failures {
		log.Logger().Debug("failed run",
			zap.Int("run", f.Run),
			zap.String("user_id", f.UserId),
			zap.String("item_id", f.ItemId),
			zap.String("error", f.Error))
	}
}
