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
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gorse-io/nextitem/base/log"
	"github.com/gorse-io/nextitem/base/progress"
	"github.com/gorse-io/nextitem/cmd/version"
	"github.com/gorse-io/nextitem/config"
	"github.com/gorse-io/nextitem/dataset"
	"github.com/gorse-io/nextitem/storage/data"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "nextitem",
	Short: "Next-item recommender evaluation toolkit.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Print(version.BuildInfo())
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().Bool("no-progress", false, "hide progress bars")
	rootCommand.Flags().BoolP("version", "v", false, "nextitem version")
}

func main() {
	defer log.CloseLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCommand.ExecuteContext(ctx); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}

// loadConfig loads the configuration file given by --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

// startTracer attaches a root progress span to the command context.
func startTracer(cmd *cobra.Command, name string) (context.Context, *progress.Span) {
	var listener progress.Listener
	if hide, _ := cmd.Flags().GetBool("no-progress"); !hide {
		listener = newBarListener(os.Stderr)
	}
	return progress.NewTracer(name, listener).Start(cmd.Context(), name, 1)
}

// loadDataset reads the interaction log of the dataset section and splits users.
func loadDataset(ctx context.Context, cfg *config.Config) (*dataset.Dataset, error) {
	events, err := data.LoadEvents(ctx, cfg.Dataset.Source, cfg.Dataset.TablePrefix)
	if err != nil {
		return nil, errors.Annotatef(err, "load events from %s", log.RedactDBURL(cfg.Dataset.Source))
	}
	store, err := dataset.Load(events, dataset.WithPrefix(cfg.Dataset.PrefixIds))
	if err != nil {
		return nil, errors.Trace(err)
	}
	ds, err := dataset.New(store, cfg.Dataset.SplitRatio)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return ds, nil
}
