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

package model

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/gorse-io/nextitem/base"
	"github.com/gorse-io/nextitem/base/log"
	"github.com/gorse-io/nextitem/base/progress"
	"github.com/gorse-io/nextitem/common/parallel"
	"github.com/gorse-io/nextitem/config"
	"github.com/gorse-io/nextitem/dataset"
	"github.com/juju/errors"
	"github.com/montanaflynn/stats"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Phase names the relevance set a recommendation list is scored against.
type Phase string

const (
	PhaseFull       Phase = "full"
	PhaseValidation Phase = "validation"
)

// Phases lists every phase in report order.
var Phases = []Phase{PhaseFull, PhaseValidation}

// TableHeader is the header of AccuracyReport.Table.
var TableHeader = []string{"Metric", "Mean", "Median", "Max", "Min", "Defined"}

// RunFailure records a sampled run whose recommendation failed.
type RunFailure struct {
	Run    int
	UserId string
	ItemId string
	Error  string
}

// PerformanceReport summarizes wall time of recommendation calls.
type PerformanceReport struct {
	ModelName string
	Runs      int
	Failures  []RunFailure
	SetupTime time.Duration
	Mean      time.Duration
	Min       time.Duration
	Max       time.Duration
}

// MetricSummary aggregates the defined values of a metric across runs. Defined
// is the number of runs that contributed. All statistics are NaN if none did.
type MetricSummary struct {
	Metric  Metric
	Mean    float64
	Median  float64
	Max     float64
	Min     float64
	Defined int
}

type PhaseReport struct {
	Phase   Phase
	Metrics []MetricSummary
}

// AccuracyReport summarizes ranking metrics for both phases.
type AccuracyReport struct {
	ModelName string
	K         int
	Runs      int
	Failures  []RunFailure
	Phases    []PhaseReport
}

// Summary returns the summary of a metric in a phase.
func (r *AccuracyReport) Summary(phase Phase, metric Metric) (MetricSummary, bool) {
	for _, p := range r.Phases {
		if p.Phase != phase {
			continue
		}
		return lo.Find(p.Metrics, func(s MetricSummary) bool {
			return s.Metric == metric
		})
	}
	return MetricSummary{}, false
}

// Table returns one row per metric of a phase. Columns follow TableHeader.
func (r *AccuracyReport) Table(phase Phase) [][]string {
	var rows [][]string
	for _, p := range r.Phases {
		if p.Phase != phase {
			continue
		}
		for _, s := range p.Metrics {
			rows = append(rows, []string{
				s.Metric.Name(r.K),
				formatFloat(s.Mean),
				formatFloat(s.Median),
				formatFloat(s.Max),
				formatFloat(s.Min),
				strconv.Itoa(s.Defined),
			})
		}
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

type sample struct {
	userId string
	itemId string
}

// Evaluator draws (user, seed item) samples from a dataset and measures a model.
type Evaluator struct {
	dataset   *dataset.Dataset
	model     Model
	config    config.EvaluateConfig
	filter    *vm.Program
	setupTime time.Duration

	mu  sync.Mutex
	rng base.RandomGenerator
}

type evaluatorOptions struct {
	prepared bool
}

type EvaluatorOption func(*evaluatorOptions)

// Prepared skips setup of a model that is already set up on the dataset, such
// as a model restored from a snapshot. The setup time is reported as zero.
func Prepared() EvaluatorOption {
	return func(o *evaluatorOptions) {
		o.prepared = true
	}
}

// NewEvaluator sets up the model on the dataset and records the setup time.
func NewEvaluator(ctx context.Context, ds *dataset.Dataset, m Model, cfg config.EvaluateConfig, opts ...EvaluatorOption) (*Evaluator, error) {
	var o evaluatorOptions
	for _, opt := range opts {
		opt(&o)
	}
	e := &Evaluator{
		dataset: ds,
		model:   m,
		config:  cfg,
		rng:     base.NewRandomGenerator(cfg.Seed),
	}
	if cfg.UserFilter != "" {
		program, err := expr.Compile(cfg.UserFilter, expr.Env(userEnv(&dataset.User{})), expr.AsBool())
		if err != nil {
			return nil, errors.Annotatef(err, "compile user filter %q", cfg.UserFilter)
		}
		e.filter = program
	}
	if o.prepared {
		return e, nil
	}
	start := time.Now()
	if err := m.Setup(ctx, ds); err != nil {
		return nil, errors.Annotatef(err, "setup %s", m.GetName())
	}
	e.setupTime = time.Since(start)
	log.Logger().Info("model set up",
		zap.String("model", m.GetName()),
		zap.Duration("setup_time", e.setupTime))
	return e, nil
}

func userEnv(user *dataset.User) map[string]any {
	return map[string]any{
		"user_id":      user.UserId,
		"n_relevant":   user.NRelevant(),
		"n_train":      len(user.TrainItems),
		"n_validation": len(user.ValidationItems),
	}
}

func (e *Evaluator) SetupTime() time.Duration {
	return e.setupTime
}

func (e *Evaluator) ModelName() string {
	return e.model.GetName()
}

// Recommend recommends n products for a user who interacted with itemId. An
// empty userId is replaced by a random qualified user and an empty itemId by a
// random training item of the user. The list is scored against the full
// relevance set and, if validation is set, against the validation items.
func (e *Evaluator) Recommend(ctx context.Context, userId, itemId string, n int, validation bool) (*Results, *Results, any, error) {
	var (
		user *dataset.User
		err  error
	)
	e.mu.Lock()
	if userId == "" {
		user, err = e.dataset.RandomUser(e.rng, e.config.MinInteractions, validation)
	} else {
		user, err = e.dataset.User(userId)
	}
	if err == nil && itemId == "" {
		itemId, err = e.dataset.RandomTrainItem(e.rng, user)
	}
	e.mu.Unlock()
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	if _, err = e.dataset.Product(itemId); err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	recommendations, info, err := e.model.Recommend(ctx, user.UserId, itemId, n)
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	full := NewResults(recommendations, user.RelevantItems)
	if !validation {
		return full, nil, info, nil
	}
	return full, NewResults(recommendations, user.ValidationItems), info, nil
}

// qualifiedUsers returns users with enough interactions and at least one
// training item that pass the user filter.
func (e *Evaluator) qualifiedUsers() ([]*dataset.User, error) {
	var users []*dataset.User
	all := e.dataset.Users()
	for i := range all {
		user := &all[i]
		if user.NRelevant() < e.config.MinInteractions || len(user.TrainItems) == 0 {
			continue
		}
		if e.filter != nil {
			ok, err := expr.Run(e.filter, userEnv(user))
			if err != nil {
				return nil, errors.Annotatef(err, "filter user %s", user.UserId)
			}
			if !ok.(bool) {
				continue
			}
		}
		users = append(users, user)
	}
	if len(users) == 0 {
		return nil, errors.NotFoundf("user with at least %d interactions", e.config.MinInteractions)
	}
	return users, nil
}

// sample draws nRuns (user, training item) pairs with replacement. Samples only
// depend on the seed so reports are reproducible for any number of jobs.
func (e *Evaluator) sample(nRuns int) ([]sample, error) {
	users, err := e.qualifiedUsers()
	if err != nil {
		return nil, errors.Trace(err)
	}
	rng := base.NewRandomGenerator(e.config.Seed)
	samples := make([]sample, nRuns)
	for i := range samples {
		user := base.Choice(rng, users)
		samples[i] = sample{userId: user.UserId, itemId: base.Choice(rng, user.TrainItems)}
	}
	return samples, nil
}

// run recommends for a sample. A panic of the model fails the run only.
func (e *Evaluator) run(ctx context.Context, s sample, k int, validation bool) (full, val *Results, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	full, val, _, err = e.Recommend(ctx, s.userId, s.itemId, k, validation)
	return
}

type failures struct {
	mu   sync.Mutex
	runs []RunFailure
}

func (f *failures) add(run int, s sample, err error) {
	log.RunLogger(run, s.userId, s.itemId).Warn("failed to recommend", zap.Error(err))
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, RunFailure{Run: run, UserId: s.userId, ItemId: s.itemId, Error: err.Error()})
}

func (f *failures) sorted() []RunFailure {
	sort.Slice(f.runs, func(i, j int) bool {
		return f.runs[i].Run < f.runs[j].Run
	})
	return f.runs
}

// EvaluatePerformance times nRuns recommendation calls of K products, each
// including the matching of the list against the relevant items.
func (e *Evaluator) EvaluatePerformance(ctx context.Context, nRuns int) (*PerformanceReport, error) {
	if nRuns <= 0 {
		return nil, errors.NotValidf("number of runs %d", nRuns)
	}
	samples, err := e.sample(nRuns)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ctx, span := progress.Start(ctx, "evaluate_performance", nRuns)
	durations := make([]float64, nRuns)
	var failed failures
	err = parallel.Parallel(ctx, nRuns, e.config.Jobs, func(_, i int) error {
		defer span.Add(1)
		start := time.Now()
		if _, _, err := e.run(ctx, samples[i], e.config.K, false); err != nil {
			durations[i] = math.NaN()
			failed.add(i, samples[i], err)
			return nil
		}
		durations[i] = float64(time.Since(start))
		return nil
	})
	if err != nil {
		span.Fail(err)
		return nil, errors.Trace(err)
	}
	span.End()
	summary := summarize("", durations)
	report := &PerformanceReport{
		ModelName: e.model.GetName(),
		Runs:      nRuns,
		Failures:  failed.sorted(),
		SetupTime: e.setupTime,
		Mean:      toDuration(summary.Mean),
		Min:       toDuration(summary.Min),
		Max:       toDuration(summary.Max),
	}
	log.Logger().Info("performance evaluated",
		zap.String("model", report.ModelName),
		zap.Int("runs", nRuns),
		zap.Int("failures", len(report.Failures)),
		zap.Duration("mean", report.Mean))
	return report, nil
}

func toDuration(ns float64) time.Duration {
	if math.IsNaN(ns) {
		return 0
	}
	return time.Duration(ns)
}

// EvaluateAccuracy computes every metric at k for nRuns samples, once against
// the full relevance set and once against the validation items. A run whose
// user holds out no validation items is left out of the validation phase.
func (e *Evaluator) EvaluateAccuracy(ctx context.Context, k, nRuns int) (*AccuracyReport, error) {
	if k <= 0 {
		return nil, errors.NotValidf("recommendation length %d", k)
	} else if nRuns <= 0 {
		return nil, errors.NotValidf("number of runs %d", nRuns)
	}
	samples, err := e.sample(nRuns)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ctx, span := progress.Start(ctx, "evaluate_accuracy", nRuns)
	values := make(map[Phase][][]float64, len(Phases))
	for _, phase := range Phases {
		values[phase] = make([][]float64, len(Metrics))
		for j := range Metrics {
			values[phase][j] = lo.Times(nRuns, func(int) float64 { return math.NaN() })
		}
	}
	var failed failures
	err = parallel.Parallel(ctx, nRuns, e.config.Jobs, func(_, i int) error {
		defer span.Add(1)
		full, validation, err := e.run(ctx, samples[i], k, true)
		if err != nil {
			failed.add(i, samples[i], err)
			return nil
		}
		for j, metric := range Metrics {
			values[PhaseFull][j][i] = full.Evaluate(metric, k)
			if validation.NRelevantItems > 0 {
				values[PhaseValidation][j][i] = validation.Evaluate(metric, k)
			}
		}
		return nil
	})
	if err != nil {
		span.Fail(err)
		return nil, errors.Trace(err)
	}
	span.End()
	report := &AccuracyReport{
		ModelName: e.model.GetName(),
		K:         k,
		Runs:      nRuns,
		Failures:  failed.sorted(),
	}
	for _, phase := range Phases {
		p := PhaseReport{Phase: phase}
		for j, metric := range Metrics {
			p.Metrics = append(p.Metrics, summarize(metric, values[phase][j]))
		}
		report.Phases = append(report.Phases, p)
	}
	log.Logger().Info("accuracy evaluated",
		zap.String("model", report.ModelName),
		zap.Int("k", k),
		zap.Int("runs", nRuns),
		zap.Int("failures", len(report.Failures)))
	return report, nil
}

// summarize aggregates values, skipping NaN.
func summarize(metric Metric, values []float64) MetricSummary {
	defined := stats.Float64Data(lo.Filter(values, func(v float64, _ int) bool {
		return !math.IsNaN(v)
	}))
	summary := MetricSummary{
		Metric:  metric,
		Mean:    math.NaN(),
		Median:  math.NaN(),
		Max:     math.NaN(),
		Min:     math.NaN(),
		Defined: len(defined),
	}
	if len(defined) == 0 {
		return summary
	}
	summary.Mean, _ = stats.Mean(defined)
	summary.Median, _ = stats.Median(defined)
	summary.Max, _ = stats.Max(defined)
	summary.Min, _ = stats.Min(defined)
	return summary
}
