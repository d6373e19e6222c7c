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
	"fmt"
	"math"

	mapset "github.com/deckarep/golang-set/v2"
	"modernc.org/mathutil"
)

// Metric names a ranking metric.
type Metric string

const (
	AveragePrecision Metric = "AP"
	Recall           Metric = "Recall"
	Precision        Metric = "Precision"
	HitRate          Metric = "HR"
	Rank             Metric = "Rank"
	ReciprocalRank   Metric = "RR"
)

// Metrics lists every metric in report order.
var Metrics = []Metric{AveragePrecision, Recall, Precision, HitRate, Rank, ReciprocalRank}

// Name returns the metric name at cutoff k, e.g. "AP@10".
func (m Metric) Name(k int) string {
	return fmt.Sprintf("%s@%d", m, k)
}

// Results is a recommendation list matched against the relevant items of a user.
// Metrics that are undefined for the list return NaN.
type Results struct {
	Recommendations  []string
	Matches          []bool
	NRecommendations int
	NRelevantItems   int
}

// NewResults matches recommendations against relevant items. Duplicated
// relevant items count once.
func NewResults(recommendations, relevantItems []string) *Results {
	relevant := mapset.NewThreadUnsafeSet(relevantItems...)
	matches := make([]bool, len(recommendations))
	for i, itemId := range recommendations {
		matches[i] = relevant.Contains(itemId)
	}
	return &Results{
		Recommendations:  recommendations,
		Matches:          matches,
		NRecommendations: len(recommendations),
		NRelevantItems:   relevant.Cardinality(),
	}
}

func (r *Results) cutoff(k int) int {
	return mathutil.Max(0, mathutil.Min(k, r.NRecommendations))
}

func (r *Results) hits(k int) int {
	hit := 0
	for _, match := range r.Matches[:r.cutoff(k)] {
		if match {
			hit++
		}
	}
	return hit
}

// RecallAtK is the fraction of relevant items found in the top k.
//
//	\frac{|relevant \cap top_k|} {|relevant|}
func (r *Results) RecallAtK(k int) float64 {
	if r.NRelevantItems == 0 {
		return math.NaN()
	}
	return float64(r.hits(k)) / float64(r.NRelevantItems)
}

// PrecisionAtK is the fraction of the top k that is relevant.
//
//	\frac{|relevant \cap top_k|} {|top_k|}
func (r *Results) PrecisionAtK(k int) float64 {
	n := r.cutoff(k)
	if n == 0 {
		return math.NaN()
	}
	return float64(r.hits(n)) / float64(n)
}

// AveragePrecisionAtK sums the precision at every hit position of the top k,
// normalized by min(|relevant|, |top_k|) so that a list holding relevant items
// in its first positions scores 1.
//
// The literal definition divides by min(|relevant|, |recommended|), which
// ignores k. With k < |recommended| that caps AP@k below 1 even for a perfect
// top k, so the denominator is clamped to the cutoff. Both agree when k covers
// the whole list.
func (r *Results) AveragePrecisionAtK(k int) float64 {
	n := r.cutoff(k)
	denominator := mathutil.Min(r.NRelevantItems, n)
	if denominator == 0 {
		return math.NaN()
	}
	sumPrecision := 0.0
	hit := 0
	for i, match := range r.Matches[:n] {
		if match {
			hit++
			sumPrecision += float64(hit) / float64(i+1)
		}
	}
	return sumPrecision / float64(denominator)
}

// RankAtK returns the 1-based position of the first hit in the top k, or NaN
// if there is none.
func (r *Results) RankAtK(k int) float64 {
	for i, match := range r.Matches[:r.cutoff(k)] {
		if match {
			return float64(i + 1)
		}
	}
	return math.NaN()
}

// ReciprocalRankAtK returns 1/rank of the first hit in the top k, or 0.
func (r *Results) ReciprocalRankAtK(k int) float64 {
	rank := r.RankAtK(k)
	if math.IsNaN(rank) {
		return 0
	}
	return 1 / rank
}

// HitRateAtK returns 1 if any of the top k is relevant, otherwise 0.
func (r *Results) HitRateAtK(k int) float64 {
	if r.hits(k) > 0 {
		return 1
	}
	return 0
}

// Evaluate computes a metric at cutoff k.
func (r *Results) Evaluate(metric Metric, k int) float64 {
	switch metric {
	case AveragePrecision:
		return r.AveragePrecisionAtK(k)
	case Recall:
		return r.RecallAtK(k)
	case Precision:
		return r.PrecisionAtK(k)
	case HitRate:
		return r.HitRateAtK(k)
	case Rank:
		return r.RankAtK(k)
	case ReciprocalRank:
		return r.ReciprocalRankAtK(k)
	default:
		return math.NaN()
	}
}
