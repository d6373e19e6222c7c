// Copyright 2024 gorse Project Authors
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

package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type spanKeyType string

var spanKeyName = spanKeyType(uuid.New().String())

type Status string

const (
	StatusPending  Status = "Pending"
	StatusComplete Status = "Complete"
	StatusRunning  Status = "Running"
	StatusFailed   Status = "Failed"
)

// Listener receives span events. Implementations must be safe for concurrent use.
type Listener interface {
	OnStart(name string, total int)
	OnAdd(name string, n int)
	OnEnd(name string, err error)
}

type Tracer struct {
	name     string
	listener Listener
	spans    sync.Map
}

func NewTracer(name string, listener Listener) *Tracer {
	return &Tracer{name: name, listener: listener}
}

// Start creates a root span.
func (t *Tracer) Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	span := newSpan(t, name, total)
	t.spans.Store(name, span)
	return context.WithValue(ctx, spanKeyName, span), span
}

// List returns the progress of root spans and their children.
func (t *Tracer) List() []Progress {
	var progress []Progress
	t.spans.Range(func(_, value any) bool {
		progress = append(progress, value.(*Span).List()...)
		return true
	})
	return progress
}

type Span struct {
	tracer   *Tracer
	name     string
	total    int
	count    atomic.Int64
	mu       sync.Mutex
	status   Status
	err      error
	start    time.Time
	finish   time.Time
	children sync.Map
}

func newSpan(tracer *Tracer, name string, total int) *Span {
	span := &Span{
		tracer: tracer,
		name:   name,
		total:  total,
		status: StatusRunning,
		start:  time.Now(),
	}
	if tracer != nil && tracer.listener != nil {
		tracer.listener.OnStart(name, total)
	}
	return span
}

func (s *Span) Add(n int) {
	s.count.Add(int64(n))
	if s.tracer != nil && s.tracer.listener != nil {
		s.tracer.listener.OnAdd(s.name, n)
	}
}

func (s *Span) End() {
	s.mu.Lock()
	s.count.Store(int64(s.total))
	s.status = StatusComplete
	s.finish = time.Now()
	s.mu.Unlock()
	if s.tracer != nil && s.tracer.listener != nil {
		s.tracer.listener.OnEnd(s.name, nil)
	}
}

func (s *Span) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.status = StatusFailed
	s.finish = time.Now()
	s.mu.Unlock()
	if s.tracer != nil && s.tracer.listener != nil {
		s.tracer.listener.OnEnd(s.name, err)
	}
}

func (s *Span) Count() int {
	return int(s.count.Load())
}

func (s *Span) Total() int {
	return s.total
}

// List returns the progress of this span followed by its children.
func (s *Span) List() []Progress {
	s.mu.Lock()
	p := Progress{
		Name:       s.name,
		Status:     s.status,
		Count:      s.Count(),
		Total:      s.total,
		StartTime:  s.start,
		FinishTime: s.finish,
	}
	if s.err != nil {
		p.Error = s.err.Error()
	}
	if s.tracer != nil {
		p.Tracer = s.tracer.name
	}
	s.mu.Unlock()
	progress := []Progress{p}
	s.children.Range(func(_, value any) bool {
		progress = append(progress, value.(*Span).List()...)
		return true
	})
	return progress
}

// Start creates a child span of the span carried by ctx. Without a parent the
// span is detached and reports to no listener.
func Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	if ctx == nil {
		return nil, newSpan(nil, name, total)
	}
	span, ok := ctx.Value(spanKeyName).(*Span)
	if !ok {
		return ctx, newSpan(nil, name, total)
	}
	childSpan := newSpan(span.tracer, name, total)
	span.children.Store(name, childSpan)
	return context.WithValue(ctx, spanKeyName, childSpan), childSpan
}

type Progress struct {
	Tracer     string
	Name       string
	Status     Status
	Error      string
	Count      int
	Total      int
	StartTime  time.Time
	FinishTime time.Time
}
