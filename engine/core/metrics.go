package core

import (
	"sync"
	"time"

	"github.com/spaghettifunk/lumen/engine/containers"
)

const AVG_COUNT int = 30

// Well known metric stages.
const (
	MetricStageKernel = "kernel"
	MetricStageDraw   = "draw"
	MetricStageFrame  = "frame"
	MetricStageLoad   = "load"
)

type stageMetrics struct {
	samples *containers.RingQueue[time.Duration]
	count   uint64
	total   time.Duration
}

type MetricsState struct {
	mu     sync.Mutex
	stages map[string]*stageMetrics
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			stages: make(map[string]*stageMetrics),
		}
	})
	return nil
}

// MetricsRecord adds one duration sample for the given stage.
func MetricsRecord(stage string, elapsed time.Duration) {
	_ = MetricsInitialize()
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()

	s, ok := metricsState.stages[stage]
	if !ok {
		s = &stageMetrics{samples: containers.NewRingQueue[time.Duration](AVG_COUNT)}
		metricsState.stages[stage] = s
	}
	s.samples.Push(elapsed)
	s.count++
	s.total += elapsed
}

// MetricsAverage returns the mean of the last AVG_COUNT samples of a stage.
func MetricsAverage(stage string) time.Duration {
	_ = MetricsInitialize()
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()

	s, ok := metricsState.stages[stage]
	if !ok || s.samples.IsEmpty() {
		return 0
	}
	var sum time.Duration
	s.samples.Each(func(d time.Duration) { sum += d })
	return sum / time.Duration(s.samples.Len())
}

// MetricsCount returns how many samples were ever recorded for a stage.
func MetricsCount(stage string) uint64 {
	_ = MetricsInitialize()
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()

	if s, ok := metricsState.stages[stage]; ok {
		return s.count
	}
	return 0
}

// MetricsReport logs the rolling averages at debug level.
func MetricsReport() {
	for _, stage := range []string{MetricStageLoad, MetricStageKernel, MetricStageDraw, MetricStageFrame} {
		if n := MetricsCount(stage); n > 0 {
			LogDebug("%s: %d samples, avg %s", stage, n, MetricsAverage(stage))
		}
	}
}
