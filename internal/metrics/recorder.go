// Package metrics records build metrics. Components take a Recorder;
// NoopRecorder is the default and PrometheusRecorder backs /metrics.
package metrics

import "time"

// ResultLabel enumerates per-page result categories.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder receives build observations. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string)
	IncPageResult(result ResultLabel)
	AddDiagnostics(rule string, n int)
	SetQueueDepth(n int)
}

// NoopRecorder drops every observation.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) IncPageResult(ResultLabel)                  {}
func (NoopRecorder) AddDiagnostics(string, int)                 {}
func (NoopRecorder) SetQueueDepth(int)                          {}
