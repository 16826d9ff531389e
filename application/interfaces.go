package application

import (
	"time"
)

// MetricsRecorder records engine metrics. observability.MetricsProvider
// implements it.
type MetricsRecorder interface {
	RecordEntryCreated()
	RecordDrawCompleted(mode string)
	RecordPayout(status string, duration time.Duration)
	RecordTransaction(operation string, duration time.Duration)
}

// HashReserver guards transfer hashes while an entry submission is in flight
type HashReserver interface {
	// Reserve claims txHash and reports whether the claim succeeded
	Reserve(txHash string) bool
	Release(txHash string)
}

type noopMetrics struct{}

func (noopMetrics) RecordEntryCreated()                     {}
func (noopMetrics) RecordDrawCompleted(string)              {}
func (noopMetrics) RecordPayout(string, time.Duration)      {}
func (noopMetrics) RecordTransaction(string, time.Duration) {}
