package gmc

import (
	"sync/atomic"
)

// SessionMetrics contains atomic metrics for one device connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// CommandCount indicates the number of command exchanges started.
	CommandCount atomic.Uint64
	// ShortReadCount indicates the number of short reads observed.
	ShortReadCount atomic.Uint64
	// RetryCount indicates the total number of exchange retries.
	RetryCount atomic.Uint64
	// RecoveredCount indicates the number of exchanges that recovered
	// after one or more retries.
	RecoveredCount atomic.Uint64
	// FatalCount indicates the number of exchanges that ended Fatal.
	FatalCount atomic.Uint64
	// DecodeErrCount indicates the number of semantically invalid replies.
	DecodeErrCount atomic.Uint64

	// BytesWritten indicates the number of frame bytes written.
	BytesWritten atomic.Uint64
	// BytesRead indicates the number of reply bytes read.
	BytesRead atomic.Uint64
}

func (m *SessionMetrics) incCommandCount() {
	m.CommandCount.Add(1)
}

func (m *SessionMetrics) incShortReadCount() {
	m.ShortReadCount.Add(1)
}

func (m *SessionMetrics) incRetryCount() {
	m.RetryCount.Add(1)
}

func (m *SessionMetrics) incRecoveredCount() {
	m.RecoveredCount.Add(1)
}

func (m *SessionMetrics) incFatalCount() {
	m.FatalCount.Add(1)
}

func (m *SessionMetrics) incDecodeErrCount() {
	m.DecodeErrCount.Add(1)
}

func (m *SessionMetrics) addBytesWritten(n int) {
	m.BytesWritten.Add(uint64(n))
}

func (m *SessionMetrics) addBytesRead(n int) {
	m.BytesRead.Add(uint64(n))
}
