package metrics

import (
	"sync/atomic"

	"github.com/oraops/backup-run/pkg/plog"
)

// Metrics defines the interface for collecting and reporting run statistics.
type Metrics interface {
	AddDirectivesExecuted(n int64)
	AddBackupErrors(n int64)
	AddRetentionErrors(n int64)
	AddLogsCompressed(n int64)
	AddLogsDeleted(n int64)
	Log()
}

// RunMetrics holds the atomic counters for one backup run.
// It is the concrete implementation of the Metrics interface.
type RunMetrics struct {
	DirectivesExecuted atomic.Int64
	BackupErrors       atomic.Int64
	RetentionErrors    atomic.Int64
	LogsCompressed     atomic.Int64
	LogsDeleted        atomic.Int64
}

func (m *RunMetrics) AddDirectivesExecuted(n int64) { m.DirectivesExecuted.Add(n) }
func (m *RunMetrics) AddBackupErrors(n int64)       { m.BackupErrors.Add(n) }
func (m *RunMetrics) AddRetentionErrors(n int64)    { m.RetentionErrors.Add(n) }
func (m *RunMetrics) AddLogsCompressed(n int64)     { m.LogsCompressed.Add(n) }
func (m *RunMetrics) AddLogsDeleted(n int64)        { m.LogsDeleted.Add(n) }

// Log prints a summary of the run counters.
func (m *RunMetrics) Log() {
	plog.Info("SUM",
		"directivesExecuted", m.DirectivesExecuted.Load(),
		"backupErrors", m.BackupErrors.Load(),
		"retentionErrors", m.RetentionErrors.Load(),
		"logsCompressed", m.LogsCompressed.Load(),
		"logsDeleted", m.LogsDeleted.Load(),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
// It can be used to disable metrics collection without changing the calling code.
type NoopMetrics struct{}

func (m *NoopMetrics) AddDirectivesExecuted(n int64) {}
func (m *NoopMetrics) AddBackupErrors(n int64)       {}
func (m *NoopMetrics) AddRetentionErrors(n int64)    {}
func (m *NoopMetrics) AddLogsCompressed(n int64)     {}
func (m *NoopMetrics) AddLogsDeleted(n int64)        {}
func (m *NoopMetrics) Log()                          {}

// Statically assert that our types implement the interface.
var _ Metrics = (*RunMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)
