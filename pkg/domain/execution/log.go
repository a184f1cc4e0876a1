package execution

import (
	"time"

	"github.com/netpad/api/pkg/domain/shared"
)

// LogLevel represents the severity of an execution log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid checks if the log level is valid.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// Log is a single log entry emitted during an execution. NodeKey is
// empty for entries about the run as a whole.
type Log struct {
	ID          shared.ID
	ExecutionID shared.ID
	Level       LogLevel
	Message     string
	NodeKey     string
	CreatedAt   time.Time
}

// NewLog creates a log entry for an execution.
func NewLog(executionID shared.ID, level LogLevel, message, nodeKey string) *Log {
	if !level.IsValid() {
		level = LogLevelInfo
	}
	return &Log{
		ID:          shared.NewID(),
		ExecutionID: executionID,
		Level:       level,
		Message:     message,
		NodeKey:     nodeKey,
		CreatedAt:   time.Now(),
	}
}
