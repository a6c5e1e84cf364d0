package flow

import (
	"time"

	"github.com/google/uuid"
)

// Logger appends structured entries to a node's log buffer and delivers
// them to the tree's root observers.
//
// Each logging method returns the appended entry so callers can build a
// finer-grained log-nesting tree with Nested:
//
//	parent := logger.Info("starting import", nil)
//	child := logger.Nested(parent.ID)
//	child.Debug("opening file", map[string]interface{}{"path": path})
type Logger struct {
	node        *Node
	parentLogID string
}

// NewLogger creates a logger bound to the given node.
func NewLogger(node *Node) *Logger {
	return &Logger{node: node}
}

// Nested derives a logger whose entries reference parentLogID, nesting them
// under that entry in the log tree (orthogonal to the node tree).
func (l *Logger) Nested(parentLogID string) *Logger {
	return &Logger{node: l.node, parentLogID: parentLogID}
}

// Debug appends a debug-level entry.
func (l *Logger) Debug(msg string, data map[string]interface{}) LogEntry {
	return l.log(LevelDebug, msg, data)
}

// Info appends an info-level entry.
func (l *Logger) Info(msg string, data map[string]interface{}) LogEntry {
	return l.log(LevelInfo, msg, data)
}

// Warn appends a warn-level entry.
func (l *Logger) Warn(msg string, data map[string]interface{}) LogEntry {
	return l.log(LevelWarn, msg, data)
}

// Error appends an error-level entry.
func (l *Logger) Error(msg string, data map[string]interface{}) LogEntry {
	return l.log(LevelError, msg, data)
}

func (l *Logger) log(level LogLevel, msg string, data map[string]interface{}) LogEntry {
	entry := LogEntry{
		ID:          uuid.NewString(),
		NodeID:      l.node.id,
		Time:        time.Now(),
		Level:       level,
		Message:     msg,
		Data:        data,
		ParentLogID: l.parentLogID,
	}
	l.node.appendLog(entry)
	return entry
}
