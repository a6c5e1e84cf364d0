package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogEmitter implements Emitter by writing structured output to a writer.
//
// Supports two output modes:
//   - Text mode (default): Human-readable format with key=value pairs
//   - JSON mode: Machine-readable JSON, one record per line (JSONL)
//
// Example text output:
//
//	[step_start] workflow=wf-001 node=n-42 kind=event
//
// Example JSON output:
//
//	{"workflowID":"wf-001","nodeID":"n-42","kind":"event","msg":"step_start","meta":null}
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter writing to the given writer.
// A nil writer defaults to os.Stdout. If jsonMode is true, records are
// written as single-line JSON objects.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{
		writer:   writer,
		jsonMode: jsonMode,
	}
}

// Emit writes a record to the configured writer.
// Safe for concurrent use; whole records are written under a lock so
// concurrent siblings never interleave within a line.
func (l *LogEmitter) Emit(record Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.jsonMode {
		l.emitJSON(record)
	} else {
		l.emitText(record)
	}
}

func (l *LogEmitter) emitJSON(record Record) {
	data, err := json.Marshal(struct {
		WorkflowID string                 `json:"workflowID"`
		NodeID     string                 `json:"nodeID"`
		Kind       string                 `json:"kind"`
		Msg        string                 `json:"msg"`
		Meta       map[string]interface{} `json:"meta"`
	}{
		WorkflowID: record.WorkflowID,
		NodeID:     record.NodeID,
		Kind:       record.Kind,
		Msg:        record.Msg,
		Meta:       record.Meta,
	})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal record: %v\"}\n", err)
		return
	}

	fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(record Record) {
	fmt.Fprintf(l.writer, "[%s] workflow=%s node=%s kind=%s",
		record.Msg, record.WorkflowID, record.NodeID, record.Kind)

	if len(record.Meta) > 0 {
		// Meta rendered as JSON for readability; fall back to %v on failure.
		metaJSON, err := json.Marshal(record.Meta)
		if err == nil {
			fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			fmt.Fprintf(l.writer, " meta=%v", record.Meta)
		}
	}

	fmt.Fprint(l.writer, "\n")
}
