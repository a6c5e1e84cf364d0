package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func TestLogEmitterText(t *testing.T) {
	t.Run("renders one line per record", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, false)

		emitter.Emit(Record{
			WorkflowID: "wf-1",
			NodeID:     "n-1",
			Kind:       "event",
			Msg:        "step_start",
		})

		got := buf.String()
		if !strings.HasPrefix(got, "[step_start] workflow=wf-1 node=n-1 kind=event") {
			t.Errorf("unexpected text output: %q", got)
		}
		if !strings.HasSuffix(got, "\n") {
			t.Error("expected a trailing newline")
		}
	})

	t.Run("renders meta as JSON", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, false)

		emitter.Emit(Record{
			Kind: "log",
			Msg:  "retrying",
			Meta: map[string]interface{}{"attempt": 2},
		})

		if !strings.Contains(buf.String(), `meta={"attempt":2}`) {
			t.Errorf("expected meta rendered as JSON, got %q", buf.String())
		}
	})

	t.Run("omits meta when empty", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, false)

		emitter.Emit(Record{Kind: "log", Msg: "plain"})
		if strings.Contains(buf.String(), "meta=") {
			t.Errorf("expected no meta segment, got %q", buf.String())
		}
	})
}

func TestLogEmitterJSON(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	emitter.Emit(Record{
		WorkflowID: "wf-1",
		NodeID:     "n-1",
		Kind:       "event",
		Msg:        "task_end",
		Meta:       map[string]interface{}{"name": "fanout"},
	})

	var decoded struct {
		WorkflowID string                 `json:"workflowID"`
		NodeID     string                 `json:"nodeID"`
		Kind       string                 `json:"kind"`
		Msg        string                 `json:"msg"`
		Meta       map[string]interface{} `json:"meta"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.WorkflowID != "wf-1" || decoded.Msg != "task_end" {
		t.Errorf("unexpected decoded record: %+v", decoded)
	}
	if decoded.Meta["name"] != "fanout" {
		t.Error("expected meta carried through")
	}
}

func TestLogEmitterConcurrency(t *testing.T) {
	// Whole records are written under a lock; lines never interleave.
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			emitter.Emit(Record{Kind: "log", Msg: "concurrent"})
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(lines))
	}
	for _, line := range lines {
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Fatalf("interleaved or corrupt line %q: %v", line, err)
		}
	}
}
