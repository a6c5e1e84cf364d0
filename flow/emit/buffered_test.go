package emit

import (
	"fmt"
	"sync"
	"testing"
)

func TestBufferedEmitter(t *testing.T) {
	t.Run("history preserves emission order per workflow", func(t *testing.T) {
		b := NewBufferedEmitter()
		b.Emit(Record{WorkflowID: "wf-1", Msg: "first"})
		b.Emit(Record{WorkflowID: "wf-2", Msg: "other"})
		b.Emit(Record{WorkflowID: "wf-1", Msg: "second"})

		records := b.History("wf-1")
		if len(records) != 2 {
			t.Fatalf("expected 2 records for wf-1, got %d", len(records))
		}
		if records[0].Msg != "first" || records[1].Msg != "second" {
			t.Error("expected emission order preserved")
		}
	})

	t.Run("history of an unknown workflow is empty", func(t *testing.T) {
		b := NewBufferedEmitter()
		if got := b.History("nope"); len(got) != 0 {
			t.Errorf("expected empty history, got %d records", len(got))
		}
	})

	t.Run("returned history is a copy", func(t *testing.T) {
		b := NewBufferedEmitter()
		b.Emit(Record{WorkflowID: "wf-1", Msg: "original"})

		records := b.History("wf-1")
		records[0].Msg = "mutated"
		if b.History("wf-1")[0].Msg != "original" {
			t.Error("mutating the returned slice must not affect the buffer")
		}
	})

	t.Run("filter conditions combine with AND", func(t *testing.T) {
		b := NewBufferedEmitter()
		b.Emit(Record{WorkflowID: "wf", NodeID: "n1", Kind: "log", Msg: "a"})
		b.Emit(Record{WorkflowID: "wf", NodeID: "n1", Kind: "event", Msg: "a"})
		b.Emit(Record{WorkflowID: "wf", NodeID: "n2", Kind: "log", Msg: "a"})

		got := b.HistoryWithFilter("wf", HistoryFilter{NodeID: "n1", Kind: "log"})
		if len(got) != 1 {
			t.Fatalf("expected 1 match, got %d", len(got))
		}
		if got[0].NodeID != "n1" || got[0].Kind != "log" {
			t.Error("expected the record matching both conditions")
		}
	})

	t.Run("clear scoped to one workflow", func(t *testing.T) {
		b := NewBufferedEmitter()
		b.Emit(Record{WorkflowID: "wf-1", Msg: "x"})
		b.Emit(Record{WorkflowID: "wf-2", Msg: "y"})

		b.Clear("wf-1")
		if len(b.History("wf-1")) != 0 {
			t.Error("expected wf-1 cleared")
		}
		if len(b.History("wf-2")) != 1 {
			t.Error("expected wf-2 untouched")
		}
	})

	t.Run("clear everything", func(t *testing.T) {
		b := NewBufferedEmitter()
		b.Emit(Record{WorkflowID: "wf-1", Msg: "x"})
		b.Emit(Record{WorkflowID: "wf-2", Msg: "y"})

		b.Clear("")
		if len(b.History("wf-1")) != 0 || len(b.History("wf-2")) != 0 {
			t.Error("expected every workflow cleared")
		}
	})

	t.Run("concurrent emits are all captured", func(t *testing.T) {
		b := NewBufferedEmitter()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				b.Emit(Record{WorkflowID: "wf", Msg: fmt.Sprintf("m%d", i)})
			}(i)
		}
		wg.Wait()

		if got := len(b.History("wf")); got != 50 {
			t.Errorf("expected 50 records, got %d", got)
		}
	})
}
