package emit

import "sync"

// BufferedEmitter implements Emitter by storing records in memory.
//
// Records are organized by workflow ID for efficient retrieval and
// filtering. Intended for:
//   - Development and debugging
//   - Testing and validation
//   - Post-execution analysis
//
// Warning: all records are kept in memory. For long-running trees with
// high event volume, prefer a persistent backend or periodic Clear calls.
type BufferedEmitter struct {
	mu      sync.RWMutex
	records map[string][]Record // workflowID -> records
}

// HistoryFilter specifies criteria for filtering captured records.
//
// All fields are optional; set fields are combined with AND logic.
type HistoryFilter struct {
	NodeID string // Filter by node ID (empty = no filter)
	Kind   string // Filter by record kind (empty = no filter)
	Msg    string // Filter by message (empty = no filter)
}

// NewBufferedEmitter creates a BufferedEmitter. Safe for concurrent use.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		records: make(map[string][]Record),
	}
}

// Emit stores a record in the buffer.
func (b *BufferedEmitter) Emit(record Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records[record.WorkflowID] = append(b.records[record.WorkflowID], record)
}

// History retrieves all records for a workflow in emission order.
// Returns an empty slice if no records exist. The returned slice is a
// copy; callers may retain or modify it freely.
func (b *BufferedEmitter) History(workflowID string) []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	records := b.records[workflowID]
	result := make([]Record, len(records))
	copy(result, records)
	return result
}

// HistoryWithFilter retrieves records for a workflow matching the filter.
// All set filter conditions must match (AND logic). Returns records in
// emission order; an empty slice if nothing matches.
func (b *BufferedEmitter) HistoryWithFilter(workflowID string, filter HistoryFilter) []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Record{}
	for _, record := range b.records[workflowID] {
		if filter.NodeID != "" && record.NodeID != filter.NodeID {
			continue
		}
		if filter.Kind != "" && record.Kind != filter.Kind {
			continue
		}
		if filter.Msg != "" && record.Msg != filter.Msg {
			continue
		}
		result = append(result, record)
	}
	return result
}

// Clear removes stored records. A non-empty workflowID clears only that
// workflow's records; an empty workflowID clears everything.
func (b *BufferedEmitter) Clear(workflowID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if workflowID == "" {
		b.records = make(map[string][]Record)
	} else {
		delete(b.records, workflowID)
	}
}
