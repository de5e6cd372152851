// Package trace records lightweight, in-process build events for local
// instrumentation. It does not export to any remote collector — distributed
// tracing is outside the orchestrator's scope.
package trace

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

var start = time.Now()

var (
	sinkMu sync.Mutex
	sink   io.Writer = ioutil.Discard
)

// Sink directs all following Event()s, JSON-encoded one per line, to w.
func Sink(w io.Writer) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = w
}

// RunID returns a fresh identifier for one orchestrator invocation, attached
// to every event emitted during that run and to its BuildRunSummary.
func RunID() string {
	return uuid.NewString()
}

// PendingEvent is a build event awaiting completion.
type PendingEvent struct {
	RunID     string      `json:"run_id"`
	Name      string      `json:"name"`
	Module    string      `json:"module,omitempty"`
	Phase     string      `json:"phase,omitempty"`
	StartedAt uint64      `json:"started_at_us"`
	Duration  uint64      `json:"duration_us"`
	Args      interface{} `json:"args,omitempty"`

	begin time.Time
}

// Done finalizes and emits the event.
func (pe *PendingEvent) Done() {
	pe.Duration = uint64(time.Since(pe.begin) / time.Microsecond)
	b, err := json.Marshal(pe)
	if err != nil {
		return
	}
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if _, err := sink.Write(append(b, '\n')); err != nil {
		log.Printf("[trace] write: %v", err)
	}
}

// Event begins a new named event scoped to runID and an optional module and
// phase, to be closed by calling Done.
func Event(runID, name, module, phase string) *PendingEvent {
	return &PendingEvent{
		RunID:     runID,
		Name:      name,
		Module:    module,
		Phase:     phase,
		StartedAt: uint64(time.Since(start) / time.Microsecond),
		begin:     time.Now(),
	}
}
