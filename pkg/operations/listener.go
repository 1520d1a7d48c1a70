package operations

import (
	"context"
	"sync"
	"time"
)

// OperationInfo identifies one running operation.
type OperationInfo struct {
	ID         string
	ParentID   string
	Descriptor Descriptor
	StartedAt  time.Time
}

// Outcome is what a listener learns when an operation finishes.
type Outcome struct {
	Result    interface{}
	HasResult bool
	Status    string
	Err       error
	StartedAt time.Time
	EndedAt   time.Time
}

// Failed reports whether the operation ended with an error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Duration returns how long the operation ran.
func (o Outcome) Duration() time.Duration {
	return o.EndedAt.Sub(o.StartedAt)
}

// Listener receives start and finish notifications for every operation run
// through an Executor. Started always precedes Finished for the same ID.
type Listener interface {
	Started(ctx context.Context, op OperationInfo)
	Finished(ctx context.Context, op OperationInfo, outcome Outcome)
}

// MultiListener fans notifications out to several listeners in order.
type MultiListener []Listener

// Started implements Listener.
func (m MultiListener) Started(ctx context.Context, op OperationInfo) {
	for _, l := range m {
		if l != nil {
			l.Started(ctx, op)
		}
	}
}

// Finished implements Listener.
func (m MultiListener) Finished(ctx context.Context, op OperationInfo, outcome Outcome) {
	for _, l := range m {
		if l != nil {
			l.Finished(ctx, op, outcome)
		}
	}
}

// RecordedOperation is a finished operation captured by a Recorder.
type RecordedOperation struct {
	Info    OperationInfo
	Outcome Outcome
}

// Recorder is a Listener that keeps every finished operation in memory.
type Recorder struct {
	mu       sync.Mutex
	started  []OperationInfo
	finished []RecordedOperation
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Started implements Listener.
func (r *Recorder) Started(_ context.Context, op OperationInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, op)
}

// Finished implements Listener.
func (r *Recorder) Finished(_ context.Context, op OperationInfo, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, RecordedOperation{Info: op, Outcome: outcome})
}

// StartedOperations returns the operations that have started, in order.
func (r *Recorder) StartedOperations() []OperationInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OperationInfo{}, r.started...)
}

// FinishedOperations returns the operations that have finished, in order.
func (r *Recorder) FinishedOperations() []RecordedOperation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedOperation{}, r.finished...)
}

// Find returns the most recently finished operation with the given display name.
func (r *Recorder) Find(displayName string) (RecordedOperation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.finished) - 1; i >= 0; i-- {
		if r.finished[i].Info.Descriptor.DisplayName == displayName {
			return r.finished[i], true
		}
	}
	return RecordedOperation{}, false
}
