// Package ledger keeps the in-memory record of every job outcome and the
// aggregate views served by /stat and /errors.
package ledger

import (
	"sync"

	"github.com/cockroachdb/errors"

	"jobledger/model"
)

var ErrInvalidOutcome = errors.New("ledger: outcome result must be success or failure")

// Summary is the aggregate count of recorded outcomes.
// Total always equals Successful + Failed.
type Summary struct {
	Total      int `json:"total requests"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Snapshot pairs a summary with the outcome list it was computed from.
type Snapshot struct {
	Summary  Summary
	Outcomes []model.Outcome
}

// Ledger is an append-only, concurrency-safe list of outcomes.
// The zero value is ready to use.
type Ledger struct {
	mu        sync.RWMutex
	outcomes  []model.Outcome
	failures  []int // indexes into outcomes, in insertion order
	succeeded int
}

func New() *Ledger {
	return &Ledger{}
}

// Append records o and returns its sequence number. Sequence numbers start
// at 1 and are assigned under the same lock as the insertion.
func (l *Ledger) Append(o model.Outcome) (uint64, error) {
	if !o.Result.Valid() {
		return 0, errors.Wrapf(ErrInvalidOutcome, "got %q", o.Result)
	}
	if o.Result == model.Success {
		o.Msg = ""
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	o.Sequence = uint64(len(l.outcomes) + 1)
	l.outcomes = append(l.outcomes, o)
	if o.Result == model.Success {
		l.succeeded++
	} else {
		l.failures = append(l.failures, len(l.outcomes)-1)
	}
	return o.Sequence, nil
}

func (l *Ledger) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.summaryLocked()
}

func (l *Ledger) summaryLocked() Summary {
	return Summary{
		Total:      len(l.outcomes),
		Successful: l.succeeded,
		Failed:     len(l.failures),
	}
}

// RecentFailureMessages returns up to n of the latest failure messages,
// oldest first. The result is never nil.
func (l *Ledger) RecentFailureMessages(n int) []string {
	if n <= 0 {
		return []string{}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	start := len(l.failures) - n
	if start < 0 {
		start = 0
	}
	msgs := make([]string, 0, len(l.failures)-start)
	for _, idx := range l.failures[start:] {
		msgs = append(msgs, l.outcomes[idx].Msg)
	}
	return msgs
}

// Snapshot copies the summary and every outcome under one read lock.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	outcomes := make([]model.Outcome, len(l.outcomes))
	copy(outcomes, l.outcomes)
	return Snapshot{
		Summary:  l.summaryLocked(),
		Outcomes: outcomes,
	}
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.outcomes)
}
