package saga

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID        string            `json:"id"`
	SagaID    string            `json:"sagaId"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	Job       string            `json:"job"`
	Category  string            `json:"category"` // run, schedule, system
	Action    string            `json:"action"`   // run.start, run.complete, run.failed
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type Store interface {
	Append(ctx context.Context, evt *Event) error
	ListBySaga(ctx context.Context, sagaID string) ([]Event, error)
	ListByJob(ctx context.Context, job string, limit int) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Saga groups the events of one run under a shared ID.
type Saga struct {
	ID       string
	Job      string
	Source   string
	Category string
	store    Store
}

func New(store Store, job, source, category string) *Saga {
	return &Saga{
		ID:       uuid.New().String(),
		Job:      job,
		Source:   source,
		Category: category,
		store:    store,
	}
}

func (s *Saga) Log(ctx context.Context, action, message string, metadata map[string]string) error {
	evt := &Event{
		ID:        uuid.New().String(),
		SagaID:    s.ID,
		Timestamp: time.Now(),
		Source:    s.Source,
		Job:       s.Job,
		Category:  s.Category,
		Action:    action,
		Message:   message,
		Metadata:  metadata,
	}
	return s.store.Append(ctx, evt)
}

func (s *Saga) RunStart(ctx context.Context, image string) error {
	return s.Log(ctx, "run.start", s.Job+" started", map[string]string{"image": image})
}

func (s *Saga) RunComplete(ctx context.Context, durationMs int64) error {
	return s.Log(ctx, "run.complete", s.Job+" completed", map[string]string{
		"durationMs": strconv.FormatInt(durationMs, 10),
	})
}

func (s *Saga) RunFailed(ctx context.Context, kind string, err error) error {
	return s.Log(ctx, "run.failed", s.Job+" failed: "+err.Error(), map[string]string{
		"kind":  kind,
		"error": err.Error(),
	})
}
