// Package review routes leads that need a human decision, such as
// ambiguous duplicates, to a manual-review queue.
package review

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Item is one lead awaiting manual review.
type Item struct {
	BatchID    string    `json:"batch_id"`
	Index      int       `json:"index"`
	Company    string    `json:"company_name"`
	Kind       string    `json:"kind"`
	Reason     string    `json:"reason"`
	Candidates []string  `json:"candidate_ids,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Queue accepts review items.
type Queue interface {
	Enqueue(ctx context.Context, item Item) error
}

// LogQueue writes review items to the log. It is the fallback when no
// webhook is configured.
type LogQueue struct{}

func (LogQueue) Enqueue(_ context.Context, item Item) error {
	zap.L().Warn("review: lead needs manual review",
		zap.String("batch_id", item.BatchID),
		zap.Int("index", item.Index),
		zap.String("company", item.Company),
		zap.String("kind", item.Kind),
		zap.Strings("candidates", item.Candidates),
		zap.String("reason", item.Reason),
	)
	return nil
}

// MemoryQueue collects items in memory.
type MemoryQueue struct {
	mu    sync.Mutex
	items []Item
}

func (q *MemoryQueue) Enqueue(_ context.Context, item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	return nil
}

// Items returns a copy of the queued items.
func (q *MemoryQueue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Item(nil), q.items...)
}
