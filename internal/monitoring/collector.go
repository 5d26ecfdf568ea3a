package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Snapshot is a point-in-time rollup of the workspace: the QA queue, the
// call-centre pipeline and per-batch yield.
type Snapshot struct {
	LeadsTotal    int                       `json:"leads_total"`
	LeadsByStatus map[model.LeadStatus]int  `json:"leads_by_status"`
	LeadsByGate   map[model.QualityGate]int `json:"leads_by_gate"`
	QAQueue       int                       `json:"qa_queue"`
	ReadyToSend   int                       `json:"ready_to_send"`

	Batches       []BatchRollup `json:"batches"`
	BatchFailRate float64       `json:"batch_fail_rate"`
	StuckBatches  []string      `json:"stuck_batches,omitempty"`
	APICostUSD    float64       `json:"api_cost_usd"`

	LookbackDays int       `json:"lookback_days"`
	CollectedAt  time.Time `json:"collected_at"`
}

// BatchRollup is one row of the batch monitor.
type BatchRollup struct {
	BatchID         string            `json:"batch_id"`
	Status          model.BatchStatus `json:"status"`
	RunDate         time.Time         `json:"run_date"`
	LeadsFound      int               `json:"leads_found"`
	LeadsAfterDedup int               `json:"leads_after_dedup"`
	LeadsGenerated  int               `json:"leads_generated"`
	QAApproved      int               `json:"qa_approved"`
	Errors          int               `json:"errors"`
}

// Reader is the slice of the repository the collector reads.
type Reader interface {
	ListBatches(ctx context.Context) ([]*model.Batch, error)
	ListLeads(ctx context.Context, filter store.Filter) ([]*model.Lead, error)
}

// Collector builds snapshots from the workspace.
type Collector struct {
	repo       Reader
	stuckAfter time.Duration
	now        func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithStuckAfter sets how long a batch may stay Running before it is
// reported as stuck.
func WithStuckAfter(d time.Duration) Option {
	return func(c *Collector) { c.stuckAfter = d }
}

// WithClock overrides the collector's clock.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// NewCollector creates a collector over repo.
func NewCollector(repo Reader, opts ...Option) *Collector {
	c := &Collector{repo: repo, stuckAfter: 48 * time.Hour, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Collect gathers a snapshot. Lead counts cover the whole workspace; batch
// rows cover batches run within the last lookbackDays (all batches when
// lookbackDays <= 0).
func (c *Collector) Collect(ctx context.Context, lookbackDays int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		LeadsByStatus: make(map[model.LeadStatus]int),
		LeadsByGate:   make(map[model.QualityGate]int),
		LookbackDays:  lookbackDays,
		CollectedAt:   now,
	}

	leads, err := c.repo.ListLeads(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list leads")
	}
	batches, err := c.repo.ListBatches(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list batches")
	}

	generated := make(map[string]int)
	approved := make(map[string]int)
	for _, l := range leads {
		snap.LeadsTotal++
		snap.LeadsByStatus[l.Status]++
		if l.QualityGate != "" {
			snap.LeadsByGate[l.QualityGate]++
		}
		switch l.Status {
		case model.StatusPendingQA:
			snap.QAQueue++
		case model.StatusQAApproved:
			snap.ReadyToSend++
		}
		if l.BatchID == "" {
			continue
		}
		generated[l.BatchID]++
		if passedQA(l.Status) {
			approved[l.BatchID]++
		}
	}

	var cutoff time.Time
	if lookbackDays > 0 {
		cutoff = now.AddDate(0, 0, -lookbackDays)
	}

	var failed, closed int
	for _, b := range batches {
		if !cutoff.IsZero() && b.RunDate.Before(cutoff) {
			continue
		}
		snap.Batches = append(snap.Batches, BatchRollup{
			BatchID:         b.BatchID,
			Status:          b.Status,
			RunDate:         b.RunDate,
			LeadsFound:      b.LeadsFound,
			LeadsAfterDedup: b.LeadsAfterDedup,
			LeadsGenerated:  generated[b.ID],
			QAApproved:      approved[b.ID],
			Errors:          len(b.Errors),
		})
		snap.APICostUSD += b.APICost

		switch b.Status {
		case model.BatchRunning:
			if now.Sub(startedAt(b)) > c.stuckAfter {
				snap.StuckBatches = append(snap.StuckBatches, b.BatchID)
			}
		case model.BatchFailed:
			failed++
			closed++
		default:
			closed++
		}
	}
	if closed > 0 {
		snap.BatchFailRate = float64(failed) / float64(closed)
	}

	sort.SliceStable(snap.Batches, func(i, j int) bool {
		return snap.Batches[i].RunDate.After(snap.Batches[j].RunDate)
	})
	return snap, nil
}

// startedAt falls back to the run date for batches stored without a start
// time.
func startedAt(b *model.Batch) time.Time {
	if b.StartedAt != nil {
		return *b.StartedAt
	}
	return b.RunDate
}

// passedQA reports whether a lead with status s was approved at QA at some
// point, including leads already handed to the call centre.
func passedQA(s model.LeadStatus) bool {
	switch s {
	case model.StatusQAApproved, model.StatusSentToCallCentre, model.StatusContacted,
		model.StatusInterested, model.StatusConverted, model.StatusNotInterested:
		return true
	}
	return false
}
