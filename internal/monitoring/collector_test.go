package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeReader struct {
	batches  []*model.Batch
	leads    []*model.Lead
	leadsErr error
}

func (f *fakeReader) ListBatches(context.Context) ([]*model.Batch, error) {
	return f.batches, nil
}

func (f *fakeReader) ListLeads(context.Context, store.Filter) ([]*model.Lead, error) {
	return f.leads, f.leadsErr
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func lead(batch string, status model.LeadStatus, gate model.QualityGate) *model.Lead {
	return &model.Lead{BatchID: batch, Status: status, QualityGate: gate}
}

func fixture() *fakeReader {
	return &fakeReader{
		batches: []*model.Batch{
			{ID: "b1", BatchID: "BATCH-2026-03-01-a", RunDate: day(1), Status: model.BatchCompleted, LeadsFound: 3, LeadsAfterDedup: 3, APICost: 0.5},
			{ID: "b2", BatchID: "BATCH-2026-03-05-a", RunDate: day(5), Status: model.BatchFailed, LeadsFound: 2, Errors: []string{"x", "y"}, APICost: 0.25},
			{ID: "b3", BatchID: "BATCH-2026-03-07-a", RunDate: day(7), Status: model.BatchRunning},
			{ID: "b4", BatchID: "BATCH-2026-03-10-a", RunDate: day(10), Status: model.BatchRunning},
		},
		leads: []*model.Lead{
			lead("b1", model.StatusPendingQA, model.GateReview),
			lead("b1", model.StatusQAApproved, model.GateAutoApprove),
			lead("b1", model.StatusConverted, model.GateAutoApprove),
			lead("b3", model.StatusQARejected, model.GateAutoReject),
			lead("", model.StatusPendingQA, ""),
		},
	}
}

func TestCollect_Rollup(t *testing.T) {
	c := NewCollector(fixture(), WithClock(func() time.Time { return now }))

	snap, err := c.Collect(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.LeadsTotal)
	assert.Equal(t, 2, snap.QAQueue)
	assert.Equal(t, 1, snap.ReadyToSend)
	assert.Equal(t, 2, snap.LeadsByStatus[model.StatusPendingQA])
	assert.Equal(t, 2, snap.LeadsByGate[model.GateAutoApprove])
	assert.Equal(t, 1, snap.LeadsByGate[model.GateAutoReject])
	assert.Equal(t, now, snap.CollectedAt)
	assert.InDelta(t, 0.75, snap.APICostUSD, 1e-9)

	require.Len(t, snap.Batches, 4)
	assert.Equal(t, "BATCH-2026-03-10-a", snap.Batches[0].BatchID)
	oldest := snap.Batches[3]
	assert.Equal(t, "BATCH-2026-03-01-a", oldest.BatchID)
	assert.Equal(t, 3, oldest.LeadsGenerated)
	assert.Equal(t, 2, oldest.QAApproved)
	assert.Equal(t, 2, snap.Batches[2].Errors)

	assert.InDelta(t, 0.5, snap.BatchFailRate, 1e-9)
	assert.Equal(t, []string{"BATCH-2026-03-07-a"}, snap.StuckBatches)
}

func TestCollect_Lookback(t *testing.T) {
	c := NewCollector(fixture(), WithClock(func() time.Time { return now }))

	snap, err := c.Collect(context.Background(), 4)
	require.NoError(t, err)

	require.Len(t, snap.Batches, 2)
	assert.Equal(t, "BATCH-2026-03-10-a", snap.Batches[0].BatchID)
	assert.Equal(t, "BATCH-2026-03-07-a", snap.Batches[1].BatchID)
	assert.Zero(t, snap.BatchFailRate)
	// Lead counts are workspace-wide regardless of the window.
	assert.Equal(t, 5, snap.LeadsTotal)
}

func TestCollect_StuckAfter(t *testing.T) {
	c := NewCollector(fixture(),
		WithClock(func() time.Time { return now }),
		WithStuckAfter(time.Hour),
	)

	snap, err := c.Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"BATCH-2026-03-07-a", "BATCH-2026-03-10-a"}, snap.StuckBatches)
}

func TestCollect_StuckUsesStartTime(t *testing.T) {
	fresh := now.Add(-time.Hour)
	stale := now.Add(-72 * time.Hour)
	r := &fakeReader{batches: []*model.Batch{
		{ID: "b1", BatchID: "BATCH-2026-03-01-a", RunDate: day(1), Status: model.BatchRunning, StartedAt: &fresh},
		{ID: "b2", BatchID: "BATCH-2026-03-10-a", RunDate: day(10), Status: model.BatchRunning, StartedAt: &stale},
	}}
	c := NewCollector(r, WithClock(func() time.Time { return now }))

	snap, err := c.Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"BATCH-2026-03-10-a"}, snap.StuckBatches,
		"a backdated batch id started an hour ago is not stuck")
}

func TestCollect_Empty(t *testing.T) {
	snap, err := NewCollector(&fakeReader{}).Collect(context.Background(), 7)
	require.NoError(t, err)
	assert.Zero(t, snap.LeadsTotal)
	assert.Empty(t, snap.Batches)
	assert.Zero(t, snap.BatchFailRate)
}

func TestCollect_ListError(t *testing.T) {
	_, err := NewCollector(&fakeReader{leadsErr: errors.New("boom")}).Collect(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list leads")
}

func TestCollect_MemoryStore(t *testing.T) {
	ctx := context.Background()
	repo := store.NewRepository(store.NewMemory())
	b := &model.Batch{BatchID: "BATCH-2026-03-09-a", RunDate: day(9), Status: model.BatchCompleted, LeadsFound: 1, LeadsAfterDedup: 1}
	require.NoError(t, repo.CreateBatch(ctx, b))

	snap, err := NewCollector(repo, WithClock(func() time.Time { return now })).Collect(ctx, 30)
	require.NoError(t, err)
	require.Len(t, snap.Batches, 1)
	assert.Equal(t, model.BatchCompleted, snap.Batches[0].Status)
	assert.Equal(t, 1, snap.Batches[0].LeadsFound)
}
