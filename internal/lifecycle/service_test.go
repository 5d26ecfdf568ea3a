package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scoring"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// racingStore lands a concurrent edit just before the first update it sees.
type racingStore struct {
	store.Store
	once sync.Once
	edit map[string]any
}

func (r *racingStore) UpdateRecord(ctx context.Context, id string, revision int64, fields map[string]any) (int64, error) {
	var err error
	r.once.Do(func() {
		_, err = r.Store.UpdateRecord(ctx, id, revision, r.edit)
	})
	if err != nil {
		return 0, err
	}
	return r.Store.UpdateRecord(ctx, id, revision, fields)
}

func seedLead(t *testing.T, st store.Store, status model.LeadStatus) (*store.Repository, *model.Lead) {
	t.Helper()
	ctx := context.Background()
	repo := store.NewRepository(st)

	src := &model.Source{
		Name: "CIPC Registrations", Type: model.SourceGovernmentRegister,
		Compliance: model.ComplianceCompliant, Status: model.SourceActive,
	}
	require.NoError(t, repo.CreateSource(ctx, src))
	b := &model.Batch{BatchID: "BATCH-2026-03-04-a", RunDate: now, Status: model.BatchRunning}
	require.NoError(t, repo.CreateBatch(ctx, b))

	l := &model.Lead{
		CompanyName: "Acme Haulage", Province: model.ProvinceGauteng,
		FleetLikelihood: 9, TrackingNeed: 8, FleetSize: model.FleetSizeMedium,
		Status: status, SourceID: src.ID, BatchID: b.ID,
	}
	require.NoError(t, scoring.Apply(l))
	require.NoError(t, repo.CreateLead(ctx, l))
	return repo, l
}

func fixedClock() time.Time { return now }

func TestService_Transition(t *testing.T) {
	ctx := context.Background()
	repo, l := seedLead(t, store.NewMemory(), model.StatusPendingQA)
	svc := NewService(repo, WithClock(fixedClock))

	got, err := svc.Transition(ctx, l.ID, Request{To: model.StatusQAApproved, Actor: qa, Notes: "strong fit"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusQAApproved, got.Status)

	stored, err := repo.GetLead(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusQAApproved, stored.Status)
	assert.Equal(t, "strong fit", stored.QANotes)
	require.NotNil(t, stored.QAReviewDate)
	assert.True(t, stored.QAReviewDate.Equal(now))
	assert.Equal(t, int64(2), stored.Revision)
}

func TestService_TransitionIllegalLeavesRecord(t *testing.T) {
	ctx := context.Background()
	repo, l := seedLead(t, store.NewMemory(), model.StatusConverted)
	svc := NewService(repo)

	_, err := svc.Transition(ctx, l.ID, Request{To: model.StatusContacted, Actor: agent})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrIllegalTransition))

	stored, err := repo.GetLead(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConverted, stored.Status)
	assert.Equal(t, int64(1), stored.Revision)
}

func TestService_TransitionRetriesStaleWrite(t *testing.T) {
	ctx := context.Background()
	racer := &racingStore{Store: store.NewMemory(), edit: map[string]any{model.FieldNotes: "edited elsewhere"}}
	repo, l := seedLead(t, racer, model.StatusPendingQA)
	svc := NewService(repo, WithClock(fixedClock))

	_, err := svc.Transition(ctx, l.ID, Request{To: model.StatusQAApproved, Actor: qa})
	require.NoError(t, err)

	stored, err := repo.GetLead(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusQAApproved, stored.Status)
	assert.Equal(t, "edited elsewhere", stored.Notes, "concurrent edit survives")
	assert.Equal(t, int64(3), stored.Revision)
}

func TestService_TransitionNotFound(t *testing.T) {
	repo := store.NewRepository(store.NewMemory())
	_, err := NewService(repo).Transition(context.Background(), "missing", Request{To: model.StatusQAApproved, Actor: qa})
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestService_Rescore(t *testing.T) {
	ctx := context.Background()
	repo, l := seedLead(t, store.NewMemory(), model.StatusQAApproved)
	svc := NewService(repo)

	got, err := svc.Rescore(ctx, l.ID, scoring.Input{FleetLikelihood: 5, TrackingNeed: 4, FleetSize: model.FleetSizeSmall})
	require.NoError(t, err)
	assert.InDelta(t, 3.6, got.CompositeScore, 1e-9)
	assert.Equal(t, model.GateAutoReject, got.QualityGate)

	stored, err := repo.GetLead(ctx, l.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3.6, stored.CompositeScore, 1e-9)
	assert.Equal(t, model.GateAutoReject, stored.QualityGate)
	assert.Equal(t, model.StatusQAApproved, stored.Status, "gate is advisory")
}

func TestService_RescoreRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	repo, l := seedLead(t, store.NewMemory(), model.StatusPendingQA)

	_, err := NewService(repo).Rescore(ctx, l.ID, scoring.Input{FleetLikelihood: 11, TrackingNeed: 4, FleetSize: model.FleetSizeSmall})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidScoreInput))

	stored, err := repo.GetLead(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, stored.FleetLikelihood)
}
