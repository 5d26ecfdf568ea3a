package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

var (
	qa     = Actor{Role: RoleQA, ID: "thandi"}
	agent  = Actor{Role: RoleCallCentre, ID: "agent-7"}
	system = Actor{Role: RoleIngestion, ID: "gateway"}
	now    = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
)

func TestInitial(t *testing.T) {
	assert.Equal(t, model.StatusPendingQA, Initial())
}

func TestCheck_LegalPath(t *testing.T) {
	t.Parallel()
	path := []Request{
		{To: model.StatusQAApproved, Actor: qa},
		{To: model.StatusSentToCallCentre, Actor: qa},
		{To: model.StatusContacted, Actor: agent},
		{To: model.StatusInterested, Actor: agent},
		{To: model.StatusConverted, Actor: agent},
	}
	l := &model.Lead{Status: Initial()}
	for _, req := range path {
		_, err := Apply(l, req, now)
		require.NoError(t, err, "to %s", req.To)
	}
	assert.Equal(t, model.StatusConverted, l.Status)
}

func TestCheck_TerminalStatesRefuseEverything(t *testing.T) {
	t.Parallel()
	for _, from := range []model.LeadStatus{
		model.StatusConverted, model.StatusNotInterested, model.StatusDuplicate, model.StatusQARejected,
	} {
		assert.True(t, Terminal(from))
		assert.Empty(t, Next(from))
		for _, to := range model.LeadStatuses {
			for _, actor := range []Actor{qa, agent, system} {
				err := Check(from, Request{To: to, Actor: actor, RejectionReason: model.RejectOther})
				require.Error(t, err, "%s -> %s", from, to)
				assert.True(t, errors.Is(err, model.ErrIllegalTransition))
			}
		}
	}
}

func TestCheck_Refusals(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		from model.LeadStatus
		req  Request
		msg  string
	}{
		{"skip QA", model.StatusPendingQA, Request{To: model.StatusSentToCallCentre, Actor: qa}, "not allowed"},
		{"backwards", model.StatusContacted, Request{To: model.StatusPendingQA, Actor: agent}, "not allowed"},
		{"duplicate after approval", model.StatusQAApproved, Request{To: model.StatusDuplicate, Actor: qa}, "not allowed"},
		{"agent approving", model.StatusPendingQA, Request{To: model.StatusQAApproved, Actor: agent}, "may not"},
		{"ingestion approving", model.StatusPendingQA, Request{To: model.StatusQAApproved, Actor: system}, "may not"},
		{"anonymous", model.StatusPendingQA, Request{To: model.StatusQAApproved, Actor: Actor{Role: RoleQA}}, "not identified"},
		{"unknown role", model.StatusPendingQA, Request{To: model.StatusQAApproved, Actor: Actor{Role: "intern", ID: "x"}}, "not identified"},
		{"reject without reason", model.StatusPendingQA, Request{To: model.StatusQARejected, Actor: qa}, "requires a reason"},
		{"reject with bad reason", model.StatusPendingQA, Request{To: model.StatusQARejected, Actor: qa, RejectionReason: "Bad vibes"}, "rejection_reason"},
		{"unknown status", "", Request{To: model.StatusQAApproved, Actor: qa}, "not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Check(tt.from, tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrIllegalTransition))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestApply_DuplicateByIngestion(t *testing.T) {
	t.Parallel()
	l := &model.Lead{Status: model.StatusPendingQA}
	keys, err := Apply(l, Request{To: model.StatusDuplicate, Actor: system}, now)
	require.NoError(t, err)
	assert.Equal(t, []string{model.FieldStatus}, keys)
	assert.Nil(t, l.QAReviewDate, "ingestion is not a QA decision")
}

func TestApply_RejectionStampsReview(t *testing.T) {
	t.Parallel()
	l := &model.Lead{Status: model.StatusPendingQA}
	keys, err := Apply(l, Request{
		To:              model.StatusQARejected,
		Actor:           qa,
		RejectionReason: model.RejectTooSmall,
		Notes:           "two bakkies",
	}, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		model.FieldStatus, model.FieldQAReviewDate, model.FieldQANotes, model.FieldRejectionReason,
	}, keys)
	assert.Equal(t, model.RejectTooSmall, l.RejectionReason)
	assert.Equal(t, "two bakkies", l.QANotes)
	require.NotNil(t, l.QAReviewDate)
	assert.True(t, l.QAReviewDate.Equal(now))
}

func TestApply_HandoffStampsDateSent(t *testing.T) {
	t.Parallel()
	l := &model.Lead{Status: model.StatusQAApproved}
	keys, err := Apply(l, Request{To: model.StatusSentToCallCentre, Actor: qa}, now)
	require.NoError(t, err)
	assert.Contains(t, keys, model.FieldDateSent)
	require.NotNil(t, l.DateSent)
}

func TestApply_FeedbackAppends(t *testing.T) {
	t.Parallel()
	l := &model.Lead{Status: model.StatusSentToCallCentre}
	_, err := Apply(l, Request{To: model.StatusContacted, Actor: agent, Notes: "spoke to fleet manager"}, now)
	require.NoError(t, err)
	keys, err := Apply(l, Request{To: model.StatusInterested, Actor: agent, Notes: "wants a quote"}, now)
	require.NoError(t, err)
	assert.Contains(t, keys, model.FieldCallCentreFeedback)
	assert.Equal(t,
		"2026-03-04 Contacted (agent-7): spoke to fleet manager\n2026-03-04 Interested (agent-7): wants a quote",
		l.CallCentreFeedback)
}

func TestApply_ErrorLeavesLeadUnchanged(t *testing.T) {
	t.Parallel()
	l := &model.Lead{Status: model.StatusPendingQA, QANotes: "keep"}
	before := *l
	_, err := Apply(l, Request{To: model.StatusQARejected, Actor: qa, Notes: "overwrite"}, now)
	require.Error(t, err)
	assert.Equal(t, before, *l)
}

func TestNext(t *testing.T) {
	assert.Equal(t, []model.LeadStatus{
		model.StatusQAApproved, model.StatusQARejected, model.StatusDuplicate,
	}, Next(model.StatusPendingQA))
	assert.Equal(t, []model.LeadStatus{
		model.StatusConverted, model.StatusNotInterested,
	}, Next(model.StatusInterested))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" QA ")
	require.NoError(t, err)
	assert.Equal(t, RoleQA, r)
	_, err = ParseRole("manager")
	assert.Error(t, err)
}
