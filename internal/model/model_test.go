package model

import (
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatchID(t *testing.T) {
	date, err := ParseBatchID("BATCH-2026-03-04-n8n_run-7")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), date)

	for _, bad := range []string{"", "BATCH-2026-03-04", "batch-2026-03-04-a", "BATCH-2026-13-40-a", "BATCH-2026-03-04-a b"} {
		_, err := ParseBatchID(bad)
		assert.True(t, errors.Is(err, ErrSchemaValidation), bad)
	}
}

func TestBatchValidate(t *testing.T) {
	assert.NoError(t, (&Batch{LeadsFound: 3, LeadsAfterDedup: 2}).Validate())
	assert.True(t, errors.Is((&Batch{LeadsFound: -1}).Validate(), ErrSchemaValidation))
	assert.True(t, errors.Is((&Batch{LeadsFound: 1, LeadsAfterDedup: 2}).Validate(), ErrSchemaValidation))
}

func TestFinalStatus(t *testing.T) {
	tests := []struct {
		succeeded, failed int
		want              BatchStatus
	}{
		{0, 0, BatchCompleted},
		{3, 0, BatchCompleted},
		{2, 1, BatchPartial},
		{0, 2, BatchFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FinalStatus(tt.succeeded, tt.failed), "%d/%d", tt.succeeded, tt.failed)
	}
	assert.False(t, BatchRunning.Terminal())
	assert.True(t, BatchPartial.Terminal())
}

func TestParseEnums(t *testing.T) {
	s, err := ParseLeadStatus("Sent to Call Centre")
	require.NoError(t, err)
	assert.Equal(t, StatusSentToCallCentre, s)

	_, err = ParseLeadStatus("sent to call centre")
	assert.True(t, errors.Is(err, ErrSchemaValidation))
	assert.Contains(t, err.Error(), "status")

	p, err := ParseProvince("KwaZulu-Natal")
	require.NoError(t, err)
	assert.Equal(t, Province("KwaZulu-Natal"), p)

	_, err = ParseFleetSize("Huge")
	assert.True(t, errors.Is(err, ErrSchemaValidation))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, []string{"Auto-Approve", "Review", "Auto-Reject"}, Labels(QualityGates))
	assert.Len(t, Labels(LeadStatuses), 9)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "StaleWrite", ErrorKind(eris.Wrap(ErrStaleWrite, "lead 42")))
	assert.Equal(t, "UnknownSourceReference", ErrorKind(eris.Wrapf(ErrUnknownSourceReference, "source %q", "x")))
	assert.Equal(t, "InternalError", ErrorKind(errors.New("disk full")))
	assert.Equal(t, "InternalError", ErrorKind(nil))
}

func TestCheckReferenceable(t *testing.T) {
	var missing *Source
	assert.True(t, errors.Is(missing.CheckReferenceable(), ErrUnknownSourceReference))

	blocked := &Source{Name: "Scraped Profiles", Compliance: ComplianceBlocked}
	assert.True(t, errors.Is(blocked.CheckReferenceable(), ErrUnknownSourceReference))

	caution := &Source{Name: "LinkedIn Company Pages", Compliance: ComplianceCaution}
	assert.NoError(t, caution.CheckReferenceable())
}

func TestDefaultSourcesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, s := range DefaultSources() {
		assert.False(t, seen[s.Name], s.Name)
		seen[s.Name] = true
		assert.NotEqual(t, ComplianceBlocked, s.Compliance, s.Name)
	}
}

func TestFieldValueAndCopyField(t *testing.T) {
	src := &Lead{CompanyName: "Acme Haulage", City: "Midrand", FleetLikelihood: 9, FleetSize: FleetSizeLarge}
	dst := &Lead{CompanyName: "Old Name"}

	for _, key := range MergeableFields {
		dst.CopyField(src, key)
		assert.Equal(t, src.FieldValue(key), dst.FieldValue(key), key)
	}
	assert.Equal(t, "9", dst.FieldValue(FieldFleetLikelihood))
	assert.Equal(t, "0", dst.FieldValue(FieldTrackingNeed))
	assert.Empty(t, dst.FieldValue("no_such_field"))

	assert.True(t, IsScoringInput(FieldFleetSize))
	assert.False(t, IsScoringInput(FieldCity))
}
