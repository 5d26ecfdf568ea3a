package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func TestParsePayload_KeepsBadLeads(t *testing.T) {
	p, err := ParsePayload([]byte(`{
		"batch_id": "BATCH-2026-03-04-a",
		"leads": [
			{"company_name": "Acme Haulage", "fleet_likelihood": 9, "website": null},
			42
		]
	}`))
	require.NoError(t, err)
	require.Len(t, p.Leads, 2)

	assert.NoError(t, p.Leads[0].Err)
	assert.Equal(t, "Acme Haulage", p.Leads[0].Company())
	assert.NotContains(t, p.Leads[0].inputFields(), "website")

	require.Error(t, p.Leads[1].Err)
	assert.True(t, errors.Is(p.Leads[1].Err, model.ErrSchemaValidation))
}

func TestParsePayload_Usage(t *testing.T) {
	p, err := ParsePayload([]byte(`{
		"batch_id": "BATCH-2026-03-04-a",
		"leads": [],
		"usage": [{"model": "claude-sonnet-4-5", "input_tokens": 1200, "output_tokens": 300, "web_searches": 4}]
	}`))
	require.NoError(t, err)
	require.Len(t, p.Usage, 1)
	assert.Equal(t, "claude-sonnet-4-5", p.Usage[0].Model)
	assert.Equal(t, 1200, p.Usage[0].InputTokens)
	assert.Equal(t, 4, p.Usage[0].WebSearches)
}

func TestParsePayload_Malformed(t *testing.T) {
	for _, doc := range []string{`not json`, `{"batch_id": 7}`, `{"leads": {}}`} {
		_, err := ParsePayload([]byte(doc))
		require.Error(t, err, doc)
		assert.True(t, errors.Is(err, model.ErrSchemaValidation))
	}
}

func TestToLead_TrimsAndConverts(t *testing.T) {
	lp := LeadPayload{Fields: map[string]any{
		"company_name":     "  Acme Haulage ",
		"cipc_reg":         " ",
		"fleet_likelihood": 9.0,
		"tracking_need":    8,
		"fleet_size":       "Large (20+)",
	}}
	l := lp.toLead()
	assert.Equal(t, "Acme Haulage", l.CompanyName)
	assert.Empty(t, l.CIPCReg)
	assert.Equal(t, 9, l.FleetLikelihood)
	assert.Equal(t, 8, l.TrackingNeed)
	assert.Equal(t, model.FleetSizeLarge, l.FleetSize)
}
