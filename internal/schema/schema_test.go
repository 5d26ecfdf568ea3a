package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func validLeadInput() map[string]any {
	return map[string]any{
		model.FieldCompanyName:     "Acme Haulage",
		model.FieldProvince:        "Gauteng",
		model.FieldIndustry:        "Transport & Logistics",
		model.FieldFleetLikelihood: 9,
		model.FieldTrackingNeed:    8,
		model.FieldFleetSize:       "Medium (6-20)",
		model.FieldSource:          "CIPC Registrations",
	}
}

func TestCurrent_HasAllCollections(t *testing.T) {
	t.Parallel()
	s := Current()
	assert.Equal(t, Version, s.Version)
	for _, c := range Collections {
		e, err := s.Entity(c)
		require.NoError(t, err)
		assert.NotEmpty(t, e.TitleField().Key, "collection %s has no title field", c)
	}

	_, err := s.Entity("widgets")
	assert.Error(t, err)
}

func TestCurrent_ReturnsIndependentCopies(t *testing.T) {
	t.Parallel()
	a := Current()
	b := Current()
	e, err := a.Entity(Leads)
	require.NoError(t, err)
	e.Fields[0].Label = "mutated"

	other, err := b.Entity(Leads)
	require.NoError(t, err)
	assert.Equal(t, "Company Name", other.Fields[0].Label)
}

func TestValidateInput_Valid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Current().ValidateInput(Leads, validLeadInput()))
}

func TestValidateInput_MissingRequired(t *testing.T) {
	t.Parallel()
	in := validLeadInput()
	delete(in, model.FieldCompanyName)
	in[model.FieldSource] = "  "

	err := Current().ValidateInput(Leads, in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrSchemaValidation))
	assert.Contains(t, err.Error(), "company_name: required")
	assert.Contains(t, err.Error(), "source: required")
}

func TestValidateInput_BadEnum(t *testing.T) {
	t.Parallel()
	in := validLeadInput()
	in[model.FieldProvince] = "Atlantis"

	err := Current().ValidateInput(Leads, in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `province: "Atlantis" is not one of`)
}

func TestValidateInput_ScoringDomainsDeferred(t *testing.T) {
	t.Parallel()
	in := validLeadInput()
	in[model.FieldFleetLikelihood] = 42
	in[model.FieldFleetSize] = "Gigantic"

	assert.NoError(t, Current().ValidateInput(Leads, in))
}

func TestValidateInput_RejectsWorkflowFields(t *testing.T) {
	t.Parallel()
	in := validLeadInput()
	in[model.FieldStatus] = "QA Approved"

	err := Current().ValidateInput(Leads, in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status: unknown field")
}

func TestValidate_FullRecordRanges(t *testing.T) {
	t.Parallel()
	rec := validLeadInput()
	rec[model.FieldSource] = "src-1"
	rec[model.FieldBatch] = "batch-1"
	rec[model.FieldStatus] = string(model.StatusPendingQA)
	rec[model.FieldQualityGate] = string(model.GateAutoApprove)
	rec[model.FieldCompositeScore] = 7.0
	require.NoError(t, Current().Validate(Leads, rec))

	rec[model.FieldCompositeScore] = 9.5
	rec[model.FieldTrackingNeed] = 11
	err := Current().Validate(Leads, rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "composite_score: 9.5 is above maximum 8")
	assert.Contains(t, err.Error(), "tracking_need: 11 is above maximum 10")
}

func TestValidate_IntegerAndTypes(t *testing.T) {
	t.Parallel()
	err := Current().Validate(Batches, map[string]any{
		BatchID:         "BATCH-2026-01-02-a",
		BatchRunDate:    "2026-01-02",
		BatchStatus:     "Running",
		BatchLeadsFound: 2.5,
		BatchErrors:     "not a list",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leads_found: expected integer")
	assert.Contains(t, err.Error(), "errors: expected list")
}

func TestMarshal_YAMLRoundTrip(t *testing.T) {
	t.Parallel()
	out, err := Current().Marshal("yaml")
	require.NoError(t, err)

	var decoded Schema
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, Version, decoded.Version)
	assert.Len(t, decoded.Entities, 3)
}

func TestMarshal_UnsupportedFormat(t *testing.T) {
	t.Parallel()
	_, err := Current().Marshal("toml")
	assert.Error(t, err)
}
