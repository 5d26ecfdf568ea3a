package dedup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func lead(id, name, reg string, prov model.Province) *model.Lead {
	return &model.Lead{
		ID:              id,
		CompanyName:     name,
		CIPCReg:         reg,
		Province:        prov,
		FleetLikelihood: 7,
		TrackingNeed:    6,
		FleetSize:       model.FleetSizeMedium,
		Status:          model.StatusPendingQA,
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy, p)

	p, err = ParsePolicy([]string{"Website", "registration"})
	require.NoError(t, err)
	assert.Equal(t, []Key{KeyWebsite, KeyRegistration}, p)

	_, err = ParsePolicy([]string{"phone"})
	assert.Error(t, err)
	_, err = ParsePolicy([]string{"website", "website"})
	assert.Error(t, err)
}

func TestResolve_NewWhenNoMatch(t *testing.T) {
	r := NewResolver(nil, []*model.Lead{lead("a", "Acme", "REG-1", model.ProvinceGauteng)})
	out, err := r.Resolve(lead("", "Beta Freight", "REG-2", model.ProvinceGauteng))
	require.NoError(t, err)
	assert.Equal(t, New, out.Kind)
	assert.Empty(t, out.ExistingID)
}

func TestResolve_RegistrationTakesPriority(t *testing.T) {
	r := NewResolver(nil, []*model.Lead{
		lead("a", "Acme Haulage", "REG-1", model.ProvinceGauteng),
		lead("b", "Other Name", "", model.ProvinceWesternCape),
	})
	cand := lead("", "Acme Haulage", "REG-1", model.ProvinceGauteng)

	out, err := r.Resolve(cand)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, out.Kind)
	assert.Equal(t, "a", out.ExistingID)
	assert.Equal(t, KeyRegistration, out.MatchedBy)
}

func TestResolve_NameProvinceFallback(t *testing.T) {
	r := NewResolver(nil, []*model.Lead{lead("a", "Acme  Haulage", "", model.ProvinceGauteng)})

	out, err := r.Resolve(lead("", "ACME haulage", "", model.ProvinceGauteng))
	require.NoError(t, err)
	assert.Equal(t, KeyNameProvince, out.MatchedBy)
	assert.Equal(t, "a", out.ExistingID)

	out, err = r.Resolve(lead("", "Acme Haulage", "", model.ProvinceLimpopo))
	require.NoError(t, err)
	assert.Equal(t, New, out.Kind, "same name in another province is a different company")
}

func TestResolve_ConflictingRegistrationIsNotAMatch(t *testing.T) {
	r := NewResolver(nil, []*model.Lead{lead("a", "Acme", "REG-1", model.ProvinceGauteng)})
	out, err := r.Resolve(lead("", "Acme", "REG-9", model.ProvinceGauteng))
	require.NoError(t, err)
	assert.Equal(t, New, out.Kind)
}

func TestResolve_UpdateListsChangedFields(t *testing.T) {
	existing := lead("a", "Acme", "REG-1", model.ProvinceGauteng)
	existing.City = "Midrand"
	existing.Contact = ""
	existing.Status = model.StatusQAApproved
	existing.QANotes = "looks good"
	r := NewResolver(nil, []*model.Lead{existing})

	cand := lead("", "Acme", "REG-1", model.ProvinceGauteng)
	cand.City = "Centurion"
	cand.Contact = "011 555 0100"
	cand.TrackingNeed = 9

	out, err := r.Resolve(cand)
	require.NoError(t, err)
	assert.Equal(t, Update, out.Kind)
	assert.Equal(t, "a", out.ExistingID)
	assert.Equal(t, []string{model.FieldCity, model.FieldTrackingNeed}, out.Changed)
}

func TestResolve_EmptyIncomingValueIsNotAChange(t *testing.T) {
	existing := lead("a", "Acme", "REG-1", model.ProvinceGauteng)
	existing.Website = "https://acme.co.za"
	r := NewResolver(nil, []*model.Lead{existing})

	cand := lead("", "Acme", "REG-1", model.ProvinceGauteng)
	out, err := r.Resolve(cand)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, out.Kind)
}

func TestResolve_IdentitySpellingIsNotAChange(t *testing.T) {
	existing := lead("a", "Acme Haulage", "2019/123456/07", model.ProvinceGauteng)
	existing.Website = "https://www.acme.co.za/"
	r := NewResolver(nil, []*model.Lead{existing})

	cand := lead("", "  ACME   haulage ", " 2019/123456/07 ", model.ProvinceGauteng)
	cand.Website = "acme.co.za"
	out, err := r.Resolve(cand)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, out.Kind)
	assert.Equal(t, "a", out.ExistingID)

	cand.CompanyName = "Acme Haulage Holdings"
	out, err = r.Resolve(cand)
	require.NoError(t, err)
	assert.Equal(t, Update, out.Kind)
	assert.Equal(t, []string{model.FieldCompanyName}, out.Changed)
}

func TestResolve_Ambiguous(t *testing.T) {
	r := NewResolver(nil, []*model.Lead{
		lead("a", "Acme", "", model.ProvinceGauteng),
		lead("b", "acme", "", model.ProvinceGauteng),
	})
	out, err := r.Resolve(lead("", "Acme", "", model.ProvinceGauteng))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrAmbiguousDuplicate))
	assert.Contains(t, err.Error(), "a, b")
	assert.Equal(t, []string{"a", "b"}, out.Candidates)
	assert.Equal(t, KeyNameProvince, out.MatchedBy)
}

func TestResolve_SeesLeadsAddedDuringRun(t *testing.T) {
	r := NewResolver(nil, nil)
	first := lead("", "Acme", "REG-1", model.ProvinceGauteng)

	out, err := r.Resolve(first)
	require.NoError(t, err)
	require.Equal(t, New, out.Kind)

	first.ID = "new-1"
	r.Put(first)

	out, err = r.Resolve(lead("", "Acme Again", "REG-1", model.ProvinceWesternCape))
	require.NoError(t, err)
	assert.Equal(t, "new-1", out.ExistingID)
}

func TestPut_ReplacesIndexEntries(t *testing.T) {
	r := NewResolver(nil, []*model.Lead{lead("a", "Acme", "REG-1", model.ProvinceGauteng)})
	updated := lead("a", "Acme", "REG-1", model.ProvinceLimpopo)
	r.Put(updated)
	assert.Equal(t, 1, r.Len())

	out, err := r.Resolve(lead("", "Acme", "", model.ProvinceGauteng))
	require.NoError(t, err)
	assert.Equal(t, New, out.Kind, "old province key must be gone")

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, model.ProvinceLimpopo, got.Province)
}

func TestPut_SkipsDuplicateStatus(t *testing.T) {
	dup := lead("d", "Acme", "REG-1", model.ProvinceGauteng)
	dup.Status = model.StatusDuplicate
	r := NewResolver(nil, []*model.Lead{lead("a", "Acme", "REG-1", model.ProvinceGauteng), dup})
	assert.Equal(t, 1, r.Len())

	out, err := r.Resolve(lead("", "Acme", "REG-1", model.ProvinceGauteng))
	require.NoError(t, err)
	assert.Equal(t, "a", out.ExistingID)
}

func TestResolve_WebsitePolicy(t *testing.T) {
	existing := lead("a", "Acme Haulage", "", model.ProvinceGauteng)
	existing.Website = "https://www.acme.co.za"
	r := NewResolver([]Key{KeyWebsite}, []*model.Lead{existing})

	cand := lead("", "Acme Haulage CC", "", model.ProvinceGauteng)
	cand.Website = "acme.co.za/contact"
	out, err := r.Resolve(cand)
	require.NoError(t, err)
	assert.Equal(t, Update, out.Kind)
	assert.Equal(t, KeyWebsite, out.MatchedBy)
	assert.Contains(t, out.Changed, model.FieldCompanyName)
	assert.Contains(t, out.Changed, model.FieldWebsite)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "new", New.String())
	assert.Equal(t, "duplicate", Duplicate.String())
	assert.Equal(t, "update", Update.String())
	assert.Equal(t, "unknown", Kind(7).String())
}
