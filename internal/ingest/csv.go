package ingest

import (
	"encoding/csv"
	"errors"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// csvLead is one row of a lead import sheet. Column names are the wire
// field names of the JSON payload.
type csvLead struct {
	CompanyName       string `csv:"company_name,omitempty"`
	CIPCReg           string `csv:"cipc_reg,omitempty"`
	Industry          string `csv:"industry,omitempty"`
	Segment           string `csv:"segment,omitempty"`
	Province          string `csv:"province,omitempty"`
	City              string `csv:"city,omitempty"`
	Website           string `csv:"website,omitempty"`
	LinkedIn          string `csv:"linkedin,omitempty"`
	Contact           string `csv:"contact,omitempty"`
	ProspectSummary   string `csv:"prospect_summary,omitempty"`
	CompanyProfile    string `csv:"company_profile,omitempty"`
	FleetAssessment   string `csv:"fleet_assessment,omitempty"`
	TrackingReasoning string `csv:"tracking_reasoning,omitempty"`
	CallScriptOpener  string `csv:"call_script_opener,omitempty"`
	DataConfidence    string `csv:"data_confidence,omitempty"`
	SourcesUsed       string `csv:"sources_used,omitempty"`
	FleetLikelihood   *int   `csv:"fleet_likelihood,omitempty"`
	FleetSize         string `csv:"fleet_size,omitempty"`
	TrackingNeed      *int   `csv:"tracking_need,omitempty"`
	Source            string `csv:"source,omitempty"`
}

func (c *csvLead) fields() map[string]any {
	m := map[string]any{}
	for k, v := range map[string]string{
		model.FieldCompanyName:       c.CompanyName,
		model.FieldCIPCReg:           c.CIPCReg,
		model.FieldIndustry:          c.Industry,
		model.FieldSegment:           c.Segment,
		model.FieldProvince:          c.Province,
		model.FieldCity:              c.City,
		model.FieldWebsite:           c.Website,
		model.FieldLinkedIn:          c.LinkedIn,
		model.FieldContact:           c.Contact,
		model.FieldProspectSummary:   c.ProspectSummary,
		model.FieldCompanyProfile:    c.CompanyProfile,
		model.FieldFleetAssessment:   c.FleetAssessment,
		model.FieldTrackingReasoning: c.TrackingReasoning,
		model.FieldCallScriptOpener:  c.CallScriptOpener,
		model.FieldDataConfidence:    c.DataConfidence,
		model.FieldSourcesUsed:       c.SourcesUsed,
		model.FieldFleetSize:         c.FleetSize,
		model.FieldSource:            c.Source,
	} {
		if v != "" {
			m[k] = v
		}
	}
	if c.FleetLikelihood != nil {
		m[model.FieldFleetLikelihood] = *c.FleetLikelihood
	}
	if c.TrackingNeed != nil {
		m[model.FieldTrackingNeed] = *c.TrackingNeed
	}
	return m
}

// ReadCSV reads candidate leads from a CSV sheet whose header row uses the
// payload field names. A row that cannot be decoded becomes a rejected
// lead rather than failing the sheet.
func ReadCSV(r io.Reader) ([]LeadPayload, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}

	var out []LeadPayload
	for line := 2; ; line++ {
		var row csvLead
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, eris.Wrapf(err, "ingest: csv line %d", line)
		}
		if err != nil {
			out = append(out, LeadPayload{
				Err: eris.Wrapf(model.ErrSchemaValidation, "csv line %d: %v", line, err),
			})
			continue
		}
		out = append(out, LeadPayload{Fields: row.fields()})
	}
}
