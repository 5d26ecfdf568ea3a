// Package ingest is the ingestion gateway: it validates an inbound batch of
// candidate leads, resolves duplicates, scores, persists and summarises the
// run into its Batch record.
package ingest

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/cost"
	"github.com/sells-group/leadgen-cli/internal/model"
)

// Payload is the inbound batch. Usage, when present, is the generator's
// model and search usage for the run and prices the batch's API cost.
type Payload struct {
	BatchID string        `json:"batch_id"`
	Leads   []LeadPayload `json:"leads"`
	Usage   []cost.Usage  `json:"usage,omitempty"`
}

// LeadPayload is one candidate lead as received. A lead that is not a JSON
// object does not fail the payload; it carries Err and is rejected on its
// own.
type LeadPayload struct {
	Fields map[string]any
	Err    error
}

func (p *LeadPayload) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		p.Fields = nil
		p.Err = eris.Wrapf(model.ErrSchemaValidation, "lead is not a JSON object: %s", truncate(string(data), 40))
		return nil
	}
	p.Fields, p.Err = m, nil
	return nil
}

func (p LeadPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Fields)
}

// DecodePayload reads a payload document. Only a document that is not a
// JSON object with a leads array fails; per-lead problems are kept for the
// gateway.
func DecodePayload(r io.Reader) (*Payload, error) {
	var p Payload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return nil, eris.Wrapf(model.ErrSchemaValidation, "ingest: decode payload: %v", err)
	}
	return &p, nil
}

// ParsePayload is DecodePayload for a byte slice.
func ParsePayload(data []byte) (*Payload, error) {
	return DecodePayload(bytes.NewReader(data))
}

// Company returns the candidate's company name, or "" when absent.
func (p LeadPayload) Company() string {
	s, _ := p.Fields[model.FieldCompanyName].(string)
	return s
}

// SourceName returns the referenced Source name.
func (p LeadPayload) SourceName() string {
	s, _ := p.Fields[model.FieldSource].(string)
	return s
}

// inputFields returns the fields to validate. Explicit nulls are dropped so
// an optional field sent as null reads as absent.
func (p LeadPayload) inputFields() map[string]any {
	out := make(map[string]any, len(p.Fields))
	for k, v := range p.Fields {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// toLead builds a Lead from schema-valid input fields.
func (p LeadPayload) toLead() *model.Lead {
	f := p.Fields
	s := func(k string) string {
		v, _ := f[k].(string)
		return strings.TrimSpace(v)
	}
	n := func(k string) int {
		switch v := f[k].(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
		return 0
	}
	return &model.Lead{
		CompanyName:       s(model.FieldCompanyName),
		CIPCReg:           s(model.FieldCIPCReg),
		Industry:          model.Industry(s(model.FieldIndustry)),
		Segment:           model.Segment(s(model.FieldSegment)),
		Province:          model.Province(s(model.FieldProvince)),
		City:              s(model.FieldCity),
		Website:           s(model.FieldWebsite),
		LinkedIn:          s(model.FieldLinkedIn),
		Contact:           s(model.FieldContact),
		ProspectSummary:   s(model.FieldProspectSummary),
		CompanyProfile:    s(model.FieldCompanyProfile),
		FleetAssessment:   s(model.FieldFleetAssessment),
		TrackingReasoning: s(model.FieldTrackingReasoning),
		CallScriptOpener:  s(model.FieldCallScriptOpener),
		DataConfidence:    model.Confidence(s(model.FieldDataConfidence)),
		SourcesUsed:       s(model.FieldSourcesUsed),
		FleetLikelihood:   n(model.FieldFleetLikelihood),
		FleetSize:         model.FleetSize(s(model.FieldFleetSize)),
		TrackingNeed:      n(model.FieldTrackingNeed),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
