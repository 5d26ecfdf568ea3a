package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/schema"
)

// Repository reads and writes typed sources, batches and leads through a
// Store. Every write is validated against the full schema first, so a
// record that reaches the store is always schema-valid.
type Repository struct {
	st     Store
	schema *schema.Schema
}

// NewRepository wraps st.
func NewRepository(st Store) *Repository {
	return &Repository{st: st, schema: schema.Current()}
}

// Store returns the underlying store.
func (r *Repository) Store() Store { return r.st }

// Sources

// CreateSource inserts src and sets its ID and Revision.
func (r *Repository) CreateSource(ctx context.Context, src *model.Source) error {
	fields := encodeSource(src)
	if err := r.schema.Validate(schema.Sources, fields); err != nil {
		return err
	}
	id, err := r.st.CreateRecord(ctx, schema.Sources, fields)
	if err != nil {
		return eris.Wrapf(err, "repository: create source %q", src.Name)
	}
	src.ID, src.Revision = id, 1
	return nil
}

// ListSources returns every source.
func (r *Repository) ListSources(ctx context.Context) ([]*model.Source, error) {
	recs, err := r.st.QueryRecords(ctx, schema.Sources, nil)
	if err != nil {
		return nil, eris.Wrap(err, "repository: list sources")
	}
	out := make([]*model.Source, 0, len(recs))
	for i := range recs {
		out = append(out, decodeSource(&recs[i]))
	}
	return out, nil
}

// SeedSources creates each source whose name is not taken yet and returns
// how many were created.
func (r *Repository) SeedSources(ctx context.Context, sources []model.Source) (int, error) {
	existing, err := r.ListSources(ctx)
	if err != nil {
		return 0, err
	}
	taken := make(map[string]bool, len(existing))
	for _, s := range existing {
		taken[s.Name] = true
	}

	created := 0
	for i := range sources {
		if taken[sources[i].Name] {
			continue
		}
		if err := r.CreateSource(ctx, &sources[i]); err != nil {
			return created, err
		}
		taken[sources[i].Name] = true
		created++
	}
	return created, nil
}

// Batches

// FindBatch looks a batch up by its BATCH-... identifier.
func (r *Repository) FindBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	recs, err := r.st.QueryRecords(ctx, schema.Batches, Filter{schema.BatchID: batchID})
	if err != nil {
		return nil, eris.Wrapf(err, "repository: find batch %s", batchID)
	}
	if len(recs) == 0 {
		return nil, eris.Wrapf(model.ErrNotFound, "repository: batch %s", batchID)
	}
	return decodeBatch(&recs[0]), nil
}

// GetBatch loads a batch by record id.
func (r *Repository) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	rec, err := r.get(ctx, schema.Batches, id)
	if err != nil {
		return nil, err
	}
	return decodeBatch(rec), nil
}

// ListBatches returns every batch in creation order.
func (r *Repository) ListBatches(ctx context.Context) ([]*model.Batch, error) {
	recs, err := r.st.QueryRecords(ctx, schema.Batches, nil)
	if err != nil {
		return nil, eris.Wrap(err, "repository: list batches")
	}
	out := make([]*model.Batch, 0, len(recs))
	for i := range recs {
		out = append(out, decodeBatch(&recs[i]))
	}
	return out, nil
}

// CreateBatch inserts b and sets its ID and Revision.
func (r *Repository) CreateBatch(ctx context.Context, b *model.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	fields := encodeBatch(b)
	if err := r.schema.Validate(schema.Batches, fields); err != nil {
		return err
	}
	id, err := r.st.CreateRecord(ctx, schema.Batches, fields)
	if err != nil {
		return eris.Wrapf(err, "repository: create batch %s", b.BatchID)
	}
	b.ID, b.Revision = id, 1
	return nil
}

// SaveBatch writes every batch field at b.Revision and advances it.
func (r *Repository) SaveBatch(ctx context.Context, b *model.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	fields := encodeBatch(b)
	if err := r.schema.Validate(schema.Batches, fields); err != nil {
		return err
	}
	rev, err := r.st.UpdateRecord(ctx, b.ID, b.Revision, fields)
	if err != nil {
		return eris.Wrapf(err, "repository: save batch %s", b.BatchID)
	}
	b.Revision = rev
	return nil
}

// Leads

// GetLead loads a lead by record id.
func (r *Repository) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	rec, err := r.get(ctx, schema.Leads, id)
	if err != nil {
		return nil, err
	}
	return decodeLead(rec), nil
}

// ListLeads returns the leads matching filter in creation order.
func (r *Repository) ListLeads(ctx context.Context, filter Filter) ([]*model.Lead, error) {
	recs, err := r.st.QueryRecords(ctx, schema.Leads, filter)
	if err != nil {
		return nil, eris.Wrap(err, "repository: list leads")
	}
	out := make([]*model.Lead, 0, len(recs))
	for i := range recs {
		out = append(out, decodeLead(&recs[i]))
	}
	return out, nil
}

// CreateLead inserts l and sets its ID and Revision.
func (r *Repository) CreateLead(ctx context.Context, l *model.Lead) error {
	fields := EncodeLead(l)
	if err := r.schema.Validate(schema.Leads, fields); err != nil {
		return err
	}
	id, err := r.st.CreateRecord(ctx, schema.Leads, fields)
	if err != nil {
		return eris.Wrapf(err, "repository: create lead %q", l.CompanyName)
	}
	l.ID, l.Revision = id, 1
	return nil
}

// UpdateLead writes the named fields of l at l.Revision and advances it.
// The whole lead is validated, not just the written fields.
func (r *Repository) UpdateLead(ctx context.Context, l *model.Lead, keys []string) error {
	fields := EncodeLead(l)
	if err := r.schema.Validate(schema.Leads, fields); err != nil {
		return err
	}
	patch := make(map[string]any, len(keys))
	for _, k := range keys {
		patch[k] = fields[k]
	}
	rev, err := r.st.UpdateRecord(ctx, l.ID, l.Revision, patch)
	if err != nil {
		return eris.Wrapf(err, "repository: update lead %s", l.ID)
	}
	l.Revision = rev
	return nil
}

func (r *Repository) get(ctx context.Context, c schema.Collection, id string) (*Record, error) {
	rec, err := r.st.GetRecord(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "repository: get %s %s", c, id)
	}
	if rec.Collection != c {
		return nil, eris.Wrapf(model.ErrNotFound, "repository: %s is a %s record, not %s", id, rec.Collection, c)
	}
	return rec, nil
}

// Encoding

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}

func putTime(m map[string]any, key string, t *time.Time) {
	if t != nil {
		m[key] = formatTime(t)
	}
}

func encodeSource(s *model.Source) map[string]any {
	m := map[string]any{}
	putString(m, schema.SourceName, s.Name)
	putString(m, schema.SourceType, string(s.Type))
	putString(m, schema.SourceURL, s.URL)
	putString(m, schema.SourceCompliance, string(s.Compliance))
	putString(m, schema.SourceStatus, string(s.Status))
	putTime(m, schema.SourceLastCrawled, s.LastCrawled)
	putString(m, schema.SourceNotes, s.Notes)
	return m
}

func decodeSource(rec *Record) *model.Source {
	f := rec.Fields
	return &model.Source{
		ID:          rec.ID,
		Revision:    rec.Revision,
		Name:        asString(f[schema.SourceName]),
		Type:        model.SourceType(asString(f[schema.SourceType])),
		URL:         asString(f[schema.SourceURL]),
		Compliance:  model.Compliance(asString(f[schema.SourceCompliance])),
		Status:      model.SourceStatus(asString(f[schema.SourceStatus])),
		LastCrawled: asTime(f[schema.SourceLastCrawled]),
		Notes:       asString(f[schema.SourceNotes]),
	}
}

func encodeBatch(b *model.Batch) map[string]any {
	m := map[string]any{
		schema.BatchLeadsFound:      b.LeadsFound,
		schema.BatchLeadsAfterDedup: b.LeadsAfterDedup,
		schema.BatchSourcesCrawled:  nonNil(b.SourcesCrawled),
		schema.BatchErrors:          nonNil(b.Errors),
		schema.BatchAPICost:         b.APICost,
	}
	putString(m, schema.BatchID, b.BatchID)
	if !b.RunDate.IsZero() {
		m[schema.BatchRunDate] = b.RunDate.Format(time.DateOnly)
	}
	putString(m, schema.BatchStatus, string(b.Status))
	putTime(m, schema.BatchStartedAt, b.StartedAt)
	return m
}

func decodeBatch(rec *Record) *model.Batch {
	f := rec.Fields
	b := &model.Batch{
		ID:              rec.ID,
		Revision:        rec.Revision,
		BatchID:         asString(f[schema.BatchID]),
		Status:          model.BatchStatus(asString(f[schema.BatchStatus])),
		LeadsFound:      asInt(f[schema.BatchLeadsFound]),
		LeadsAfterDedup: asInt(f[schema.BatchLeadsAfterDedup]),
		SourcesCrawled:  asStrings(f[schema.BatchSourcesCrawled]),
		Errors:          asStrings(f[schema.BatchErrors]),
		StartedAt:       asTime(f[schema.BatchStartedAt]),
	}
	b.APICost, _ = asFloat(f[schema.BatchAPICost])
	if t := asTime(f[schema.BatchRunDate]); t != nil {
		b.RunDate = *t
	}
	return b
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// EncodeLead returns the record fields of l. Empty strings and nil dates
// are omitted.
func EncodeLead(l *model.Lead) map[string]any {
	m := map[string]any{
		model.FieldFleetLikelihood: l.FleetLikelihood,
		model.FieldTrackingNeed:    l.TrackingNeed,
		model.FieldCompositeScore:  l.CompositeScore,
	}
	for _, kv := range []struct{ k, v string }{
		{model.FieldCompanyName, l.CompanyName},
		{model.FieldCIPCReg, l.CIPCReg},
		{model.FieldIndustry, string(l.Industry)},
		{model.FieldSegment, string(l.Segment)},
		{model.FieldProvince, string(l.Province)},
		{model.FieldCity, l.City},
		{model.FieldWebsite, l.Website},
		{model.FieldLinkedIn, l.LinkedIn},
		{model.FieldContact, l.Contact},
		{model.FieldProspectSummary, l.ProspectSummary},
		{model.FieldCompanyProfile, l.CompanyProfile},
		{model.FieldFleetAssessment, l.FleetAssessment},
		{model.FieldTrackingReasoning, l.TrackingReasoning},
		{model.FieldCallScriptOpener, l.CallScriptOpener},
		{model.FieldDataConfidence, string(l.DataConfidence)},
		{model.FieldSourcesUsed, l.SourcesUsed},
		{model.FieldFleetSize, string(l.FleetSize)},
		{model.FieldQualityGate, string(l.QualityGate)},
		{model.FieldStatus, string(l.Status)},
		{model.FieldQANotes, l.QANotes},
		{model.FieldRejectionReason, string(l.RejectionReason)},
		{model.FieldCallCentreFeedback, l.CallCentreFeedback},
		{model.FieldNotes, l.Notes},
		{model.FieldSource, l.SourceID},
		{model.FieldBatch, l.BatchID},
	} {
		putString(m, kv.k, kv.v)
	}
	putTime(m, model.FieldQAReviewDate, l.QAReviewDate)
	putTime(m, model.FieldDateFound, l.DateFound)
	putTime(m, model.FieldDateSent, l.DateSent)
	return m
}

func decodeLead(rec *Record) *model.Lead {
	f := rec.Fields
	s := func(k string) string { return asString(f[k]) }
	l := &model.Lead{
		ID:                 rec.ID,
		Revision:           rec.Revision,
		CompanyName:        s(model.FieldCompanyName),
		CIPCReg:            s(model.FieldCIPCReg),
		Industry:           model.Industry(s(model.FieldIndustry)),
		Segment:            model.Segment(s(model.FieldSegment)),
		Province:           model.Province(s(model.FieldProvince)),
		City:               s(model.FieldCity),
		Website:            s(model.FieldWebsite),
		LinkedIn:           s(model.FieldLinkedIn),
		Contact:            s(model.FieldContact),
		ProspectSummary:    s(model.FieldProspectSummary),
		CompanyProfile:     s(model.FieldCompanyProfile),
		FleetAssessment:    s(model.FieldFleetAssessment),
		TrackingReasoning:  s(model.FieldTrackingReasoning),
		CallScriptOpener:   s(model.FieldCallScriptOpener),
		DataConfidence:     model.Confidence(s(model.FieldDataConfidence)),
		SourcesUsed:        s(model.FieldSourcesUsed),
		FleetLikelihood:    asInt(f[model.FieldFleetLikelihood]),
		FleetSize:          model.FleetSize(s(model.FieldFleetSize)),
		TrackingNeed:       asInt(f[model.FieldTrackingNeed]),
		QualityGate:        model.QualityGate(s(model.FieldQualityGate)),
		Status:             model.LeadStatus(s(model.FieldStatus)),
		QAReviewDate:       asTime(f[model.FieldQAReviewDate]),
		QANotes:            s(model.FieldQANotes),
		RejectionReason:    model.RejectionReason(s(model.FieldRejectionReason)),
		DateFound:          asTime(f[model.FieldDateFound]),
		DateSent:           asTime(f[model.FieldDateSent]),
		CallCentreFeedback: s(model.FieldCallCentreFeedback),
		Notes:              s(model.FieldNotes),
		SourceID:           s(model.FieldSource),
		BatchID:            s(model.FieldBatch),
	}
	l.CompositeScore, _ = asFloat(f[model.FieldCompositeScore])
	return l
}
