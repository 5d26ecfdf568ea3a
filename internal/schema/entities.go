package schema

import "github.com/sells-group/leadgen-cli/internal/model"

// Batch and source field keys. Lead keys live in the model package because
// the ingestion wire format shares them.
const (
	SourceName        = "name"
	SourceType        = "type"
	SourceURL         = "url"
	SourceCompliance  = "compliance"
	SourceStatus      = "status"
	SourceLastCrawled = "last_crawled"
	SourceNotes       = "notes"

	BatchID              = "batch_id"
	BatchRunDate         = "run_date"
	BatchStatus          = "status"
	BatchLeadsFound      = "leads_found"
	BatchLeadsAfterDedup = "leads_after_dedup"
	BatchSourcesCrawled  = "sources_crawled"
	BatchErrors          = "errors"
	BatchAPICost         = "api_cost_usd"
	BatchStartedAt       = "started_at"
)

func bound(v float64) *float64 { return &v }

func sourceEntity() *Entity {
	return &Entity{
		Collection: Sources,
		Title:      "Sources",
		Icon:       "🔗",
		Fields: []Field{
			{Key: SourceName, Label: "Source Name", Kind: KindTitle, Origin: OriginInput, Required: true},
			{Key: SourceType, Label: "Source Type", Kind: KindSelect, Origin: OriginInput, Required: true, Values: model.Labels(model.SourceTypes)},
			{Key: SourceURL, Label: "URL", Kind: KindURL, Origin: OriginInput},
			{Key: SourceCompliance, Label: "POPIA Status", Kind: KindSelect, Origin: OriginInput, Required: true, Values: model.Labels(model.Compliances)},
			{Key: SourceStatus, Label: "Status", Kind: KindSelect, Origin: OriginInput, Required: true, Values: model.Labels(model.SourceStatuses)},
			{Key: SourceLastCrawled, Label: "Last Crawled", Kind: KindDate, Origin: OriginSystem},
			{Key: SourceNotes, Label: "Notes", Kind: KindText, Origin: OriginInput},
		},
	}
}

func batchEntity() *Entity {
	return &Entity{
		Collection: Batches,
		Title:      "Batches",
		Icon:       "⚙️",
		Fields: []Field{
			{Key: BatchID, Label: "Batch ID", Kind: KindTitle, Origin: OriginSystem, Required: true},
			{Key: BatchRunDate, Label: "Run Date", Kind: KindDate, Origin: OriginSystem, Required: true},
			{Key: BatchStatus, Label: "Status", Kind: KindSelect, Origin: OriginSystem, Required: true, Values: model.Labels(model.BatchStatuses)},
			{Key: BatchLeadsFound, Label: "Leads Found", Kind: KindNumber, Origin: OriginSystem, Integer: true, Min: bound(0)},
			{Key: BatchLeadsAfterDedup, Label: "Leads After Dedup", Kind: KindNumber, Origin: OriginSystem, Integer: true, Min: bound(0)},
			{Key: BatchSourcesCrawled, Label: "Sources Crawled", Kind: KindList, Origin: OriginSystem},
			{Key: BatchErrors, Label: "Errors", Kind: KindList, Origin: OriginSystem},
			{Key: BatchAPICost, Label: "API Cost (USD)", Kind: KindMoney, Origin: OriginSystem, Min: bound(0)},
			{Key: BatchStartedAt, Label: "Started At", Kind: KindDate, Origin: OriginSystem},
		},
	}
}

func leadEntity() *Entity {
	return &Entity{
		Collection: Leads,
		Title:      "Leads",
		Icon:       "🎯",
		Fields: []Field{
			// Identity
			{Key: model.FieldCompanyName, Label: "Company Name", Kind: KindTitle, Origin: OriginInput, Required: true},
			{Key: model.FieldCIPCReg, Label: "CIPC Reg Number", Kind: KindText, Origin: OriginInput},
			{Key: model.FieldIndustry, Label: "Industry", Kind: KindSelect, Origin: OriginInput, Values: model.Labels(model.Industries)},
			{Key: model.FieldSegment, Label: "Segment", Kind: KindSelect, Origin: OriginInput, Values: model.Labels(model.Segments)},
			{Key: model.FieldProvince, Label: "Province", Kind: KindSelect, Origin: OriginInput, Values: model.Labels(model.Provinces)},
			{Key: model.FieldCity, Label: "City / Area", Kind: KindText, Origin: OriginInput},
			{Key: model.FieldWebsite, Label: "Website", Kind: KindURL, Origin: OriginInput},
			{Key: model.FieldLinkedIn, Label: "LinkedIn URL", Kind: KindURL, Origin: OriginInput},
			{Key: model.FieldContact, Label: "Public Contact", Kind: KindText, Origin: OriginInput},

			// Prospect profile
			{Key: model.FieldProspectSummary, Label: "Prospect Summary", Kind: KindText, Origin: OriginInput},
			{Key: model.FieldCompanyProfile, Label: "Company Profile", Kind: KindText, Origin: OriginInput},
			{Key: model.FieldFleetAssessment, Label: "Fleet Assessment", Kind: KindText, Origin: OriginInput},
			{Key: model.FieldTrackingReasoning, Label: "Tracking Need Reasoning", Kind: KindText, Origin: OriginInput},
			{Key: model.FieldCallScriptOpener, Label: "Call Script Opener", Kind: KindText, Origin: OriginInput},
			{Key: model.FieldDataConfidence, Label: "Data Confidence", Kind: KindSelect, Origin: OriginInput, Values: model.Labels(model.Confidences)},
			{Key: model.FieldSourcesUsed, Label: "Sources Used", Kind: KindText, Origin: OriginInput},

			// Scoring
			{Key: model.FieldFleetLikelihood, Label: "Fleet Likelihood", Kind: KindNumber, Origin: OriginInput, Required: true, Integer: true, Min: bound(0), Max: bound(10), ScoringInput: true},
			{Key: model.FieldFleetSize, Label: "Est. Fleet Size", Kind: KindSelect, Origin: OriginInput, Required: true, Values: model.Labels(model.FleetSizes), ScoringInput: true},
			{Key: model.FieldTrackingNeed, Label: "Tracking Need Score", Kind: KindNumber, Origin: OriginInput, Required: true, Integer: true, Min: bound(0), Max: bound(10), ScoringInput: true},
			{Key: model.FieldCompositeScore, Label: "Composite Score", Kind: KindNumber, Origin: OriginDerived, Required: true, Min: bound(0), Max: bound(8)},
			{Key: model.FieldQualityGate, Label: "Quality Gate", Kind: KindSelect, Origin: OriginDerived, Required: true, Values: model.Labels(model.QualityGates)},

			// QA review
			{Key: model.FieldStatus, Label: "Status", Kind: KindSelect, Origin: OriginWorkflow, Required: true, Values: model.Labels(model.LeadStatuses)},
			{Key: model.FieldQAReviewDate, Label: "QA Review Date", Kind: KindDate, Origin: OriginWorkflow},
			{Key: model.FieldQANotes, Label: "QA Notes", Kind: KindText, Origin: OriginWorkflow},
			{Key: model.FieldRejectionReason, Label: "Rejection Reason", Kind: KindSelect, Origin: OriginWorkflow, Values: model.Labels(model.RejectionReasons)},

			// Pipeline tracking
			{Key: model.FieldDateFound, Label: "Date Found", Kind: KindDate, Origin: OriginSystem},
			{Key: model.FieldDateSent, Label: "Date Sent", Kind: KindDate, Origin: OriginWorkflow},
			{Key: model.FieldCallCentreFeedback, Label: "Call Centre Feedback", Kind: KindText, Origin: OriginWorkflow},
			{Key: model.FieldNotes, Label: "Notes", Kind: KindText, Origin: OriginWorkflow},

			// Relations
			{Key: model.FieldSource, Label: "Source", Kind: KindRelation, Origin: OriginInput, Required: true, Target: Sources},
			{Key: model.FieldBatch, Label: "Batch", Kind: KindRelation, Origin: OriginSystem, Required: true, Target: Batches},
		},
	}
}
