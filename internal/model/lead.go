package model

import (
	"strconv"
	"time"
)

// Lead field keys. These double as the ingestion wire names and the keys of
// workspace records.
const (
	FieldCompanyName        = "company_name"
	FieldCIPCReg            = "cipc_reg"
	FieldIndustry           = "industry"
	FieldSegment            = "segment"
	FieldProvince           = "province"
	FieldCity               = "city"
	FieldWebsite            = "website"
	FieldLinkedIn           = "linkedin"
	FieldContact            = "contact"
	FieldProspectSummary    = "prospect_summary"
	FieldCompanyProfile     = "company_profile"
	FieldFleetAssessment    = "fleet_assessment"
	FieldTrackingReasoning  = "tracking_reasoning"
	FieldCallScriptOpener   = "call_script_opener"
	FieldDataConfidence     = "data_confidence"
	FieldSourcesUsed        = "sources_used"
	FieldFleetLikelihood    = "fleet_likelihood"
	FieldFleetSize          = "fleet_size"
	FieldTrackingNeed       = "tracking_need"
	FieldCompositeScore     = "composite_score"
	FieldQualityGate        = "quality_gate"
	FieldStatus             = "status"
	FieldQAReviewDate       = "qa_review_date"
	FieldQANotes            = "qa_notes"
	FieldRejectionReason    = "rejection_reason"
	FieldDateFound          = "date_found"
	FieldDateSent           = "date_sent"
	FieldCallCentreFeedback = "call_centre_feedback"
	FieldNotes              = "notes"
	FieldSource             = "source"
	FieldBatch              = "batch"
)

// MergeableFields are the identity, profile and scoring-input fields that
// re-ingestion may refresh on an existing lead.
var MergeableFields = []string{
	FieldCompanyName, FieldCIPCReg, FieldIndustry, FieldSegment, FieldProvince,
	FieldCity, FieldWebsite, FieldLinkedIn, FieldContact,
	FieldProspectSummary, FieldCompanyProfile, FieldFleetAssessment,
	FieldTrackingReasoning, FieldCallScriptOpener, FieldDataConfidence,
	FieldSourcesUsed, FieldFleetLikelihood, FieldFleetSize, FieldTrackingNeed,
}

// WorkflowFields are owned by the QA and call-centre workflow. Re-ingestion
// never writes them.
var WorkflowFields = []string{
	FieldStatus, FieldQAReviewDate, FieldQANotes, FieldRejectionReason,
	FieldDateSent, FieldCallCentreFeedback, FieldNotes,
}

// Lead is a prospect moving through QA toward call-centre handoff.
type Lead struct {
	ID       string `json:"id"`
	Revision int64  `json:"revision"`

	// Identity
	CompanyName string   `json:"company_name"`
	CIPCReg     string   `json:"cipc_reg,omitempty"`
	Industry    Industry `json:"industry,omitempty"`
	Segment     Segment  `json:"segment,omitempty"`
	Province    Province `json:"province,omitempty"`
	City        string   `json:"city,omitempty"`
	Website     string   `json:"website,omitempty"`
	LinkedIn    string   `json:"linkedin,omitempty"`
	Contact     string   `json:"contact,omitempty"`

	// Profile
	ProspectSummary   string     `json:"prospect_summary,omitempty"`
	CompanyProfile    string     `json:"company_profile,omitempty"`
	FleetAssessment   string     `json:"fleet_assessment,omitempty"`
	TrackingReasoning string     `json:"tracking_reasoning,omitempty"`
	CallScriptOpener  string     `json:"call_script_opener,omitempty"`
	DataConfidence    Confidence `json:"data_confidence,omitempty"`
	SourcesUsed       string     `json:"sources_used,omitempty"`

	// Scoring inputs
	FleetLikelihood int       `json:"fleet_likelihood"`
	FleetSize       FleetSize `json:"fleet_size"`
	TrackingNeed    int       `json:"tracking_need"`

	// Derived; written only by the scoring engine.
	CompositeScore float64     `json:"composite_score"`
	QualityGate    QualityGate `json:"quality_gate"`

	// Workflow
	Status             LeadStatus      `json:"status"`
	QAReviewDate       *time.Time      `json:"qa_review_date,omitempty"`
	QANotes            string          `json:"qa_notes,omitempty"`
	RejectionReason    RejectionReason `json:"rejection_reason,omitempty"`
	DateFound          *time.Time      `json:"date_found,omitempty"`
	DateSent           *time.Time      `json:"date_sent,omitempty"`
	CallCentreFeedback string          `json:"call_centre_feedback,omitempty"`
	Notes              string          `json:"notes,omitempty"`

	// Relations, by record id.
	SourceID string `json:"source_id"`
	BatchID  string `json:"batch_id"`
}

// FieldValue returns the string form of a mergeable field. Empty means the
// field carries no value; numeric scoring inputs are never empty.
func (l *Lead) FieldValue(key string) string {
	switch key {
	case FieldCompanyName:
		return l.CompanyName
	case FieldCIPCReg:
		return l.CIPCReg
	case FieldIndustry:
		return string(l.Industry)
	case FieldSegment:
		return string(l.Segment)
	case FieldProvince:
		return string(l.Province)
	case FieldCity:
		return l.City
	case FieldWebsite:
		return l.Website
	case FieldLinkedIn:
		return l.LinkedIn
	case FieldContact:
		return l.Contact
	case FieldProspectSummary:
		return l.ProspectSummary
	case FieldCompanyProfile:
		return l.CompanyProfile
	case FieldFleetAssessment:
		return l.FleetAssessment
	case FieldTrackingReasoning:
		return l.TrackingReasoning
	case FieldCallScriptOpener:
		return l.CallScriptOpener
	case FieldDataConfidence:
		return string(l.DataConfidence)
	case FieldSourcesUsed:
		return l.SourcesUsed
	case FieldFleetLikelihood:
		return strconv.Itoa(l.FleetLikelihood)
	case FieldFleetSize:
		return string(l.FleetSize)
	case FieldTrackingNeed:
		return strconv.Itoa(l.TrackingNeed)
	}
	return ""
}

// CopyField copies one mergeable field from src. Unknown keys are ignored.
func (l *Lead) CopyField(src *Lead, key string) {
	switch key {
	case FieldCompanyName:
		l.CompanyName = src.CompanyName
	case FieldCIPCReg:
		l.CIPCReg = src.CIPCReg
	case FieldIndustry:
		l.Industry = src.Industry
	case FieldSegment:
		l.Segment = src.Segment
	case FieldProvince:
		l.Province = src.Province
	case FieldCity:
		l.City = src.City
	case FieldWebsite:
		l.Website = src.Website
	case FieldLinkedIn:
		l.LinkedIn = src.LinkedIn
	case FieldContact:
		l.Contact = src.Contact
	case FieldProspectSummary:
		l.ProspectSummary = src.ProspectSummary
	case FieldCompanyProfile:
		l.CompanyProfile = src.CompanyProfile
	case FieldFleetAssessment:
		l.FleetAssessment = src.FleetAssessment
	case FieldTrackingReasoning:
		l.TrackingReasoning = src.TrackingReasoning
	case FieldCallScriptOpener:
		l.CallScriptOpener = src.CallScriptOpener
	case FieldDataConfidence:
		l.DataConfidence = src.DataConfidence
	case FieldSourcesUsed:
		l.SourcesUsed = src.SourcesUsed
	case FieldFleetLikelihood:
		l.FleetLikelihood = src.FleetLikelihood
	case FieldFleetSize:
		l.FleetSize = src.FleetSize
	case FieldTrackingNeed:
		l.TrackingNeed = src.TrackingNeed
	}
}

// IsScoringInput reports whether key feeds the composite score.
func IsScoringInput(key string) bool {
	return key == FieldFleetLikelihood || key == FieldTrackingNeed || key == FieldFleetSize
}
