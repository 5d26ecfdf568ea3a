package model

import (
	"slices"

	"github.com/rotisserie/eris"
)

// Industry is the closed set of industries a lead can be filed under.
type Industry string

const (
	IndustryTransport    Industry = "Transport & Logistics"
	IndustryConstruction Industry = "Construction"
	IndustryAgriculture  Industry = "Agriculture"
	IndustryFood         Industry = "Food & Catering"
	IndustryMining       Industry = "Mining"
	IndustryRental       Industry = "Rental Services"
	IndustryMedical      Industry = "Medical/Pharma"
	IndustryGovernment   Industry = "Government"
	IndustryRetail       Industry = "Retail & Distribution"
	IndustryServices     Industry = "Services"
	IndustryOther        Industry = "Other"
)

// Industries lists every Industry in display order.
var Industries = []Industry{
	IndustryTransport, IndustryConstruction, IndustryAgriculture, IndustryFood,
	IndustryMining, IndustryRental, IndustryMedical, IndustryGovernment,
	IndustryRetail, IndustryServices, IndustryOther,
}

// Segment distinguishes business from consumer prospects.
type Segment string

const (
	SegmentB2B Segment = "B2B"
	SegmentB2C Segment = "B2C"
)

// Segments lists every Segment.
var Segments = []Segment{SegmentB2B, SegmentB2C}

// Province is one of the nine South African provinces.
type Province string

const (
	ProvinceGauteng      Province = "Gauteng"
	ProvinceWesternCape  Province = "Western Cape"
	ProvinceKwaZuluNatal Province = "KwaZulu-Natal"
	ProvinceEasternCape  Province = "Eastern Cape"
	ProvinceFreeState    Province = "Free State"
	ProvinceLimpopo      Province = "Limpopo"
	ProvinceMpumalanga   Province = "Mpumalanga"
	ProvinceNorthWest    Province = "North West"
	ProvinceNorthernCape Province = "Northern Cape"
)

// Provinces lists every Province.
var Provinces = []Province{
	ProvinceGauteng, ProvinceWesternCape, ProvinceKwaZuluNatal, ProvinceEasternCape,
	ProvinceFreeState, ProvinceLimpopo, ProvinceMpumalanga, ProvinceNorthWest,
	ProvinceNorthernCape,
}

// Confidence is the data-confidence rating attached to a generated profile.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Confidences lists every Confidence.
var Confidences = []Confidence{ConfidenceHigh, ConfidenceMedium, ConfidenceLow}

// FleetSize is the estimated fleet-size bucket.
type FleetSize string

const (
	FleetSizeSmall   FleetSize = "Small (1-5)"
	FleetSizeMedium  FleetSize = "Medium (6-20)"
	FleetSizeLarge   FleetSize = "Large (20+)"
	FleetSizeUnknown FleetSize = "Unknown"
)

// FleetSizes lists every FleetSize.
var FleetSizes = []FleetSize{FleetSizeSmall, FleetSizeMedium, FleetSizeLarge, FleetSizeUnknown}

// LeadStatus is a state in the lead lifecycle.
type LeadStatus string

const (
	StatusPendingQA        LeadStatus = "Pending QA"
	StatusQAApproved       LeadStatus = "QA Approved"
	StatusQARejected       LeadStatus = "QA Rejected"
	StatusSentToCallCentre LeadStatus = "Sent to Call Centre"
	StatusContacted        LeadStatus = "Contacted"
	StatusInterested       LeadStatus = "Interested"
	StatusConverted        LeadStatus = "Converted"
	StatusNotInterested    LeadStatus = "Not Interested"
	StatusDuplicate        LeadStatus = "Duplicate"
)

// LeadStatuses lists every LeadStatus in pipeline order.
var LeadStatuses = []LeadStatus{
	StatusPendingQA, StatusQAApproved, StatusQARejected, StatusSentToCallCentre,
	StatusContacted, StatusInterested, StatusConverted, StatusNotInterested,
	StatusDuplicate,
}

// RejectionReason explains a QA rejection.
type RejectionReason string

const (
	RejectIncomplete       RejectionReason = "Incomplete profile"
	RejectAlreadyCustomer  RejectionReason = "Already a customer"
	RejectIrrelevant       RejectionReason = "Not relevant industry"
	RejectTooSmall         RejectionReason = "Too small"
	RejectOutOfServiceArea RejectionReason = "Out of service area"
	RejectPoorData         RejectionReason = "Poor data quality"
	RejectOther            RejectionReason = "Other"
)

// RejectionReasons lists every RejectionReason.
var RejectionReasons = []RejectionReason{
	RejectIncomplete, RejectAlreadyCustomer, RejectIrrelevant, RejectTooSmall,
	RejectOutOfServiceArea, RejectPoorData, RejectOther,
}

// QualityGate is the advisory three-tier classification of a composite score.
type QualityGate string

const (
	GateAutoApprove QualityGate = "Auto-Approve"
	GateReview      QualityGate = "Review"
	GateAutoReject  QualityGate = "Auto-Reject"
)

// QualityGates lists every QualityGate.
var QualityGates = []QualityGate{GateAutoApprove, GateReview, GateAutoReject}

// SourceType classifies where a Source's data comes from.
type SourceType string

const (
	SourceGovernmentRegister SourceType = "Government Register"
	SourceTenderPortal       SourceType = "Tender Portal"
	SourceBusinessDirectory  SourceType = "Business Directory"
	SourceSocialMedia        SourceType = "Social Media"
	SourceCrimeStats         SourceType = "Crime Stats"
	SourceOther              SourceType = "Other"
)

// SourceTypes lists every SourceType.
var SourceTypes = []SourceType{
	SourceGovernmentRegister, SourceTenderPortal, SourceBusinessDirectory,
	SourceSocialMedia, SourceCrimeStats, SourceOther,
}

// Compliance is a Source's POPIA compliance status.
type Compliance string

const (
	ComplianceCompliant Compliance = "Compliant"
	ComplianceCaution   Compliance = "Caution Required"
	ComplianceBlocked   Compliance = "Blocked"
)

// Compliances lists every Compliance.
var Compliances = []Compliance{ComplianceCompliant, ComplianceCaution, ComplianceBlocked}

// SourceStatus is the operational status of a Source.
type SourceStatus string

const (
	SourceActive     SourceStatus = "Active"
	SourcePaused     SourceStatus = "Paused"
	SourceBroken     SourceStatus = "Broken"
	SourceDeprecated SourceStatus = "Deprecated"
)

// SourceStatuses lists every SourceStatus.
var SourceStatuses = []SourceStatus{SourceActive, SourcePaused, SourceBroken, SourceDeprecated}

// BatchStatus is the state of an ingestion run.
type BatchStatus string

const (
	BatchRunning   BatchStatus = "Running"
	BatchCompleted BatchStatus = "Completed"
	BatchPartial   BatchStatus = "Partial"
	BatchFailed    BatchStatus = "Failed"
)

// BatchStatuses lists every BatchStatus.
var BatchStatuses = []BatchStatus{BatchRunning, BatchCompleted, BatchPartial, BatchFailed}

// Terminal reports whether the batch has finished processing.
func (s BatchStatus) Terminal() bool {
	return s != BatchRunning
}

func parseEnum[T ~string](kind, raw string, values []T) (T, error) {
	v := T(raw)
	if slices.Contains(values, v) {
		return v, nil
	}
	var zero T
	return zero, eris.Wrapf(ErrSchemaValidation, "%s: %q is not a recognised value", kind, raw)
}

// ParseIndustry validates s against the closed Industry set.
func ParseIndustry(s string) (Industry, error) { return parseEnum("industry", s, Industries) }

// ParseSegment validates s against the closed Segment set.
func ParseSegment(s string) (Segment, error) { return parseEnum("segment", s, Segments) }

// ParseProvince validates s against the closed Province set.
func ParseProvince(s string) (Province, error) { return parseEnum("province", s, Provinces) }

// ParseConfidence validates s against the closed Confidence set.
func ParseConfidence(s string) (Confidence, error) {
	return parseEnum("data_confidence", s, Confidences)
}

// ParseFleetSize validates s against the closed FleetSize set.
func ParseFleetSize(s string) (FleetSize, error) { return parseEnum("fleet_size", s, FleetSizes) }

// ParseLeadStatus validates s against the closed LeadStatus set.
func ParseLeadStatus(s string) (LeadStatus, error) { return parseEnum("status", s, LeadStatuses) }

// ParseRejectionReason validates s against the closed RejectionReason set.
func ParseRejectionReason(s string) (RejectionReason, error) {
	return parseEnum("rejection_reason", s, RejectionReasons)
}

// ParseQualityGate validates s against the closed QualityGate set.
func ParseQualityGate(s string) (QualityGate, error) {
	return parseEnum("quality_gate", s, QualityGates)
}

// ParseSourceType validates s against the closed SourceType set.
func ParseSourceType(s string) (SourceType, error) { return parseEnum("source_type", s, SourceTypes) }

// ParseCompliance validates s against the closed Compliance set.
func ParseCompliance(s string) (Compliance, error) { return parseEnum("compliance", s, Compliances) }

// ParseSourceStatus validates s against the closed SourceStatus set.
func ParseSourceStatus(s string) (SourceStatus, error) {
	return parseEnum("source_status", s, SourceStatuses)
}

// ParseBatchStatus validates s against the closed BatchStatus set.
func ParseBatchStatus(s string) (BatchStatus, error) {
	return parseEnum("batch_status", s, BatchStatuses)
}

// Labels returns the string form of a closed value set.
func Labels[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
