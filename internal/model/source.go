package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Source is a named origin from which leads are collected. Sources are never
// hard-deleted; retire one by setting Status to SourceDeprecated.
type Source struct {
	ID          string       `json:"id"`
	Revision    int64        `json:"revision"`
	Name        string       `json:"name"`
	Type        SourceType   `json:"type"`
	URL         string       `json:"url,omitempty"`
	Compliance  Compliance   `json:"compliance"`
	Status      SourceStatus `json:"status"`
	LastCrawled *time.Time   `json:"last_crawled,omitempty"`
	Notes       string       `json:"notes,omitempty"`
}

// CheckReferenceable returns ErrUnknownSourceReference when a new lead may
// not point at this source.
func (s *Source) CheckReferenceable() error {
	if s == nil {
		return eris.Wrap(ErrUnknownSourceReference, "source does not exist")
	}
	if s.Compliance == ComplianceBlocked {
		return eris.Wrapf(ErrUnknownSourceReference, "source %q is blocked", s.Name)
	}
	return nil
}

// DefaultSources is the initial set of lead origins seeded into a new
// workspace.
func DefaultSources() []Source {
	return []Source{
		{
			Name:       "CIPC Registrations",
			Type:       SourceGovernmentRegister,
			URL:        "https://eservices.cipc.co.za",
			Compliance: ComplianceCompliant,
			Status:     SourceActive,
		},
		{
			Name:       "eTenders Portal",
			Type:       SourceTenderPortal,
			URL:        "https://www.etenders.gov.za",
			Compliance: ComplianceCompliant,
			Status:     SourceActive,
		},
		{
			Name:       "Yellow Pages SA",
			Type:       SourceBusinessDirectory,
			URL:        "https://www.yellowpages.co.za",
			Compliance: ComplianceCompliant,
			Status:     SourceActive,
		},
		{
			Name:       "LinkedIn Company Pages",
			Type:       SourceSocialMedia,
			URL:        "https://www.linkedin.com",
			Compliance: ComplianceCaution,
			Status:     SourceActive,
			Notes:      "Public company pages only. Never scrape personal profiles.",
		},
		{
			Name:       "SAPS Crime Stats",
			Type:       SourceCrimeStats,
			URL:        "https://www.saps.gov.za/services/crimestats.php",
			Compliance: ComplianceCompliant,
			Status:     SourceActive,
			Notes:      "Vehicle theft hotspot data by area. Used for scoring, not lead sourcing.",
		},
		{
			Name:       "Road Freight Association",
			Type:       SourceBusinessDirectory,
			URL:        "https://www.rfa.co.za",
			Compliance: ComplianceCompliant,
			Status:     SourceActive,
			Notes:      "Member directory: transport and logistics companies.",
		},
	}
}
