package model

import (
	"regexp"
	"time"

	"github.com/rotisserie/eris"
)

var batchIDRe = regexp.MustCompile(`^BATCH-(\d{4}-\d{2}-\d{2})-([A-Za-z0-9_-]+)$`)

// Batch is one ingestion run.
type Batch struct {
	ID              string      `json:"id"`
	Revision        int64       `json:"revision"`
	BatchID         string      `json:"batch_id"`
	RunDate         time.Time   `json:"run_date"`
	Status          BatchStatus `json:"status"`
	LeadsFound      int         `json:"leads_found"`
	LeadsAfterDedup int         `json:"leads_after_dedup"`
	SourcesCrawled  []string    `json:"sources_crawled,omitempty"`
	Errors          []string    `json:"errors,omitempty"`
	APICost         float64     `json:"api_cost_usd"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
}

// ParseBatchID validates the BATCH-<YYYY-MM-DD>-<suffix> format and returns
// the run date it encodes.
func ParseBatchID(id string) (time.Time, error) {
	m := batchIDRe.FindStringSubmatch(id)
	if m == nil {
		return time.Time{}, eris.Wrapf(ErrSchemaValidation, "batch_id: %q does not match BATCH-<YYYY-MM-DD>-<suffix>", id)
	}
	date, err := time.Parse(time.DateOnly, m[1])
	if err != nil {
		return time.Time{}, eris.Wrapf(ErrSchemaValidation, "batch_id: invalid date %q", m[1])
	}
	return date, nil
}

// Validate checks the batch counters.
func (b *Batch) Validate() error {
	if b.LeadsFound < 0 || b.LeadsAfterDedup < 0 {
		return eris.Wrap(ErrSchemaValidation, "batch: counters must be non-negative")
	}
	if b.LeadsAfterDedup > b.LeadsFound {
		return eris.Wrapf(ErrSchemaValidation, "batch: leads_after_dedup %d exceeds leads_found %d",
			b.LeadsAfterDedup, b.LeadsFound)
	}
	return nil
}

// FinalStatus derives the terminal status of a run from its outcome counts.
// A run with no errors is Completed even if every lead was a duplicate.
func FinalStatus(succeeded, failed int) BatchStatus {
	switch {
	case failed == 0:
		return BatchCompleted
	case succeeded > 0:
		return BatchPartial
	default:
		return BatchFailed
	}
}
