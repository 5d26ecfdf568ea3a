// Package handoff moves QA-approved leads to the call centre as an XLSX
// call sheet and reads the call centre's outcome sheet back.
package handoff

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/lifecycle"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// SheetName is the worksheet written by Export.
const SheetName = "Call Sheet"

var callSheetHeader = []string{
	"Lead ID", "Company Name", "Public Contact", "Province", "City / Area",
	"Website", "Composite Score", "Quality Gate", "Call Script Opener",
	"Prospect Summary",
}

// Failure is a lead that could not be moved.
type Failure struct {
	LeadID  string `json:"lead_id"`
	Company string `json:"company_name,omitempty"`
	Error   string `json:"error"`
}

// Result reports what a handoff run did.
type Result struct {
	Path     string    `json:"path,omitempty"`
	Exported int       `json:"exported"`
	Moved    []string  `json:"moved"`
	Failed   []Failure `json:"failed,omitempty"`
}

// Handoff runs call-centre handoffs over a repository.
type Handoff struct {
	repo *store.Repository
	svc  *lifecycle.Service
}

// New returns a Handoff.
func New(repo *store.Repository, svc *lifecycle.Service) *Handoff {
	return &Handoff{repo: repo, svc: svc}
}

// Export writes every QA Approved lead to an XLSX call sheet at path,
// highest composite first, then moves each to Sent to Call Centre as
// actor. Leads that fail to move stay on the sheet and are reported in
// Result.Failed.
func (h *Handoff) Export(ctx context.Context, path string, actor lifecycle.Actor) (*Result, error) {
	leads, err := h.repo.ListLeads(ctx, store.Filter{model.FieldStatus: string(model.StatusQAApproved)})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(leads, func(a, b *model.Lead) int {
		switch {
		case a.CompositeScore > b.CompositeScore:
			return -1
		case a.CompositeScore < b.CompositeScore:
			return 1
		}
		return 0
	})

	if err := writeCallSheet(path, leads); err != nil {
		return nil, err
	}

	res := &Result{Path: path, Exported: len(leads), Moved: []string{}}
	for _, l := range leads {
		_, err := h.svc.Transition(ctx, l.ID, lifecycle.Request{
			To:    model.StatusSentToCallCentre,
			Actor: actor,
		})
		if err != nil {
			res.Failed = append(res.Failed, Failure{LeadID: l.ID, Company: l.CompanyName, Error: err.Error()})
			continue
		}
		res.Moved = append(res.Moved, l.ID)
	}

	zap.L().Info("handoff: call sheet exported",
		zap.String("path", path),
		zap.Int("exported", res.Exported),
		zap.Int("moved", len(res.Moved)),
		zap.Int("failed", len(res.Failed)),
	)
	return res, nil
}

func writeCallSheet(path string, leads []*model.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "handoff: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range callSheetHeader {
		header.AddCell().SetString(h)
	}
	for _, l := range leads {
		row := sheet.AddRow()
		for _, v := range []string{
			l.ID, l.CompanyName, l.Contact, string(l.Province), l.City, l.Website,
		} {
			row.AddCell().SetString(v)
		}
		row.AddCell().SetFloat(l.CompositeScore)
		for _, v := range []string{string(l.QualityGate), l.CallScriptOpener, l.ProspectSummary} {
			row.AddCell().SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "handoff: save %s", path)
	}
	return nil
}
