package handoff

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/lifecycle"
	"github.com/sells-group/leadgen-cli/internal/model"
)

// Feedback is one row of a call-centre outcome sheet.
type Feedback struct {
	Row     int
	LeadID  string
	Outcome model.LeadStatus
	Agent   string
	Notes   string
}

var feedbackColumns = []string{"lead id", "outcome", "agent", "notes"}

// ReadFeedback reads the first worksheet of an outcome sheet. The header
// row must name the columns Lead ID, Outcome and Agent; Notes is optional.
// Rows with an empty Lead ID are skipped.
func ReadFeedback(path string) ([]Feedback, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "handoff: open %s", path)
	}
	if len(f.Sheets) == 0 || len(f.Sheets[0].Rows) == 0 {
		return nil, eris.Errorf("handoff: %s has no rows", path)
	}
	rows := f.Sheets[0].Rows

	col := map[string]int{}
	for i, c := range rows[0].Cells {
		col[strings.ToLower(strings.TrimSpace(c.String()))] = i
	}
	for _, name := range feedbackColumns[:3] {
		if _, ok := col[name]; !ok {
			return nil, eris.Errorf("handoff: %s is missing the %q column", path, name)
		}
	}

	cell := func(r *xlsx.Row, name string) string {
		i, ok := col[name]
		if !ok || i >= len(r.Cells) {
			return ""
		}
		return strings.TrimSpace(r.Cells[i].String())
	}

	var out []Feedback
	for i, r := range rows[1:] {
		id := cell(r, "lead id")
		if id == "" {
			continue
		}
		out = append(out, Feedback{
			Row:     i + 2,
			LeadID:  id,
			Outcome: model.LeadStatus(cell(r, "outcome")),
			Agent:   cell(r, "agent"),
			Notes:   cell(r, "notes"),
		})
	}
	return out, nil
}

// ApplyFeedback records each outcome against its lead as a call-centre
// transition. A lead still at Sent to Call Centre is first marked
// Contacted when the outcome lies further along.
func (h *Handoff) ApplyFeedback(ctx context.Context, rows []Feedback) *Result {
	res := &Result{Moved: []string{}}
	for _, fb := range rows {
		if err := h.applyOne(ctx, fb); err != nil {
			res.Failed = append(res.Failed, Failure{LeadID: fb.LeadID, Error: err.Error()})
			continue
		}
		res.Moved = append(res.Moved, fb.LeadID)
	}
	zap.L().Info("handoff: feedback applied",
		zap.Int("rows", len(rows)),
		zap.Int("moved", len(res.Moved)),
		zap.Int("failed", len(res.Failed)),
	)
	return res
}

func (h *Handoff) applyOne(ctx context.Context, fb Feedback) error {
	if _, err := model.ParseLeadStatus(string(fb.Outcome)); err != nil {
		return eris.Wrapf(err, "handoff: row %d", fb.Row)
	}
	actor := lifecycle.Actor{Role: lifecycle.RoleCallCentre, ID: fb.Agent}

	l, err := h.repo.GetLead(ctx, fb.LeadID)
	if err != nil {
		return err
	}
	final := lifecycle.Request{To: fb.Outcome, Actor: actor, Notes: fb.Notes}
	if l.Status == model.StatusSentToCallCentre && fb.Outcome != model.StatusContacted {
		// Both hops must be legal before the first is written.
		if err := lifecycle.Check(model.StatusContacted, final); err != nil {
			return eris.Wrapf(err, "handoff: row %d", fb.Row)
		}
		if _, err := h.svc.Transition(ctx, fb.LeadID, lifecycle.Request{To: model.StatusContacted, Actor: actor}); err != nil {
			return err
		}
	}
	_, err = h.svc.Transition(ctx, fb.LeadID, final)
	return err
}
