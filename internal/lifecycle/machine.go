// Package lifecycle is the lead status state machine. Apply validates a
// requested transition and stamps its side effects on the lead; Service
// loads, applies and persists it under optimistic concurrency.
package lifecycle

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Role identifies who is acting on a lead.
type Role string

const (
	RoleIngestion  Role = "ingestion"
	RoleQA         Role = "qa"
	RoleCallCentre Role = "call_centre"
)

// Roles lists every Role.
var Roles = []Role{RoleIngestion, RoleQA, RoleCallCentre}

// ParseRole maps a role name to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Roles, r) {
		return "", eris.Errorf("lifecycle: unknown role %q", s)
	}
	return r, nil
}

// Actor is the identified party behind a transition.
type Actor struct {
	Role Role   `json:"role"`
	ID   string `json:"id"`
}

func (a Actor) String() string { return string(a.Role) + ":" + a.ID }

func (a Actor) validate() error {
	if strings.TrimSpace(a.ID) == "" || !slices.Contains(Roles, a.Role) {
		return eris.Wrapf(model.ErrIllegalTransition, "lifecycle: actor %q is not identified", a.String())
	}
	return nil
}

// Request asks for a lead to move to a new status.
type Request struct {
	To              model.LeadStatus      `json:"to"`
	Actor           Actor                 `json:"actor"`
	RejectionReason model.RejectionReason `json:"rejection_reason,omitempty"`
	// Notes become QA notes on QA decisions and are appended to the
	// call-centre feedback on call-centre transitions.
	Notes string `json:"notes,omitempty"`
}

// transitions maps each non-terminal status to its successors and the roles
// allowed to move a lead there.
var transitions = map[model.LeadStatus]map[model.LeadStatus][]Role{
	model.StatusPendingQA: {
		model.StatusQAApproved: {RoleQA},
		model.StatusQARejected: {RoleQA},
		model.StatusDuplicate:  {RoleQA, RoleIngestion},
	},
	model.StatusQAApproved: {
		model.StatusSentToCallCentre: {RoleQA},
	},
	model.StatusSentToCallCentre: {
		model.StatusContacted: {RoleCallCentre},
	},
	model.StatusContacted: {
		model.StatusInterested:    {RoleCallCentre},
		model.StatusNotInterested: {RoleCallCentre},
	},
	model.StatusInterested: {
		model.StatusConverted:     {RoleCallCentre},
		model.StatusNotInterested: {RoleCallCentre},
	},
}

// Initial is the status every new lead enters at, whatever its quality gate.
func Initial() model.LeadStatus { return model.StatusPendingQA }

// Terminal reports whether no transition leaves s.
func Terminal(s model.LeadStatus) bool {
	switch s {
	case model.StatusConverted, model.StatusNotInterested, model.StatusDuplicate, model.StatusQARejected:
		return true
	}
	return false
}

// Next lists the statuses reachable from s, in pipeline order.
func Next(s model.LeadStatus) []model.LeadStatus {
	var out []model.LeadStatus
	for _, to := range model.LeadStatuses {
		if _, ok := transitions[s][to]; ok {
			out = append(out, to)
		}
	}
	return out
}

// Check validates req against a lead currently in status from.
func Check(from model.LeadStatus, req Request) error {
	if err := req.Actor.validate(); err != nil {
		return err
	}
	if Terminal(from) {
		return eris.Wrapf(model.ErrIllegalTransition, "lifecycle: %q is terminal", from)
	}
	roles, ok := transitions[from][req.To]
	if !ok {
		return eris.Wrapf(model.ErrIllegalTransition, "lifecycle: %q -> %q is not allowed", from, req.To)
	}
	if !slices.Contains(roles, req.Actor.Role) {
		return eris.Wrapf(model.ErrIllegalTransition, "lifecycle: role %s may not move a lead to %q", req.Actor.Role, req.To)
	}
	if req.To == model.StatusQARejected {
		if req.RejectionReason == "" {
			return eris.Wrap(model.ErrIllegalTransition, "lifecycle: rejection requires a reason")
		}
		if _, err := model.ParseRejectionReason(string(req.RejectionReason)); err != nil {
			return eris.Wrapf(model.ErrIllegalTransition, "lifecycle: %v", err)
		}
	}
	return nil
}

// Apply moves l to req.To, stamping the transition's side effects, and
// returns the keys of the fields it changed. On error l is unchanged.
func Apply(l *model.Lead, req Request, now time.Time) ([]string, error) {
	if err := Check(l.Status, req); err != nil {
		return nil, err
	}

	now = now.UTC()
	keys := []string{model.FieldStatus}
	l.Status = req.To

	switch req.To {
	case model.StatusQAApproved, model.StatusQARejected, model.StatusDuplicate:
		if req.Actor.Role == RoleQA {
			l.QAReviewDate = &now
			keys = append(keys, model.FieldQAReviewDate)
			if req.Notes != "" {
				l.QANotes = req.Notes
				keys = append(keys, model.FieldQANotes)
			}
		}
		if req.To == model.StatusQARejected {
			l.RejectionReason = req.RejectionReason
			keys = append(keys, model.FieldRejectionReason)
		}
	case model.StatusSentToCallCentre:
		l.DateSent = &now
		keys = append(keys, model.FieldDateSent)
	case model.StatusContacted, model.StatusInterested, model.StatusNotInterested, model.StatusConverted:
		if req.Notes != "" {
			entry := fmt.Sprintf("%s %s (%s): %s", now.Format(time.DateOnly), req.To, req.Actor.ID, req.Notes)
			if l.CallCentreFeedback != "" {
				entry = l.CallCentreFeedback + "\n" + entry
			}
			l.CallCentreFeedback = entry
			keys = append(keys, model.FieldCallCentreFeedback)
		}
	}
	return keys, nil
}
