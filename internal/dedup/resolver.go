// Package dedup classifies an incoming lead against the existing Lead
// collection as new, a duplicate, or an update of an existing record.
package dedup

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Key is one identity rule of the resolver policy.
type Key string

const (
	// KeyRegistration matches a non-empty CIPC registration number exactly.
	KeyRegistration Key = "registration"
	// KeyNameProvince matches the normalized company name plus province.
	KeyNameProvince Key = "name_province"
	// KeyWebsite matches the normalized website domain.
	KeyWebsite Key = "website"
)

// DefaultPolicy is the identity-key priority order used when none is
// configured.
var DefaultPolicy = []Key{KeyRegistration, KeyNameProvince}

// ParsePolicy converts configured key names into a policy.
func ParsePolicy(names []string) ([]Key, error) {
	if len(names) == 0 {
		return slices.Clone(DefaultPolicy), nil
	}
	policy := make([]Key, 0, len(names))
	for _, n := range names {
		k := Key(strings.TrimSpace(strings.ToLower(n)))
		switch k {
		case KeyRegistration, KeyNameProvince, KeyWebsite:
		default:
			return nil, eris.Errorf("dedup: unknown identity key %q", n)
		}
		if slices.Contains(policy, k) {
			return nil, eris.Errorf("dedup: identity key %q listed twice", n)
		}
		policy = append(policy, k)
	}
	return policy, nil
}

// Kind is the classification of a candidate.
type Kind int

const (
	New Kind = iota
	Duplicate
	Update
)

func (k Kind) String() string {
	switch k {
	case New:
		return "new"
	case Duplicate:
		return "duplicate"
	case Update:
		return "update"
	}
	return "unknown"
}

// Outcome is the resolver's verdict on one candidate.
type Outcome struct {
	Kind       Kind
	ExistingID string
	MatchedBy  Key
	// Changed lists the mergeable fields whose non-empty incoming value
	// differs from a non-empty existing value. Set only for Update.
	Changed []string
	// Candidates lists the matching lead ids when the match is ambiguous.
	Candidates []string
}

// Resolver indexes the Lead collection by every key of its policy. It is
// not safe for concurrent use; ingestion runs sequentially per batch so
// that leads added earlier in a payload are visible to later ones.
type Resolver struct {
	policy []Key
	byID   map[string]*model.Lead
	index  map[Key]map[string][]string
}

// NewResolver builds a resolver over existing. Leads already marked
// Duplicate are not indexed.
func NewResolver(policy []Key, existing []*model.Lead) *Resolver {
	if len(policy) == 0 {
		policy = DefaultPolicy
	}
	r := &Resolver{
		policy: policy,
		byID:   make(map[string]*model.Lead, len(existing)),
		index:  make(map[Key]map[string][]string, len(policy)),
	}
	for _, k := range policy {
		r.index[k] = make(map[string][]string)
	}
	for _, l := range existing {
		r.Put(l)
	}
	return r
}

// Len returns the number of indexed leads.
func (r *Resolver) Len() int { return len(r.byID) }

// Put adds or replaces a lead in the index.
func (r *Resolver) Put(l *model.Lead) {
	if l == nil || l.ID == "" || l.Status == model.StatusDuplicate {
		return
	}
	if old, ok := r.byID[l.ID]; ok {
		r.unindex(old)
	}
	r.byID[l.ID] = l
	for _, k := range r.policy {
		if v := keyValue(k, l); v != "" {
			r.index[k][v] = append(r.index[k][v], l.ID)
		}
	}
}

// Get returns an indexed lead by id.
func (r *Resolver) Get(id string) (*model.Lead, bool) {
	l, ok := r.byID[id]
	return l, ok
}

func (r *Resolver) unindex(l *model.Lead) {
	for _, k := range r.policy {
		v := keyValue(k, l)
		if v == "" {
			continue
		}
		ids := slices.DeleteFunc(r.index[k][v], func(id string) bool { return id == l.ID })
		if len(ids) == 0 {
			delete(r.index[k], v)
		} else {
			r.index[k][v] = ids
		}
	}
}

// Resolve classifies cand. Keys are tried in policy order and the first key
// with any match decides. More than one match on that key fails with
// model.ErrAmbiguousDuplicate.
func (r *Resolver) Resolve(cand *model.Lead) (Outcome, error) {
	for _, k := range r.policy {
		v := keyValue(k, cand)
		if v == "" {
			continue
		}
		matches := r.compatible(cand, r.index[k][v])
		switch len(matches) {
		case 0:
			continue
		case 1:
			return r.compare(cand, matches[0], k), nil
		default:
			return Outcome{MatchedBy: k, Candidates: matches}, eris.Wrapf(model.ErrAmbiguousDuplicate,
				"dedup: %q matches %d leads by %s: %s",
				cand.CompanyName, len(matches), k, strings.Join(matches, ", "))
		}
	}
	return Outcome{Kind: New}, nil
}

// compatible drops matches whose registration number contradicts the
// candidate's. Two different registration numbers are two companies even
// when the names coincide.
func (r *Resolver) compatible(cand *model.Lead, ids []string) []string {
	reg := NormalizeRegistration(cand.CIPCReg)
	var out []string
	for _, id := range ids {
		other := NormalizeRegistration(r.byID[id].CIPCReg)
		if reg != "" && other != "" && reg != other {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (r *Resolver) compare(cand *model.Lead, id string, by Key) Outcome {
	existing := r.byID[id]
	changed := ChangedFields(existing, cand)
	if len(changed) == 0 {
		zap.L().Debug("dedup: duplicate",
			zap.String("company", cand.CompanyName),
			zap.String("existing_id", id),
			zap.String("matched_by", string(by)),
		)
		return Outcome{Kind: Duplicate, ExistingID: id, MatchedBy: by}
	}
	zap.L().Debug("dedup: update",
		zap.String("company", cand.CompanyName),
		zap.String("existing_id", id),
		zap.Strings("changed", changed),
	)
	return Outcome{Kind: Update, ExistingID: id, MatchedBy: by, Changed: changed}
}

// ChangedFields lists the mergeable fields where incoming carries a
// non-empty value that differs from a non-empty existing value. Identity
// fields are compared in normalised form. Workflow fields are never compared.
func ChangedFields(existing, incoming *model.Lead) []string {
	var changed []string
	for _, key := range model.MergeableFields {
		in := comparisonValue(key, incoming.FieldValue(key))
		cur := comparisonValue(key, existing.FieldValue(key))
		if in == "" || cur == "" || in == cur {
			continue
		}
		changed = append(changed, key)
	}
	return changed
}

func comparisonValue(key, v string) string {
	switch key {
	case model.FieldCompanyName:
		return NormalizeName(v)
	case model.FieldCIPCReg:
		return NormalizeRegistration(v)
	case model.FieldWebsite:
		if d := NormalizeDomain(v); d != "" {
			return d
		}
	}
	return strings.TrimSpace(v)
}

func keyValue(k Key, l *model.Lead) string {
	switch k {
	case KeyRegistration:
		return NormalizeRegistration(l.CIPCReg)
	case KeyNameProvince:
		name := NormalizeName(l.CompanyName)
		if name == "" || l.Province == "" {
			return ""
		}
		return name + "|" + string(l.Province)
	case KeyWebsite:
		return NormalizeDomain(l.Website)
	}
	return ""
}
