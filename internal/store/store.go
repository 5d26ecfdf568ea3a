// Package store persists workspace records. The Store interface is the only
// boundary the core talks to; typed access to sources, batches and leads
// goes through Repository.
package store

import (
	"context"
	"maps"
	"regexp"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/schema"
)

// Record is one persisted row of a collection. Fields hold JSON-compatible
// values keyed by schema field key.
type Record struct {
	ID         string            `json:"id"`
	Collection schema.Collection `json:"collection"`
	Revision   int64             `json:"revision"`
	Fields     map[string]any    `json:"fields"`
}

// Filter is a conjunction of field equalities. An empty filter matches
// every record of the collection.
type Filter map[string]any

// Store is the workspace persistence boundary. Every update is
// compare-and-set on the record revision.
type Store interface {
	// CreateRecord inserts a record at revision 1 and returns its id.
	CreateRecord(ctx context.Context, c schema.Collection, fields map[string]any) (string, error)
	// UpdateRecord merges fields into the record if revision is current and
	// returns the new revision. A nil value clears a field. Fails with
	// model.ErrStaleWrite on a revision mismatch and model.ErrNotFound for
	// an unknown id.
	UpdateRecord(ctx context.Context, id string, revision int64, fields map[string]any) (int64, error)
	// GetRecord fails with model.ErrNotFound for an unknown id.
	GetRecord(ctx context.Context, id string) (*Record, error)
	// QueryRecords returns matching records in creation order.
	QueryRecords(ctx context.Context, c schema.Collection, filter Filter) ([]Record, error)

	Migrate(ctx context.Context) error
	Close() error
}

var fieldKeyRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func checkFieldKeys(fields map[string]any) error {
	for k := range fields {
		if !fieldKeyRe.MatchString(k) {
			return eris.Errorf("store: invalid field key %q", k)
		}
	}
	return nil
}

func checkCollection(c schema.Collection) error {
	if !slices.Contains(schema.Collections, c) {
		return eris.Errorf("store: unknown collection %q", c)
	}
	return nil
}

// matches reports whether every filter key equals the record field.
func matches(fields map[string]any, filter Filter) bool {
	for k, want := range filter {
		if !valuesEqual(fields[k], want) {
			return false
		}
	}
	return true
}

// merge applies a patch: nil values delete keys.
func merge(dst, patch map[string]any) {
	for k, v := range patch {
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
}

func cloneFields(in map[string]any) map[string]any {
	out := maps.Clone(in)
	if out == nil {
		out = make(map[string]any)
	}
	for k, v := range out {
		switch t := v.(type) {
		case []string:
			out[k] = slices.Clone(t)
		case []any:
			out[k] = slices.Clone(t)
		}
	}
	return out
}

func withoutNils(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
