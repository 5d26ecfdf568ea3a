// Package schema is the static, versioned definition of the Sources, Batches
// and Leads collections: field keys, workspace labels, value domains and
// whether a field is required.
package schema

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Version identifies the schema revision. Bump it, never edit a published
// definition in place: persisted records were validated against the old
// enum membership.
const Version = "2.1"

// Collection names a record collection in the workspace store.
type Collection string

const (
	Sources Collection = "sources"
	Batches Collection = "batches"
	Leads   Collection = "leads"
)

// Collections lists collections in dependency order (referenced first).
var Collections = []Collection{Sources, Batches, Leads}

// Kind is the value domain of a field.
type Kind string

const (
	KindTitle    Kind = "title"
	KindText     Kind = "text"
	KindSelect   Kind = "select"
	KindNumber   Kind = "number"
	KindMoney    Kind = "money"
	KindURL      Kind = "url"
	KindDate     Kind = "date"
	KindList     Kind = "list"
	KindRelation Kind = "relation"
)

// Origin records which component owns a field's value.
type Origin string

const (
	// OriginInput fields arrive in the ingestion payload.
	OriginInput Origin = "input"
	// OriginDerived fields are computed by the scoring engine.
	OriginDerived Origin = "derived"
	// OriginWorkflow fields belong to the QA and call-centre workflow.
	OriginWorkflow Origin = "workflow"
	// OriginSystem fields are maintained by the ingestion gateway.
	OriginSystem Origin = "system"
)

// Field describes one field of a collection.
type Field struct {
	Key          string     `yaml:"key" json:"key"`
	Label        string     `yaml:"label" json:"label"`
	Kind         Kind       `yaml:"kind" json:"kind"`
	Origin       Origin     `yaml:"origin" json:"origin"`
	Required     bool       `yaml:"required" json:"required"`
	Values       []string   `yaml:"values,omitempty" json:"values,omitempty"`
	Min          *float64   `yaml:"min,omitempty" json:"min,omitempty"`
	Max          *float64   `yaml:"max,omitempty" json:"max,omitempty"`
	Integer      bool       `yaml:"integer,omitempty" json:"integer,omitempty"`
	ScoringInput bool       `yaml:"scoring_input,omitempty" json:"scoring_input,omitempty"`
	Target       Collection `yaml:"target,omitempty" json:"target,omitempty"`
}

// Entity is the definition of one collection.
type Entity struct {
	Collection Collection `yaml:"collection" json:"collection"`
	Title      string     `yaml:"title" json:"title"`
	Icon       string     `yaml:"icon" json:"icon"`
	Fields     []Field    `yaml:"fields" json:"fields"`

	byKey map[string]int
}

// Field returns the named field.
func (e *Entity) Field(key string) (Field, bool) {
	i, ok := e.byKey[key]
	if !ok {
		return Field{}, false
	}
	return e.Fields[i], true
}

// TitleField returns the field holding the human key of the collection.
func (e *Entity) TitleField() Field {
	for _, f := range e.Fields {
		if f.Kind == KindTitle {
			return f
		}
	}
	return Field{}
}

// Schema is a full versioned set of entity definitions.
type Schema struct {
	Version  string    `yaml:"version" json:"version"`
	Entities []*Entity `yaml:"entities" json:"entities"`
}

// Entity returns the definition of collection c.
func (s *Schema) Entity(c Collection) (*Entity, error) {
	for _, e := range s.Entities {
		if e.Collection == c {
			return e, nil
		}
	}
	return nil, eris.Errorf("schema: unknown collection %q", c)
}

// Current returns a fresh copy of the active schema definition. Callers may
// not mutate a shared instance.
func Current() *Schema {
	s := &Schema{
		Version:  Version,
		Entities: []*Entity{sourceEntity(), batchEntity(), leadEntity()},
	}
	for _, e := range s.Entities {
		e.byKey = make(map[string]int, len(e.Fields))
		for i, f := range e.Fields {
			e.byKey[f.Key] = i
		}
	}
	return s
}

// Validate checks a record's fields against the collection definition.
// Every violation is reported; the returned error wraps
// model.ErrSchemaValidation.
func (s *Schema) Validate(c Collection, fields map[string]any) error {
	return s.validate(c, fields, func(Field) bool { return true }, false)
}

// ValidateInput checks an ingestion candidate. Only input fields are
// considered, and the domains of scoring inputs are left to the scoring
// engine so range problems surface as InvalidScoreInput.
func (s *Schema) ValidateInput(c Collection, fields map[string]any) error {
	return s.validate(c, fields, func(f Field) bool { return f.Origin == OriginInput }, true)
}

func (s *Schema) validate(c Collection, fields map[string]any, include func(Field) bool, input bool) error {
	e, err := s.Entity(c)
	if err != nil {
		return err
	}

	var problems []string
	for key := range fields {
		f, ok := e.Field(key)
		if !ok || !include(f) {
			problems = append(problems, fmt.Sprintf("%s: unknown field", key))
		}
	}

	for _, f := range e.Fields {
		if !include(f) {
			continue
		}
		v, present := fields[f.Key]
		if !present || isEmpty(v) {
			if f.Required {
				problems = append(problems, fmt.Sprintf("%s: required", f.Key))
			}
			continue
		}
		if p := checkValue(f, v, input && f.ScoringInput); p != "" {
			problems = append(problems, fmt.Sprintf("%s: %s", f.Key, p))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	slices.Sort(problems)
	return eris.Wrapf(model.ErrSchemaValidation, "%s: %s", c, strings.Join(problems, "; "))
}

func checkValue(f Field, v any, typeOnly bool) string {
	switch f.Kind {
	case KindTitle, KindText, KindURL, KindRelation:
		if _, ok := v.(string); !ok {
			return fmt.Sprintf("expected string, got %T", v)
		}
	case KindSelect:
		s, ok := v.(string)
		if !ok {
			return fmt.Sprintf("expected string, got %T", v)
		}
		if !typeOnly && !slices.Contains(f.Values, s) {
			return fmt.Sprintf("%q is not one of %s", s, strings.Join(f.Values, ", "))
		}
	case KindNumber, KindMoney:
		n, ok := toFloat(v)
		if !ok {
			return fmt.Sprintf("expected number, got %T", v)
		}
		if f.Integer && n != math.Trunc(n) {
			return fmt.Sprintf("expected integer, got %v", n)
		}
		if typeOnly {
			return ""
		}
		if f.Min != nil && n < *f.Min {
			return fmt.Sprintf("%v is below minimum %v", n, *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return fmt.Sprintf("%v is above maximum %v", n, *f.Max)
		}
	case KindDate:
		switch t := v.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse(time.RFC3339, t); err != nil {
				if _, err := time.Parse(time.DateOnly, t); err != nil {
					return fmt.Sprintf("unparseable date %q", t)
				}
			}
		default:
			return fmt.Sprintf("expected date, got %T", v)
		}
	case KindList:
		switch v.(type) {
		case []string, []any:
		default:
			return fmt.Sprintf("expected list, got %T", v)
		}
	}
	return ""
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case *string:
		return t == nil || strings.TrimSpace(*t) == ""
	case *int:
		return t == nil
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case *int:
		if n == nil {
			return 0, false
		}
		return float64(*n), true
	}
	return 0, false
}
