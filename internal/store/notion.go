package store

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/schema"
	"github.com/sells-group/leadgen-cli/pkg/notion"
)

// RevisionProperty holds the record revision on every workspace page.
const RevisionProperty = notion.RevisionProperty

// maxRichText is Notion's per-object rich text content limit.
const maxRichText = 2000

// NotionStore implements Store on the three Notion workspace databases.
// Field keys map to the schema labels, which are the Notion property names.
//
// Notion has no conditional update, so the revision check and the write are
// two calls. Serialize writers per deployment.
type NotionStore struct {
	client notion.Client
	dbs    map[schema.Collection]string
	schema *schema.Schema
	retry  resilience.RetryConfig
}

// NotionOption configures a NotionStore.
type NotionOption func(*NotionStore)

// WithNotionRetry overrides the retry policy for transient API errors.
func WithNotionRetry(cfg resilience.RetryConfig) NotionOption {
	return func(s *NotionStore) { s.retry = cfg }
}

// NewNotion returns a store over the given database ids.
func NewNotion(client notion.Client, dbs map[schema.Collection]string, opts ...NotionOption) (*NotionStore, error) {
	for _, c := range schema.Collections {
		if dbs[c] == "" {
			return nil, eris.Errorf("notion store: no database id for %s", c)
		}
	}
	s := &NotionStore{
		client: client,
		dbs:    dbs,
		schema: schema.Current(),
		retry:  resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Migrate is a no-op; databases are provisioned by notion.Setup.
func (s *NotionStore) Migrate(context.Context) error { return nil }

func (s *NotionStore) Close() error { return nil }

func (s *NotionStore) retryConfig(op string) resilience.RetryConfig {
	cfg := s.retry
	cfg.OnRetry = resilience.RetryLogger("notion", op)
	return cfg
}

func (s *NotionStore) CreateRecord(ctx context.Context, c schema.Collection, fields map[string]any) (string, error) {
	e, err := s.schema.Entity(c)
	if err != nil {
		return "", err
	}
	props, err := encodeProperties(e, withoutNils(fields))
	if err != nil {
		return "", err
	}
	props[RevisionProperty] = notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: 1}

	page, err := resilience.DoVal(ctx, s.retryConfig("create_page"), func(ctx context.Context) (*notionapi.Page, error) {
		return s.client.CreatePage(ctx, &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(s.dbs[c]),
			},
			Properties: props,
		})
	})
	if err != nil {
		return "", eris.Wrapf(err, "notion store: create %s record", c)
	}
	return string(page.ID), nil
}

func (s *NotionStore) UpdateRecord(ctx context.Context, id string, revision int64, fields map[string]any) (int64, error) {
	page, err := s.getPage(ctx, id)
	if err != nil {
		return 0, err
	}
	c, err := s.collectionOf(page)
	if err != nil {
		return 0, err
	}
	current := pageRevision(page)
	if current != revision {
		return 0, eris.Wrapf(model.ErrStaleWrite, "notion store: record %s at revision %d, write based on %d", id, current, revision)
	}

	e, err := s.schema.Entity(c)
	if err != nil {
		return 0, err
	}
	props, err := encodeProperties(e, fields)
	if err != nil {
		return 0, err
	}
	props[RevisionProperty] = notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: float64(current + 1)}

	_, err = resilience.DoVal(ctx, s.retryConfig("update_page"), func(ctx context.Context) (*notionapi.Page, error) {
		return s.client.UpdatePage(ctx, id, &notionapi.PageUpdateRequest{Properties: props})
	})
	if err != nil {
		return 0, eris.Wrapf(err, "notion store: update record %s", id)
	}
	return current + 1, nil
}

func (s *NotionStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	page, err := s.getPage(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := s.collectionOf(page)
	if err != nil {
		return nil, err
	}
	return s.decode(c, page)
}

func (s *NotionStore) QueryRecords(ctx context.Context, c schema.Collection, filter Filter) ([]Record, error) {
	dbID, ok := s.dbs[c]
	if !ok {
		return nil, eris.Errorf("notion store: unknown collection %q", c)
	}
	pages, err := resilience.DoVal(ctx, s.retryConfig("query_database"), func(ctx context.Context) ([]notionapi.Page, error) {
		return notion.QueryAll(ctx, s.client, dbID, nil)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "notion store: query %s", c)
	}
	slices.SortStableFunc(pages, func(a, b notionapi.Page) int {
		return a.CreatedTime.Compare(b.CreatedTime)
	})

	var out []Record
	for i := range pages {
		rec, err := s.decode(c, &pages[i])
		if err != nil {
			return nil, err
		}
		if matches(rec.Fields, filter) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *NotionStore) getPage(ctx context.Context, id string) (*notionapi.Page, error) {
	page, err := resilience.DoVal(ctx, s.retryConfig("get_page"), func(ctx context.Context) (*notionapi.Page, error) {
		return s.client.GetPage(ctx, id)
	})
	if err != nil {
		var apiErr *notionapi.Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, eris.Wrapf(model.ErrNotFound, "notion store: record %s", id)
		}
		return nil, eris.Wrapf(err, "notion store: get record %s", id)
	}
	if page.Archived {
		return nil, eris.Wrapf(model.ErrNotFound, "notion store: record %s is archived", id)
	}
	return page, nil
}

func (s *NotionStore) collectionOf(page *notionapi.Page) (schema.Collection, error) {
	parent := normalizeNotionID(string(page.Parent.DatabaseID))
	for c, id := range s.dbs {
		if normalizeNotionID(id) == parent {
			return c, nil
		}
	}
	return "", eris.Wrapf(model.ErrNotFound, "notion store: page %s is outside the workspace databases", page.ID)
}

func (s *NotionStore) decode(c schema.Collection, page *notionapi.Page) (*Record, error) {
	e, err := s.schema.Entity(c)
	if err != nil {
		return nil, err
	}
	rec := &Record{
		ID:         string(page.ID),
		Collection: c,
		Revision:   pageRevision(page),
		Fields:     make(map[string]any, len(e.Fields)),
	}
	for _, f := range e.Fields {
		prop, ok := page.Properties[f.Label]
		if !ok {
			continue
		}
		if v := decodeProperty(f.Kind, prop); v != nil {
			rec.Fields[f.Key] = v
		}
	}
	return rec, nil
}

func normalizeNotionID(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "-", ""))
}

func pageRevision(page *notionapi.Page) int64 {
	switch p := page.Properties[RevisionProperty].(type) {
	case *notionapi.NumberProperty:
		return int64(p.Number)
	case notionapi.NumberProperty:
		return int64(p.Number)
	}
	return 0
}

func encodeProperties(e *schema.Entity, fields map[string]any) (notionapi.Properties, error) {
	props := make(notionapi.Properties, len(fields))
	for key, v := range fields {
		f, ok := e.Field(key)
		if !ok {
			return nil, eris.Errorf("notion store: %s has no field %q", e.Collection, key)
		}
		switch f.Kind {
		case schema.KindTitle:
			props[f.Label] = notionapi.TitleProperty{Type: notionapi.PropertyTypeTitle, Title: richText(asString(v))}
		case schema.KindText:
			props[f.Label] = notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: richText(asString(v))}
		case schema.KindList:
			props[f.Label] = notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: richText(strings.Join(asStrings(v), "\n"))}
		case schema.KindSelect:
			name := asString(v)
			if name == "" {
				zap.L().Debug("notion store: select cannot be cleared", zap.String("field", key))
				continue
			}
			props[f.Label] = notionapi.SelectProperty{Type: notionapi.PropertyTypeSelect, Select: notionapi.Option{Name: name}}
		case schema.KindNumber, schema.KindMoney:
			n, _ := asFloat(v)
			props[f.Label] = notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: n}
		case schema.KindURL:
			props[f.Label] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: asString(v)}
		case schema.KindDate:
			prop := notionapi.DateProperty{Type: notionapi.PropertyTypeDate}
			if t := asTime(v); t != nil {
				d := notionapi.Date(*t)
				prop.Date = &notionapi.DateObject{Start: &d}
			}
			props[f.Label] = prop
		case schema.KindRelation:
			var rel []notionapi.Relation
			if id := asString(v); id != "" {
				rel = append(rel, notionapi.Relation{ID: notionapi.PageID(id)})
			}
			props[f.Label] = notionapi.RelationProperty{Type: notionapi.PropertyTypeRelation, Relation: rel}
		}
	}
	return props, nil
}

func richText(s string) []notionapi.RichText {
	var out []notionapi.RichText
	runes := []rune(s)
	for len(runes) > 0 {
		n := min(len(runes), maxRichText)
		out = append(out, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: string(runes[:n])},
		})
		runes = runes[n:]
	}
	return out
}

func plainText(rts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range rts {
		switch {
		case rt.PlainText != "":
			b.WriteString(rt.PlainText)
		case rt.Text != nil:
			b.WriteString(rt.Text.Content)
		}
	}
	return b.String()
}

// decodeProperty returns nil for an empty property.
func decodeProperty(kind schema.Kind, prop notionapi.Property) any {
	var s string
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		s = plainText(p.Title)
	case *notionapi.RichTextProperty:
		s = plainText(p.RichText)
		if kind == schema.KindList && s != "" {
			return asStrings(s)
		}
	case *notionapi.SelectProperty:
		s = p.Select.Name
	case *notionapi.URLProperty:
		s = p.URL
	case *notionapi.NumberProperty:
		return p.Number
	case *notionapi.DateProperty:
		if p.Date == nil || p.Date.Start == nil {
			return nil
		}
		return time.Time(*p.Date.Start).UTC().Format(time.RFC3339)
	case *notionapi.RelationProperty:
		if len(p.Relation) == 0 {
			return nil
		}
		s = string(p.Relation[0].ID)
	}
	if s == "" {
		return nil
	}
	return s
}
