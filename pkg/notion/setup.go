package notion

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen-cli/internal/schema"
)

// DefaultVersion is the Notion-Version the workspace databases are created
// with.
const DefaultVersion = "2022-06-28"

// RevisionProperty is the number property added to every workspace database
// for optimistic concurrency.
const RevisionProperty = "Revision"

// optionColors is cycled across the options of a select property.
var optionColors = []notionapi.Color{
	notionapi.ColorBlue,
	notionapi.ColorGreen,
	notionapi.ColorYellow,
	notionapi.ColorOrange,
	notionapi.ColorRed,
	notionapi.ColorPurple,
	notionapi.ColorBrown,
	notionapi.ColorPink,
	notionapi.ColorGray,
	notionapi.ColorDefault,
}

// Databases holds the ids of the provisioned workspace databases. It is
// persisted as notion_config.json.
type Databases struct {
	Leads      string    `json:"leads_database_id"`
	Sources    string    `json:"sources_database_id"`
	Batches    string    `json:"batches_database_id"`
	APIVersion string    `json:"notion_api_version"`
	CreatedAt  time.Time `json:"created_at"`
}

// IDs returns the database id of every collection.
func (d *Databases) IDs() map[schema.Collection]string {
	return map[schema.Collection]string{
		schema.Sources: d.Sources,
		schema.Batches: d.Batches,
		schema.Leads:   d.Leads,
	}
}

// Setup creates the Sources, Batches and Leads databases under the parent
// page. Sources and Batches are independent and created concurrently; Leads
// is created last because it relates to both.
func Setup(ctx context.Context, c Client, parentPageID string, s *schema.Schema) (*Databases, error) {
	log := zap.L().With(zap.String("component", "notion.setup"))

	me, err := c.Me(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "notion setup: verify token")
	}
	log.Info("connected", zap.String("bot", me.Name))

	dbs := &Databases{APIVersion: DefaultVersion, CreatedAt: time.Now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	var sourcesID, batchesID string
	g.Go(func() error {
		id, err := createDatabase(gctx, c, parentPageID, s, schema.Sources, nil)
		sourcesID = id
		return err
	})
	g.Go(func() error {
		id, err := createDatabase(gctx, c, parentPageID, s, schema.Batches, nil)
		batchesID = id
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	related := map[schema.Collection]string{
		schema.Sources: sourcesID,
		schema.Batches: batchesID,
	}

	leadsID, err := createDatabase(ctx, c, parentPageID, s, schema.Leads, related)
	if err != nil {
		return nil, err
	}

	dbs.Sources, dbs.Batches, dbs.Leads = sourcesID, batchesID, leadsID
	log.Info("databases created",
		zap.String("sources", dbs.Sources),
		zap.String("batches", dbs.Batches),
		zap.String("leads", dbs.Leads),
	)
	return dbs, nil
}

func createDatabase(ctx context.Context, c Client, parentPageID string, s *schema.Schema, coll schema.Collection, related map[schema.Collection]string) (string, error) {
	e, err := s.Entity(coll)
	if err != nil {
		return "", eris.Wrap(err, "notion setup")
	}
	props, err := PropertyConfigs(e, related)
	if err != nil {
		return "", err
	}
	db, err := c.CreateDatabase(ctx, &notionapi.DatabaseCreateRequest{
		Parent: notionapi.Parent{
			Type:   notionapi.ParentTypePageID,
			PageID: notionapi.PageID(parentPageID),
		},
		Title: []notionapi.RichText{{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: e.Title},
		}},
		Properties: props,
	})
	if err != nil {
		return "", eris.Wrapf(err, "notion setup: create %s", e.Title)
	}
	zap.L().Info("notion setup: created database",
		zap.String("title", e.Title), zap.String("id", string(db.ID)))
	return string(db.ID), nil
}

// PropertyConfigs builds the Notion property definitions of an entity.
// Relation fields need the id of their target database in related.
// Composite Score and Quality Gate are plain number and select properties
// written by the scoring engine.
func PropertyConfigs(e *schema.Entity, related map[schema.Collection]string) (notionapi.PropertyConfigs, error) {
	props := notionapi.PropertyConfigs{
		RevisionProperty: notionapi.NumberPropertyConfig{
			Type:   notionapi.PropertyConfigTypeNumber,
			Number: notionapi.NumberFormat{Format: notionapi.FormatNumber},
		},
	}
	for _, f := range e.Fields {
		switch f.Kind {
		case schema.KindTitle:
			props[f.Label] = notionapi.TitlePropertyConfig{Type: notionapi.PropertyConfigTypeTitle}
		case schema.KindText, schema.KindList:
			props[f.Label] = notionapi.RichTextPropertyConfig{Type: notionapi.PropertyConfigTypeRichText}
		case schema.KindSelect:
			opts := make([]notionapi.Option, len(f.Values))
			for i, v := range f.Values {
				opts[i] = notionapi.Option{Name: v, Color: optionColors[i%len(optionColors)]}
			}
			props[f.Label] = notionapi.SelectPropertyConfig{
				Type:   notionapi.PropertyConfigTypeSelect,
				Select: notionapi.Select{Options: opts},
			}
		case schema.KindNumber:
			props[f.Label] = notionapi.NumberPropertyConfig{
				Type:   notionapi.PropertyConfigTypeNumber,
				Number: notionapi.NumberFormat{Format: notionapi.FormatNumber},
			}
		case schema.KindMoney:
			props[f.Label] = notionapi.NumberPropertyConfig{
				Type:   notionapi.PropertyConfigTypeNumber,
				Number: notionapi.NumberFormat{Format: notionapi.FormatDollar},
			}
		case schema.KindURL:
			props[f.Label] = notionapi.URLPropertyConfig{Type: notionapi.PropertyConfigTypeURL}
		case schema.KindDate:
			props[f.Label] = notionapi.DatePropertyConfig{Type: notionapi.PropertyConfigTypeDate}
		case schema.KindRelation:
			target := related[f.Target]
			if target == "" {
				return nil, eris.Errorf("notion setup: %s.%s relates to %s, which has no database", e.Collection, f.Key, f.Target)
			}
			props[f.Label] = notionapi.RelationPropertyConfig{
				Type: notionapi.PropertyConfigTypeRelation,
				Relation: notionapi.RelationConfig{
					DatabaseID:     notionapi.DatabaseID(target),
					Type:           notionapi.RelationSingleProperty,
					SingleProperty: &notionapi.SingleProperty{},
				},
			}
		default:
			return nil, eris.Errorf("notion setup: %s.%s has unsupported kind %s", e.Collection, f.Key, f.Kind)
		}
	}
	return props, nil
}

// WriteConfig persists the database ids as JSON.
func WriteConfig(path string, d *Databases) error {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return eris.Wrap(err, "notion setup: marshal config")
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return eris.Wrapf(err, "notion setup: write %s", path)
	}
	return nil
}

// ReadConfig loads database ids written by WriteConfig.
func ReadConfig(path string) (*Databases, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "notion: read %s", path)
	}
	var d Databases
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, eris.Wrapf(err, "notion: parse %s", path)
	}
	return &d, nil
}
