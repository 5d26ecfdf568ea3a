package notion_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/schema"
	"github.com/sells-group/leadgen-cli/pkg/notion"
	"github.com/sells-group/leadgen-cli/pkg/notion/mocks"
)

func titled(title string) any {
	return mock.MatchedBy(func(req *notionapi.DatabaseCreateRequest) bool {
		return len(req.Title) == 1 && req.Title[0].Text.Content == title
	})
}

func TestSetup_CreatesDatabasesInOrder(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()

	mc.On("Me", ctx).Return(&notionapi.User{Name: "leadgen"}, nil).Once()
	mc.On("CreateDatabase", mock.Anything, titled("Sources")).
		Return(&notionapi.Database{ID: "src-db"}, nil).Once()
	mc.On("CreateDatabase", mock.Anything, titled("Batches")).
		Return(&notionapi.Database{ID: "batch-db"}, nil).Once()
	mc.On("CreateDatabase", ctx, mock.MatchedBy(func(req *notionapi.DatabaseCreateRequest) bool {
		if len(req.Title) != 1 || req.Title[0].Text.Content != "Leads" {
			return false
		}
		src, ok := req.Properties["Source"].(notionapi.RelationPropertyConfig)
		if !ok || src.Relation.DatabaseID != "src-db" {
			return false
		}
		batch, ok := req.Properties["Batch"].(notionapi.RelationPropertyConfig)
		return ok && batch.Relation.DatabaseID == "batch-db" &&
			req.Parent.PageID == "parent-page"
	})).Return(&notionapi.Database{ID: "lead-db"}, nil).Once()

	dbs, err := notion.Setup(ctx, mc, "parent-page", schema.Current())
	require.NoError(t, err)
	assert.Equal(t, "src-db", dbs.Sources)
	assert.Equal(t, "batch-db", dbs.Batches)
	assert.Equal(t, "lead-db", dbs.Leads)
	assert.Equal(t, notion.DefaultVersion, dbs.APIVersion)
	assert.Equal(t, "lead-db", dbs.IDs()[schema.Leads])
}

func TestSetup_InvalidToken(t *testing.T) {
	mc := new(mocks.MockClient)
	ctx := context.Background()
	mc.On("Me", ctx).Return(nil, &notionapi.Error{Status: 401, Message: "API token is invalid."}).Once()

	_, err := notion.Setup(ctx, mc, "parent-page", schema.Current())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify token")
	mc.AssertNotCalled(t, "CreateDatabase", mock.Anything, mock.Anything)
}

func TestSetup_SkipsLeadsWhenDependencyFails(t *testing.T) {
	mc := new(mocks.MockClient)
	ctx := context.Background()

	mc.On("Me", ctx).Return(&notionapi.User{Name: "leadgen"}, nil).Once()
	mc.On("CreateDatabase", mock.Anything, titled("Sources")).
		Return(nil, errors.New("boom")).Once()
	mc.On("CreateDatabase", mock.Anything, titled("Batches")).
		Return(&notionapi.Database{ID: "batch-db"}, nil).Maybe()

	_, err := notion.Setup(ctx, mc, "parent-page", schema.Current())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create Sources")
	mc.AssertNotCalled(t, "CreateDatabase", ctx, titled("Leads"))
}

func TestPropertyConfigs_Leads(t *testing.T) {
	t.Parallel()
	e, err := schema.Current().Entity(schema.Leads)
	require.NoError(t, err)

	props, err := notion.PropertyConfigs(e, map[schema.Collection]string{
		schema.Sources: "s", schema.Batches: "b",
	})
	require.NoError(t, err)

	assert.Len(t, props, len(e.Fields)+1)
	assert.IsType(t, notionapi.TitlePropertyConfig{}, props["Company Name"])
	assert.IsType(t, notionapi.NumberPropertyConfig{}, props[notion.RevisionProperty])

	status, ok := props["Status"].(notionapi.SelectPropertyConfig)
	require.True(t, ok)
	require.Len(t, status.Select.Options, 9)
	assert.Equal(t, "Pending QA", status.Select.Options[0].Name)

	composite, ok := props["Composite Score"].(notionapi.NumberPropertyConfig)
	require.True(t, ok)
	assert.Equal(t, notionapi.FormatNumber, composite.Number.Format)
}

func TestPropertyConfigs_BatchCostIsDollar(t *testing.T) {
	t.Parallel()
	e, err := schema.Current().Entity(schema.Batches)
	require.NoError(t, err)

	props, err := notion.PropertyConfigs(e, nil)
	require.NoError(t, err)
	cost, ok := props["API Cost (USD)"].(notionapi.NumberPropertyConfig)
	require.True(t, ok)
	assert.Equal(t, notionapi.FormatDollar, cost.Number.Format)
	assert.IsType(t, notionapi.RichTextPropertyConfig{}, props["Errors"])
}

func TestPropertyConfigs_MissingRelationTarget(t *testing.T) {
	t.Parallel()
	e, err := schema.Current().Entity(schema.Leads)
	require.NoError(t, err)

	_, err = notion.PropertyConfigs(e, map[schema.Collection]string{schema.Sources: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leads.batch relates to batches")
}

func TestConfigFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "notion_config.json")
	in := &notion.Databases{Leads: "l", Sources: "s", Batches: "b", APIVersion: notion.DefaultVersion}
	require.NoError(t, notion.WriteConfig(path, in))

	out, err := notion.ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, in.IDs(), out.IDs())

	_, err = notion.ReadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
