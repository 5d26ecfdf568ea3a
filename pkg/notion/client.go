// Package notion wraps the Notion API for the workspace databases: page
// CRUD, database queries and database creation.
package notion

import (
	"context"
	"errors"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen-cli/internal/resilience"
)

// Client defines the Notion API operations used by this application.
type Client interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	CreateDatabase(ctx context.Context, req *notionapi.DatabaseCreateRequest) (*notionapi.Database, error)
	GetPage(ctx context.Context, pageID string) (*notionapi.Page, error)
	CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
	Me(ctx context.Context) (*notionapi.User, error)
}

// ClientOption configures the Notion client.
type ClientOption func(*notionClient)

// WithRateLimit overrides the default Notion rate limit (3 req/s). Zero
// disables throttling.
func WithRateLimit(rps float64) ClientOption {
	return func(c *notionClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithVersion pins the Notion-Version header.
func WithVersion(version string) ClientOption {
	return func(c *notionClient) {
		c.version = version
	}
}

type notionClient struct {
	inner   *notionapi.Client
	limiter *rate.Limiter
	version string
}

// NewClient creates a Notion client for the given integration token. Calls
// are throttled to 3 req/s by default.
func NewClient(token string, opts ...ClientOption) Client {
	c := &notionClient{limiter: rate.NewLimiter(3, 1)}
	for _, opt := range opts {
		opt(c)
	}
	var innerOpts []notionapi.ClientOption
	if c.version != "" {
		innerOpts = append(innerOpts, notionapi.WithVersion(c.version))
	}
	c.inner = notionapi.NewClient(notionapi.Token(token), innerOpts...)
	return c
}

func (c *notionClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return eris.Wrap(c.limiter.Wait(ctx), "notion: rate limit")
}

// classify marks 429 and 5xx API errors as transient so callers can retry
// them with resilience.Do.
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.Status) {
		return eris.Wrap(resilience.NewTransientError(err, apiErr.Status), msg)
	}
	return eris.Wrap(err, msg)
}

func (c *notionClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.inner.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
	if err != nil {
		return nil, classify(err, "notion: query database "+dbID)
	}
	return resp, nil
}

func (c *notionClient) CreateDatabase(ctx context.Context, req *notionapi.DatabaseCreateRequest) (*notionapi.Database, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	db, err := c.inner.Database.Create(ctx, req)
	if err != nil {
		return nil, classify(err, "notion: create database")
	}
	return db, nil
}

func (c *notionClient) GetPage(ctx context.Context, pageID string) (*notionapi.Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	page, err := c.inner.Page.Get(ctx, notionapi.PageID(pageID))
	if err != nil {
		return nil, classify(err, "notion: get page "+pageID)
	}
	return page, nil
}

func (c *notionClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	page, err := c.inner.Page.Create(ctx, req)
	if err != nil {
		return nil, classify(err, "notion: create page")
	}
	return page, nil
}

func (c *notionClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	page, err := c.inner.Page.Update(ctx, notionapi.PageID(pageID), req)
	if err != nil {
		return nil, classify(err, "notion: update page "+pageID)
	}
	return page, nil
}

func (c *notionClient) Me(ctx context.Context) (*notionapi.User, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	u, err := c.inner.User.Me(ctx)
	if err != nil {
		return nil, classify(err, "notion: users/me")
	}
	return u, nil
}
