package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches every page of a database query. The next page is
// requested in the background while the current one is appended.
func QueryAll(ctx context.Context, c Client, dbID string, query *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	next := func(cursor notionapi.Cursor) *notionapi.DatabaseQueryRequest {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor, PageSize: 100}
		if query != nil {
			req.Filter = query.Filter
			req.Sorts = query.Sorts
			if query.PageSize > 0 {
				req.PageSize = query.PageSize
			}
		}
		return req
	}

	type result struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}

	var all []notionapi.Page
	resp, err := c.QueryDatabase(ctx, dbID, next(""))
	for {
		if err != nil {
			return nil, eris.Wrapf(err, "notion: query all %s", dbID)
		}
		if !resp.HasMore {
			return append(all, resp.Results...), nil
		}

		ch := make(chan result, 1)
		go func(cursor notionapi.Cursor) {
			r, e := c.QueryDatabase(ctx, dbID, next(cursor))
			ch <- result{r, e}
		}(resp.NextCursor)

		all = append(all, resp.Results...)
		r := <-ch
		resp, err = r.resp, r.err
	}
}
