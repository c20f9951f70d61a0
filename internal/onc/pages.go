package onc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/veranemoloko/onc-archive/internal/domain"
)

// nextPage is the "next" member of a paged response.
type nextPage struct {
	Parameters map[string]any `json:"parameters"`
	URL        string         `json:"url"`
}

// Pages calls the service method and follows the "next" link of each
// response until it is null, handing every page to fn in order.
func (c *Client) Pages(ctx context.Context, endpoint string, params domain.Filters, fn func(page json.RawMessage) error) error {
	current := params.Clone()

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := c.DoRequest(ctx, endpoint, current)
		if err != nil {
			return fmt.Errorf("page %d: %w", n, err)
		}
		if err := fn(page); err != nil {
			return err
		}

		next, err := parseNext(page)
		if err != nil {
			return fmt.Errorf("page %d: %w", n, err)
		}
		if next == nil {
			c.logger.Debug("all pages fetched", "url", c.PublicURL(endpoint, params), "pages", n)
			return nil
		}

		current = domain.Filters{}
		for k, v := range next.Parameters {
			if k == "token" {
				continue
			}
			current[k] = fmt.Sprint(v)
		}
	}
}

// GetAllPages fetches every page and concatenates the arrays found under
// key, e.g. "files". The result is a JSON object holding the merged array
// and a null "next".
func (c *Client) GetAllPages(ctx context.Context, endpoint string, params domain.Filters, key string) (json.RawMessage, error) {
	var items []json.RawMessage

	err := c.Pages(ctx, endpoint, params, func(page json.RawMessage) error {
		var body map[string]json.RawMessage
		if err := json.Unmarshal(page, &body); err != nil {
			return fmt.Errorf("decode page: %w", err)
		}

		raw, ok := body[key]
		if !ok || bytes.Equal(raw, []byte("null")) {
			return nil
		}

		var chunk []json.RawMessage
		if err := json.Unmarshal(raw, &chunk); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		items = append(items, chunk...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if items == nil {
		items = []json.RawMessage{}
	}
	return json.Marshal(map[string]any{key: items, "next": nil})
}

func parseNext(page json.RawMessage) (*nextPage, error) {
	var body struct {
		Next json.RawMessage `json:"next"`
	}
	if err := json.Unmarshal(page, &body); err != nil {
		// array responses carry no paging information
		return nil, nil
	}
	if len(body.Next) == 0 || bytes.Equal(body.Next, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body.Next))
	dec.UseNumber()

	var next nextPage
	if err := dec.Decode(&next); err != nil {
		return nil, fmt.Errorf("decode next page: %w", err)
	}
	if len(next.Parameters) == 0 {
		return nil, nil
	}
	return &next, nil
}
