package onc

import (
	"context"
	"encoding/json"

	"github.com/veranemoloko/onc-archive/internal/domain"
)

// GetDirectByLocation returns scalar readings for a location and device
// category. With allPages every page is returned, otherwise only the first.
func (c *Client) GetDirectByLocation(ctx context.Context, filters domain.Filters, allPages bool) ([]json.RawMessage, error) {
	return c.realTime(ctx, "scalardata", "getByLocation", filters, allPages)
}

// GetDirectScalar is the older name of GetDirectByLocation.
func (c *Client) GetDirectScalar(ctx context.Context, filters domain.Filters, allPages bool) ([]json.RawMessage, error) {
	return c.GetDirectByLocation(ctx, filters, allPages)
}

// GetDirectByDevice returns scalar readings for a device.
func (c *Client) GetDirectByDevice(ctx context.Context, filters domain.Filters, allPages bool) ([]json.RawMessage, error) {
	return c.realTime(ctx, "scalardata", "getByDevice", filters, allPages)
}

// GetDirectRawByLocation returns raw instrument readings for a location.
func (c *Client) GetDirectRawByLocation(ctx context.Context, filters domain.Filters, allPages bool) ([]json.RawMessage, error) {
	return c.realTime(ctx, "rawdata", "getByLocation", filters, allPages)
}

// GetDirectRawByDevice returns raw instrument readings for a device.
func (c *Client) GetDirectRawByDevice(ctx context.Context, filters domain.Filters, allPages bool) ([]json.RawMessage, error) {
	return c.realTime(ctx, "rawdata", "getByDevice", filters, allPages)
}

func (c *Client) realTime(ctx context.Context, service, method string, filters domain.Filters, allPages bool) ([]json.RawMessage, error) {
	params := filters.Clone()
	params["method"] = method
	endpoint := c.ServiceURL(service)

	if !allPages {
		page, err := c.DoRequest(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}
		return []json.RawMessage{page}, nil
	}

	var pages []json.RawMessage
	err := c.Pages(ctx, endpoint, params, func(page json.RawMessage) error {
		pages = append(pages, page)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}
