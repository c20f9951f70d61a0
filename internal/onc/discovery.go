package onc

import (
	"context"
	"encoding/json"

	"github.com/veranemoloko/onc-archive/internal/domain"
)

// GetLocations lists locations matching filters.
func (c *Client) GetLocations(ctx context.Context, filters domain.Filters) (json.RawMessage, error) {
	return c.discover(ctx, "locations", "get", filters)
}

// GetLocationHierarchy returns the location tree below the filtered location.
func (c *Client) GetLocationHierarchy(ctx context.Context, filters domain.Filters) (json.RawMessage, error) {
	return c.discover(ctx, "locations", "getTree", filters)
}

// GetDeployments lists device deployments.
func (c *Client) GetDeployments(ctx context.Context, filters domain.Filters) (json.RawMessage, error) {
	return c.discover(ctx, "deployments", "get", filters)
}

// GetDevices lists devices.
func (c *Client) GetDevices(ctx context.Context, filters domain.Filters) (json.RawMessage, error) {
	return c.discover(ctx, "devices", "get", filters)
}

// GetDeviceCategories lists device categories.
func (c *Client) GetDeviceCategories(ctx context.Context, filters domain.Filters) (json.RawMessage, error) {
	return c.discover(ctx, "deviceCategories", "get", filters)
}

// GetProperties lists observed properties.
func (c *Client) GetProperties(ctx context.Context, filters domain.Filters) (json.RawMessage, error) {
	return c.discover(ctx, "properties", "get", filters)
}

// GetDataProducts lists the data products available for the filters.
func (c *Client) GetDataProducts(ctx context.Context, filters domain.Filters) (json.RawMessage, error) {
	return c.discover(ctx, "dataProducts", "get", filters)
}

func (c *Client) discover(ctx context.Context, service, method string, filters domain.Filters) (json.RawMessage, error) {
	params := filters.Clone()
	params["method"] = method
	return c.DoRequest(ctx, c.ServiceURL(service), params)
}
