package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/onc-archive/internal/domain"
	errpkg "github.com/veranemoloko/onc-archive/internal/errors"
)

type fakeListingClient struct {
	body        string
	params      domain.Filters
	pagedCalled bool
}

func (c *fakeListingClient) ServiceURL(service string) string {
	return "https://example.test/api/" + service
}

func (c *fakeListingClient) DoRequest(_ context.Context, _ string, params domain.Filters) (json.RawMessage, error) {
	c.params = params
	return json.RawMessage(c.body), nil
}

func (c *fakeListingClient) GetAllPages(_ context.Context, _ string, params domain.Filters, _ string) (json.RawMessage, error) {
	c.params = params
	c.pagedCalled = true
	return json.RawMessage(c.body), nil
}

func names(result *domain.FileListResult) []string {
	out := make([]string, 0, len(result.Files))
	for _, f := range result.Files {
		out = append(out, f.Filename)
	}
	return out
}

func TestArchiveService_ListByLocation(t *testing.T) {
	client := &fakeListingClient{body: `{"files":["a.mp4","b.png","c.mp4"],"next":null}`}
	svc := NewArchiveService(client, newTestLogger())

	filters := domain.Filters{"locationCode": "RISS", "deviceCategoryCode": "VIDEOCAM", "extension": "mp4"}
	result, err := svc.ListByLocation(context.Background(), filters, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.mp4", "c.mp4"}, names(result))
	assert.Equal(t, "getListByLocation", client.params["method"])
	assert.NotContains(t, client.params, "extension")
	assert.Equal(t, "mp4", filters["extension"])
	assert.False(t, client.pagedCalled)
}

func TestArchiveService_ListByDevice_AllPagesFiltersToo(t *testing.T) {
	client := &fakeListingClient{body: `{"files":["a.mp4","b.png"],"next":null}`}
	svc := NewArchiveService(client, newTestLogger())

	result, err := svc.ListByDevice(context.Background(), domain.Filters{"deviceCode": "X", "extension": "png"}, true)
	require.NoError(t, err)

	assert.True(t, client.pagedCalled)
	assert.Equal(t, "getListByDevice", client.params["method"])
	assert.Equal(t, []string{"b.png"}, names(result))
}

func TestArchiveService_ObjectRecords(t *testing.T) {
	client := &fakeListingClient{body: `{"files":[{"filename":"a.txt","dateFrom":"2020-01-01"}]}`}
	svc := NewArchiveService(client, newTestLogger())

	result, err := svc.ListByDevice(context.Background(), domain.Filters{"deviceCode": "X", "returnOptions": "all"}, false)
	require.NoError(t, err)

	require.Len(t, result.Files, 1)
	assert.Equal(t, "a.txt", result.Files[0].Filename)
	assert.Equal(t, "2020-01-01", result.Files[0].Meta["dateFrom"])
}

func TestArchiveService_RejectsBadFilters(t *testing.T) {
	svc := NewArchiveService(&fakeListingClient{}, newTestLogger())

	_, err := svc.ListByDevice(context.Background(), domain.Filters{"device code": "X"}, false)
	assert.ErrorIs(t, err, errpkg.ErrInvalidSelector)
}

func TestFilterByExtension(t *testing.T) {
	result := &domain.FileListResult{Files: []domain.FileRecord{
		{Filename: "a.mp4"}, {Filename: "b.MP4"}, {Filename: "mp4"}, {Filename: "c.png"},
	}}

	once := FilterByExtension(result, "mp4")
	assert.Equal(t, []string{"a.mp4"}, names(once))

	twice := FilterByExtension(once, "mp4")
	assert.Equal(t, names(once), names(twice))

	dotted := FilterByExtension(result, ".mp4")
	assert.Equal(t, names(once), names(dotted))

	none := FilterByExtension(result, "wav")
	assert.NotNil(t, none.Files)
	assert.Empty(t, none.Files)

	assert.Len(t, result.Files, 4, "input must not change")
	assert.Same(t, result, FilterByExtension(result, ""))
}
