package onc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/veranemoloko/onc-archive/internal/domain"
	errpkg "github.com/veranemoloko/onc-archive/internal/errors"
)

const (
	ProductionURL = "https://data.oceannetworks.ca/"
	QAURL         = "https://qa.oceannetworks.ca/"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 1 << 20

var tokenRe = regexp.MustCompile(`[^a-zA-Z0-9\-]+`)

// Options configures the web service client.
type Options struct {
	Token      string
	Production bool

	// BaseURL overrides the host picked by Production.
	BaseURL string

	// Timeout for each request, including the body download.
	Timeout time.Duration

	HTTPClient *http.Client
}

// Response is a raw service response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// URL is the request URL without the token parameter.
	URL string
}

// Stream is a service response whose body has not been read yet.
type Stream struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser

	// URL is the request URL without the token parameter.
	URL string
}

// Client performs authenticated requests against the ONC web services.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. The token is stripped of anything that is not
// a letter, a digit or a dash.
func NewClient(opts Options, logger *slog.Logger) *Client {
	base := opts.BaseURL
	if base == "" {
		base = QAURL
		if opts.Production {
			base = ProductionURL
		}
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:    base,
		token:      SanitizeToken(opts.Token),
		httpClient: httpClient,
		logger:     logger,
	}
}

// SanitizeToken removes characters that cannot appear in an API token.
func SanitizeToken(token string) string {
	return tokenRe.ReplaceAllString(token, "")
}

// ServiceURL returns the endpoint of an ONC service, e.g. "archivefiles".
func (c *Client) ServiceURL(service string) string {
	return c.baseURL + "api/" + service
}

// DoRequest calls a JSON service method and returns the raw body.
// A non-2xx answer is returned as *errors.HTTPError.
func (c *Client) DoRequest(ctx context.Context, endpoint string, params domain.Filters) (json.RawMessage, error) {
	resp, err := c.Download(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	if !json.Valid(resp.Body) {
		return nil, fmt.Errorf("invalid JSON response from %s", resp.URL)
	}
	return resp.Body, nil
}

// Download performs a GET with the token added to params and returns the
// whole body. A non-2xx answer is returned as *errors.HTTPError.
func (c *Client) Download(ctx context.Context, endpoint string, params domain.Filters) (*Response, error) {
	stream, err := c.Open(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	defer stream.Body.Close()

	body, err := io.ReadAll(stream.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: stream.StatusCode,
		Header:     stream.Header,
		Body:       body,
		URL:        stream.URL,
	}, nil
}

// Open performs a GET with the token added to params and hands back the
// unread body. The caller must close Stream.Body. A non-2xx answer is
// returned as *errors.HTTPError with the body already consumed.
func (c *Client) Open(ctx context.Context, endpoint string, params domain.Filters) (*Stream, error) {
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	publicURL := buildURL(endpoint, query)
	query.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, buildURL(endpoint, query), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// the transport error embeds the full URL; keep the token out of it
		return nil, fmt.Errorf("request %s: %s", publicURL, redact(err.Error(), c.token))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		httpErr := newHTTPError(resp.StatusCode, publicURL, body)
		c.logger.Warn("request failed",
			"url", publicURL,
			"status", resp.StatusCode,
			"error", httpErr,
		)
		return nil, httpErr
	}

	return &Stream{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		URL:        publicURL,
	}, nil
}

// PublicURL builds the URL of a request without the token.
func (c *Client) PublicURL(endpoint string, params domain.Filters) string {
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	return buildURL(endpoint, query)
}

func newHTTPError(status int, publicURL string, body []byte) *errpkg.HTTPError {
	httpErr := &errpkg.HTTPError{
		StatusCode: status,
		Reason:     http.StatusText(status),
		URL:        publicURL,
	}

	switch status {
	case http.StatusBadRequest:
		var payload struct {
			Errors []errpkg.ServiceError `json:"errors"`
		}
		if err := json.Unmarshal(body, &payload); err == nil {
			httpErr.Errors = payload.Errors
		}
	case http.StatusUnauthorized:
		httpErr.Reason = "Unauthorized: check that your Web Services API token is valid"
	}

	return httpErr
}

func buildURL(endpoint string, query url.Values) string {
	if len(query) == 0 {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + query.Encode()
}

func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "REDACTED")
}
