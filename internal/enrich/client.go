package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jeanpaul/favourites/internal/types"
)

// DefaultBaseURL is the public genderize.io endpoint.
const DefaultBaseURL = "https://api.genderize.io"

// Client talks to a genderize.io compatible endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient returns a client for baseURL. A nil httpClient means
// http.DefaultClient.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
	}
}

type genderizeResponse struct {
	Name        string   `json:"name"`
	Gender      *string  `json:"gender"`
	Probability *float64 `json:"probability"`
	Count       *int     `json:"count"`
}

// ResolveGender asks the endpoint for name. A null or missing gender field is
// a valid "no signal" answer and yields GenderUnknown without an error.
func (c *Client) ResolveGender(ctx context.Context, name string) (types.Gender, error) {
	q := url.Values{}
	q.Set("name", name)
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return types.GenderUnknown, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return types.GenderUnknown, fmt.Errorf("genderize: %s: %w", friendlyError(err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return types.GenderUnknown, fmt.Errorf("genderize: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.GenderUnknown, fmt.Errorf("genderize: %w", parseStatusError(resp.StatusCode, body))
	}

	var out genderizeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return types.GenderUnknown, fmt.Errorf("genderize: %w: %v", ErrMalformed, err)
	}
	if out.Gender == nil {
		return types.GenderUnknown, nil
	}
	return types.ParseGender(*out.Gender), nil
}
