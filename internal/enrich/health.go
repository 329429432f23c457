package enrich

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Status is the result of probing a prediction endpoint.
type Status struct {
	BaseURL   string
	Reachable bool
	Error     string
	Latency   time.Duration
}

// Check verifies that the endpoint at baseURL answers a lookup. Any HTTP
// reply counts as reachable except auth failures.
func Check(ctx context.Context, baseURL, apiKey string) Status {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	s := Status{BaseURL: baseURL}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	u := strings.TrimRight(baseURL, "/") + "/?name=probe"
	if apiKey != "" {
		u += "&apikey=" + apiKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		s.Error = err.Error()
		s.Latency = time.Since(start)
		return s
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.Error = fmt.Sprintf("cannot reach %s: %s", baseURL, friendlyError(err))
		s.Latency = time.Since(start)
		return s
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		s.Error = "authentication failed, check the api key"
	case resp.StatusCode == 429:
		s.Reachable = true
		s.Error = "reachable but rate limited"
	default:
		s.Reachable = true
	}
	s.Latency = time.Since(start)
	return s
}
