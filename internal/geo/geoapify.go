// Package geo proxies address autocompletion so the provider key stays on the server.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rental_app_backend/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// MinQueryLength is the shortest text sent to the provider.
const MinQueryLength = 3

var (
	// ErrQueryTooShort is returned for text under MinQueryLength characters.
	ErrQueryTooShort = errors.New("query too short")
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("address autocomplete is not configured")
	// ErrUpstream wraps provider failures.
	ErrUpstream = errors.New("address provider error")
)

// Autocompleter suggests formatted addresses for partial input.
type Autocompleter interface {
	Autocomplete(ctx context.Context, text string) ([]string, error)
}

// GeoapifyClient calls the Geoapify autocomplete API, caching answers in Redis.
type GeoapifyClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cache      *redis.Client
	cacheTTL   time.Duration
}

// NewGeoapifyClient creates a client. cache may be nil to disable caching.
func NewGeoapifyClient(baseURL, apiKey string, timeout time.Duration, cache *redis.Client, cacheTTL time.Duration) *GeoapifyClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GeoapifyClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		cache:      cache,
		cacheTTL:   cacheTTL,
	}
}

type geoapifyResponse struct {
	Features []struct {
		Properties struct {
			Formatted string `json:"formatted"`
		} `json:"properties"`
	} `json:"features"`
}

func cacheKey(text string) string {
	return "geo:autocomplete:" + strings.ToLower(text)
}

// Autocomplete returns suggestions for text.
func (g *GeoapifyClient) Autocomplete(ctx context.Context, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < MinQueryLength {
		return nil, ErrQueryTooShort
	}
	if g.apiKey == "" {
		return nil, ErrNotConfigured
	}

	if g.cache != nil {
		if cached, err := g.cache.Get(ctx, cacheKey(text)).Result(); err == nil {
			var out []string
			if json.Unmarshal([]byte(cached), &out) == nil {
				return out, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			utils.LogWarn(err, "Autocomplete cache read failed")
		}
	}

	q := url.Values{}
	q.Set("text", text)
	q.Set("apiKey", g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var body geoapifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	out := make([]string, 0, len(body.Features))
	for _, f := range body.Features {
		if f.Properties.Formatted != "" {
			out = append(out, f.Properties.Formatted)
		}
	}

	if g.cache != nil {
		if payload, err := json.Marshal(out); err == nil {
			if err := g.cache.Set(ctx, cacheKey(text), payload, g.cacheTTL).Err(); err != nil {
				utils.LogWarn(err, "Autocomplete cache write failed")
			}
		}
	}
	return out, nil
}
