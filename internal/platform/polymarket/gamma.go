package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery with the volume/liquidity enrichment the scanner
// needs. It implements domain.DiscoveryClient.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ActiveMarkets returns up to limit tradeable markets as scan candidates,
// ordered by 24h volume descending. Markets without usable token or price
// data are skipped rather than surfaced as errors.
func (g *GammaClient) ActiveMarkets(ctx context.Context, limit int) ([]domain.MarketCandidate, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("order", "volume24hr")
	params.Set("ascending", "false")

	path := "/markets?" + params.Encode()

	body, err := g.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	candidates := make([]domain.MarketCandidate, 0, len(apiMarkets))
	for i := range apiMarkets {
		m := &apiMarkets[i]
		if !m.Tradeable() {
			continue
		}
		if c, ok := m.ToCandidate(); ok {
			candidates = append(candidates, c)
		}
	}

	return candidates, nil
}

// MarketByTokenID looks up a single market by one of its CLOB token IDs.
func (g *GammaClient) MarketByTokenID(ctx context.Context, tokenID string) (domain.MarketCandidate, error) {
	params := url.Values{}
	params.Set("clob_token_ids", tokenID)

	path := "/markets?" + params.Encode()

	body, err := g.doGet(ctx, path)
	if err != nil {
		return domain.MarketCandidate{}, fmt.Errorf("polymarket/gamma: market by token %s: %w", tokenID, err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return domain.MarketCandidate{}, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	for i := range apiMarkets {
		if c, ok := apiMarkets[i].ToCandidate(); ok {
			return c, nil
		}
	}

	return domain.MarketCandidate{}, fmt.Errorf("polymarket/gamma: %w: token=%s", domain.ErrNotFound, tokenID)
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
