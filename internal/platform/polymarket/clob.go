package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidefall-labs/polytrader/internal/crypto"
	"github.com/tidefall-labs/polytrader/internal/domain"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API. It implements domain.TradingClient: marketable entries,
// resting exit orders, cancellation, status polls, and balance queries.
type ClobClient struct {
	baseURL       string
	httpClient    *http.Client
	signer        *crypto.Signer
	hmacAuth      *crypto.HMACAuth
	signatureType int
	funder        string // maker address; defaults to the signer address
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
// signer is the EIP-712 signer for order signatures and auth messages.
// hmac is the HMAC authenticator for API requests; pass nil and call
// DeriveAPIKey to obtain one from the signer.
func NewClobClient(baseURL string, signer *crypto.Signer, hmac *crypto.HMACAuth, signatureType int, funder string) *ClobClient {
	if funder == "" && signer != nil {
		funder = signer.Address().Hex()
	}
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:        signer,
		hmacAuth:      hmac,
		signatureType: signatureType,
		funder:        funder,
	}
}

// MarketBuy places a fill-and-kill buy at the given limit price and returns
// the fill. A zero fill is reported in the result, not as an error; the
// executor decides what zero means.
func (c *ClobClient) MarketBuy(ctx context.Context, p domain.BuyParams) (domain.OrderResult, error) {
	return c.postOrder(ctx, p.TokenID, domain.OrderSideBuy, domain.OrderTypeFAK, p.Price, p.Size)
}

// MarketSell places a fill-and-kill sell. The emergency flag only matters to
// the caller's price-floor logic; the venue request is identical.
func (c *ClobClient) MarketSell(ctx context.Context, p domain.SellParams) (domain.OrderResult, error) {
	return c.postOrder(ctx, p.TokenID, domain.OrderSideSell, domain.OrderTypeFAK, p.Price, p.Size)
}

// LimitSell places a good-till-cancelled sell used for TP/SL exit orders.
func (c *ClobClient) LimitSell(ctx context.Context, p domain.LimitSellParams) (domain.OrderResult, error) {
	return c.postOrder(ctx, p.TokenID, domain.OrderSideSell, domain.OrderTypeGTC, p.Price, p.Size)
}

// postOrder builds, signs, and submits one order.
func (c *ClobClient) postOrder(ctx context.Context, tokenID string, side domain.OrderSide, typ domain.OrderType, price, size float64) (domain.OrderResult, error) {
	order, err := c.buildSignedOrder(tokenID, side, typ, price, size)
	if err != nil {
		return domain.OrderResult{}, err
	}

	body := map[string]any{
		"order": map[string]any{
			"salt":          order.ID,
			"tokenID":       order.TokenID,
			"makerAmount":   order.MakerAmount.String(),
			"takerAmount":   order.TakerAmount.String(),
			"side":          strings.ToUpper(string(order.Side)),
			"feeRateBps":    "0",
			"nonce":         "0",
			"expiration":    "0",
			"signatureType": c.signatureType,
			"signature":     order.Signature,
			"maker":         c.funder,
			"signer":        c.signer.Address().Hex(),
			"taker":         zeroAddress,
		},
		"owner":     c.apiKey(),
		"orderType": string(order.Type),
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var apiResult APIOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}

	result := apiResult.ToDomainOrderResult(side)
	if !result.Success {
		return result, fmt.Errorf("polymarket/clob: order rejected: %w", rejectionError(result.Message))
	}

	return result, nil
}

// buildSignedOrder converts a price/size pair into the fixed-point amounts
// the exchange contract expects and signs the payload.
func (c *ClobClient) buildSignedOrder(tokenID string, side domain.OrderSide, typ domain.OrderType, price, size float64) (domain.Order, error) {
	if price <= 0 || price >= 1 || size <= 0 {
		return domain.Order{}, fmt.Errorf("polymarket/clob: price %g size %g: %w", price, size, domain.ErrInvalidOrder)
	}

	priceTicks := int64(price * 1e6)
	sizeUnits := int64(size * 1e6)
	notional := new(big.Int).Div(
		new(big.Int).Mul(big.NewInt(priceTicks), big.NewInt(sizeUnits)),
		big.NewInt(1e6),
	)
	tokens := big.NewInt(sizeUnits)

	order := domain.Order{
		TokenID:    tokenID,
		Wallet:     c.funder,
		Side:       side,
		Type:       typ,
		PriceTicks: priceTicks,
		SizeUnits:  sizeUnits,
		CreatedAt:  time.Now(),
	}

	var sideCode int
	switch side {
	case domain.OrderSideBuy:
		// Buying: give collateral, receive tokens.
		order.MakerAmount, order.TakerAmount = notional, tokens
		sideCode = 0
	case domain.OrderSideSell:
		order.MakerAmount, order.TakerAmount = tokens, notional
		sideCode = 1
	}

	salt := new(big.Int).SetInt64(time.Now().UnixNano())
	payload := crypto.OrderPayload{
		Salt:          salt.String(),
		Maker:         c.funder,
		Signer:        c.signer.Address().Hex(),
		Taker:         zeroAddress,
		TokenID:       tokenID,
		MakerAmount:   order.MakerAmount.String(),
		TakerAmount:   order.TakerAmount.String(),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          sideCode,
		SignatureType: c.signatureType,
	}
	order.ID = salt.String()

	sig, err := c.signer.SignOrder(payload)
	if err != nil {
		return domain.Order{}, fmt.Errorf("polymarket/clob: %w: %v", domain.ErrSigningFailed, err)
	}
	order.Signature = sig

	return order, nil
}

// CancelOrder cancels a single order by its ID.
func (c *ClobClient) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]any{
		"orderID": orderID,
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodDelete, "/order", body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: cancel order %s: %w", orderID, err)
	}

	var result struct {
		Success  bool   `json:"success"`
		ErrorMsg string `json:"errorMsg"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("polymarket/clob: decode cancel response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("polymarket/clob: cancel failed: %s", result.ErrorMsg)
	}

	return nil
}

// OrderStatus retrieves and normalizes the venue state of a single order.
func (c *ClobClient) OrderStatus(ctx context.Context, orderID string) (domain.OrderStatusReport, error) {
	path := fmt.Sprintf("/data/order/%s", url.PathEscape(orderID))

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.OrderStatusReport{}, fmt.Errorf("polymarket/clob: order status %s: %w", orderID, err)
	}

	var apiOrder APIOrder
	if err := json.Unmarshal(respBody, &apiOrder); err != nil {
		return domain.OrderStatusReport{}, fmt.Errorf("polymarket/clob: decode order: %w", err)
	}
	if apiOrder.ID == "" {
		apiOrder.ID = orderID
	}

	return apiOrder.ToStatusReport(), nil
}

// Balance fetches the available collateral balance in USD.
func (c *ClobClient) Balance(ctx context.Context) (float64, error) {
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, "/balance-allowance?asset_type=COLLATERAL", nil)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: balance: %w", err)
	}

	var bal APIBalance
	if err := json.Unmarshal(respBody, &bal); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode balance: %w", err)
	}

	return bal.USD(), nil
}

// BestBid fetches the current best bid for a token from the REST book
// endpoint. Used as the polling fallback when the websocket feed is down.
func (c *ClobClient) BestBid(ctx context.Context, tokenID string) (float64, error) {
	path := "/book?token_id=" + url.QueryEscape(tokenID)

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: book %s: %w", tokenID, err)
	}

	var book APIBook
	if err := json.Unmarshal(respBody, &book); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}

	return book.BestBid(), nil
}

// DeriveAPIKey performs the CLOB auth flow to obtain an HMAC API key. It
// signs a ClobAuth EIP-712 message and sends it with L1 headers to the
// derive-api-key endpoint. L1 requires POLY_ADDRESS, POLY_SIGNATURE,
// POLY_TIMESTAMP, POLY_NONCE. On success it populates the client's hmacAuth
// field.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) error {
	address := c.signer.Address().Hex()
	timestamp := time.Now().Unix()
	nonce := int64(0)

	sig, err := c.signer.SignAuthMessage(address, timestamp, nonce)
	if err != nil {
		return fmt.Errorf("polymarket/clob: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", fmt.Sprintf("%d", timestamp))
	req.Header.Set("POLY_NONCE", fmt.Sprintf("%d", nonce))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket/clob: auth request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polymarket/clob: auth failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return fmt.Errorf("polymarket/clob: decode auth response: %w", err)
	}

	c.hmacAuth = &crypto.HMACAuth{
		Key:        authResp.APIKey,
		Secret:     authResp.Secret,
		Passphrase: authResp.Passphrase,
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *ClobClient) apiKey() string {
	if c.hmacAuth == nil {
		return ""
	}
	return c.hmacAuth.Key
}

// doAuthenticatedRequest builds, signs (HMAC), sends, and reads an HTTP
// request against the CLOB API. It returns the raw response body.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Apply HMAC authentication headers. The signature covers the path
	// without the query string.
	if c.hmacAuth != nil {
		address := c.signer.Address().Hex()
		sigPath := path
		if i := strings.IndexByte(sigPath, '?'); i >= 0 {
			sigPath = sigPath[:i]
		}
		headers := c.hmacAuth.L2Headers(address, method, sigPath, bodyStr)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", rejectionError(bodyStr), bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// rejectionError classifies an order-rejection message into a sentinel so the
// retry wrapper never retries a structurally bad order.
func rejectionError(msg string) error {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "balance") || strings.Contains(lower, "allowance") {
		return domain.ErrInsufficientBalance
	}
	return domain.ErrInvalidOrder
}
