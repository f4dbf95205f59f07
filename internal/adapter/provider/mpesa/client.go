// Package mpesa is the Safaricom Daraja STK push gateway.
package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"paylor/config"

	"github.com/rs/zerolog"
)

const (
	sandboxURL    = "https://sandbox.safaricom.co.ke"
	productionURL = "https://api.safaricom.co.ke"

	tokenPath = "/oauth/v1/generate?grant_type=client_credentials"
	stkPath   = "/mpesa/stkpush/v1/processrequest"
	queryPath = "/mpesa/stkpushquery/v1/query"

	// tokens are refreshed this long before Daraja expires them
	tokenSkew = 60 * time.Second
)

// eat is the Daraja timestamp zone.
var eat = time.FixedZone("EAT", 3*60*60)

// Client implements ports.PaymentProvider against the Daraja API.
type Client struct {
	cfg         config.MpesaConfig
	baseURL     string
	callbackURL string
	httpClient  *http.Client
	now         func() time.Time
	log         zerolog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a Daraja client. cfg.BaseURL overrides the environment default.
func NewClient(cfg config.MpesaConfig, log zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sandboxURL
		if cfg.Environment == "production" {
			baseURL = productionURL
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		cfg:         cfg,
		baseURL:     baseURL,
		callbackURL: withCallbackToken(cfg.CallbackURL, cfg.CallbackToken),
		httpClient:  &http.Client{Timeout: timeout},
		now:         time.Now,
		log:         log,
	}
}

// CallbackTokenParam is the query parameter carrying the callback secret.
const CallbackTokenParam = "token"

// withCallbackToken appends the shared secret Daraja echoes back on every
// callback. An empty token leaves the URL untouched.
func withCallbackToken(raw, token string) string {
	if token == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(CallbackTokenParam, token)
	u.RawQuery = q.Encode()
	return u.String()
}

// apiError is the Daraja error body.
type apiError struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// APIError is returned for non-2xx Daraja responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("daraja: http %d", e.StatusCode)
	}
	return fmt.Sprintf("daraja: http %d: %s %s", e.StatusCode, e.Code, e.Message)
}

// accessToken returns a cached OAuth token, fetching a new one when expired.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding token: %w", err)
	}
	if body.AccessToken == "" {
		return "", errors.New("daraja: empty access token")
	}

	ttl := time.Hour
	if secs, err := strconv.Atoi(body.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	if ttl > tokenSkew {
		ttl -= tokenSkew
	}

	c.token = body.AccessToken
	c.tokenExpiry = c.now().Add(ttl)
	return c.token, nil
}

// post sends an authenticated JSON request and decodes a 200 response into out.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
	}
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body apiError
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Code = body.ErrorCode
		apiErr.Message = body.ErrorMessage
	}
	return apiErr
}

// password is base64(shortcode + passkey + timestamp).
func (c *Client) password(timestamp string) string {
	return encodePassword(c.cfg.ShortCode, c.cfg.Passkey, timestamp)
}

func (c *Client) timestamp() string {
	return c.now().In(eat).Format("20060102150405")
}
