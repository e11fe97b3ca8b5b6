package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/naveenspark/nftvault/pkg/domain"
)

// SendCodeResult is the outcome of a successful send_code call.
type SendCodeResult struct {
	PhoneCodeHash string
	Type          string
}

// VerifyResult is the outcome of a successful verify_code or verify_2fa call.
// PasswordRequired is only ever set by verify_code; when it is, no session is issued.
type VerifyResult struct {
	PasswordRequired bool
	SessionKey       string
	Username         string
	FirstName        string
}

// AccountLabel returns the handle of the verified account, or its first name.
func (r *VerifyResult) AccountLabel() string {
	if r.Username != "" {
		return r.Username
	}
	return r.FirstName
}

// envelope is the {success, error} wrapper every auth endpoint replies with.
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

func (e envelope) check() error {
	if e.Success == nil {
		return &ProtocolError{Reason: "missing success field"}
	}
	if !*e.Success {
		if e.Error == "" {
			return &ProtocolError{Reason: "failure without error message"}
		}
		return &RejectedError{StatusCode: http.StatusOK, Message: e.Error}
	}
	return nil
}

type sendCodeResponse struct {
	envelope
	PhoneCodeHash string `json:"phone_code_hash"`
	Type          string `json:"type"`
}

type verifyResponse struct {
	envelope
	PasswordRequired bool `json:"2fa_required"`
	User             json.RawMessage `json:"user"`
	Username   string `json:"username"`
	SessionKey string `json:"session_key"`
}

func (r *verifyResponse) result() *VerifyResult {
	out := &VerifyResult{
		PasswordRequired: r.PasswordRequired,
		SessionKey:       r.SessionKey,
		Username:         r.Username,
	}
	out.FirstName = firstName(r.User)
	return out
}

// firstName reads user.first_name when user is an object. Any other shape
// (string, null, absent) yields "".
func firstName(raw json.RawMessage) string {
	var u struct {
		FirstName string `json:"first_name"`
	}
	if len(raw) == 0 || raw[0] != '{' {
		return ""
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return ""
	}
	return u.FirstName
}

// Client is the auth/custody backend API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// DefaultTimeout bounds a request when SetTimeout was not called.
const DefaultTimeout = 30 * time.Second

// New creates a new API client. A nil logger discards request logs.
func New(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: logger.Named("client"),
	}
}

// SetTimeout bounds every request made by c. Values <= 0 are ignored.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}

// SendCode asks the backend to deliver a one-time code to phone.
func (c *Client) SendCode(ctx context.Context, phone string) (*SendCodeResult, error) {
	var resp sendCodeResponse
	if err := c.post(ctx, "/api/send_code", map[string]string{"phone": phone}, &resp); err != nil {
		return nil, fmt.Errorf("client.SendCode: %w", err)
	}
	if err := resp.check(); err != nil {
		return nil, fmt.Errorf("client.SendCode: %w", err)
	}
	if resp.PhoneCodeHash == "" {
		return nil, fmt.Errorf("client.SendCode: %w", &ProtocolError{Reason: "missing phone_code_hash"})
	}
	return &SendCodeResult{PhoneCodeHash: resp.PhoneCodeHash, Type: resp.Type}, nil
}

// VerifyCode checks a one-time code against the hash returned by SendCode.
func (c *Client) VerifyCode(ctx context.Context, phone, code, phoneCodeHash string) (*VerifyResult, error) {
	body := map[string]string{
		"phone":           phone,
		"code":            code,
		"phone_code_hash": phoneCodeHash,
	}
	var resp verifyResponse
	if err := c.post(ctx, "/api/verify_code", body, &resp); err != nil {
		return nil, fmt.Errorf("client.VerifyCode: %w", err)
	}
	if err := resp.check(); err != nil {
		return nil, fmt.Errorf("client.VerifyCode: %w", err)
	}
	if !resp.PasswordRequired && resp.SessionKey == "" {
		return nil, fmt.Errorf("client.VerifyCode: %w", &ProtocolError{Reason: "missing session_key"})
	}
	return resp.result(), nil
}

// VerifyPassword submits the secondary password for accounts that require it.
func (c *Client) VerifyPassword(ctx context.Context, phone, password string) (*VerifyResult, error) {
	var resp verifyResponse
	if err := c.post(ctx, "/api/verify_2fa", map[string]string{"phone": phone, "password": password}, &resp); err != nil {
		return nil, fmt.Errorf("client.VerifyPassword: %w", err)
	}
	if err := resp.check(); err != nil {
		return nil, fmt.Errorf("client.VerifyPassword: %w", err)
	}
	if resp.SessionKey == "" {
		return nil, fmt.Errorf("client.VerifyPassword: %w", &ProtocolError{Reason: "missing session_key"})
	}
	r := resp.result()
	r.PasswordRequired = false
	return r, nil
}

// Withdraw submits a withdrawal authorized by req.SessionKey.
// Retries of the same withdrawal must reuse req.IdempotencyKey.
func (c *Client) Withdraw(ctx context.Context, req domain.WithdrawalRequest) error {
	var header http.Header
	if req.IdempotencyKey != "" {
		header = http.Header{"Idempotency-Key": []string{req.IdempotencyKey}}
	}
	var resp envelope
	if err := c.doRequest(ctx, http.MethodPost, "/api/withdraw", req, &resp, header); err != nil {
		return fmt.Errorf("client.Withdraw: %w", err)
	}
	if err := resp.check(); err != nil {
		return fmt.Errorf("client.Withdraw: %w", err)
	}
	return nil
}

// ListInventory fetches the items held for a platform user.
func (c *Client) ListInventory(ctx context.Context, userID string) ([]domain.Item, error) {
	params := url.Values{}
	params.Set("user_id", userID)

	var resp struct {
		Inventory []domain.Item `json:"inventory"`
		Error     string        `json:"error"`
	}
	if err := c.get(ctx, "/api/inventory?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("client.ListInventory: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("client.ListInventory: %w", &RejectedError{StatusCode: http.StatusOK, Message: resp.Error})
	}
	if resp.Inventory == nil {
		return []domain.Item{}, nil
	}
	return resp.Inventory, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out, nil)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any, header http.Header) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := ksuid.New().String()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("path", req.URL.Path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	c.logger.Debug("request done",
		zap.String("method", method),
		zap.String("path", req.URL.Path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr envelope
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			// An explicit {success:false} is a rejection at any status. A bare
			// {error} is one only on 4xx; on 5xx it stays connectivity-class.
			explicit := apiErr.Success != nil && !*apiErr.Success
			if explicit || resp.StatusCode < 500 {
				return &RejectedError{StatusCode: resp.StatusCode, Message: apiErr.Error}
			}
			return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &ProtocolError{Reason: "decode response: " + err.Error()}
		}
	}
	return nil
}
