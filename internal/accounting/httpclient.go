package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

// postingTimeout bounds a single journal posting attempt. A timeout is treated
// the same as any other posting failure by the payment engine.
const postingTimeout = 30 * time.Second

// HTTPClient talks to a REST accounting provider (Endraaj, QuickBooks bridge).
type HTTPClient struct {
	conn       Connection
	httpClient *http.Client
}

// NewHTTPClient constructs a client for the given connection.
func NewHTTPClient(conn Connection) *HTTPClient {
	return &HTTPClient{
		conn: conn,
		httpClient: &http.Client{
			Timeout: postingTimeout,
		},
	}
}

func (c *HTTPClient) GetAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := c.getJSON(ctx, "/v1/accounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *HTTPClient) GetAccountsByType(ctx context.Context, accountType AccountType) ([]Account, error) {
	var accounts []Account
	query := url.Values{"type": []string{string(accountType)}}
	if err := c.getJSON(ctx, "/v1/accounts", query, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *HTTPClient) GetAccountByID(ctx context.Context, accountID string) (*Account, error) {
	var account Account
	err := c.getJSON(ctx, "/v1/accounts/"+url.PathEscape(accountID), nil, &account)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (c *HTTPClient) CreateJournalEntry(ctx context.Context, entry JournalEntry) (JournalResult, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return JournalResult{}, fmt.Errorf("accounting: encode journal entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.conn.BaseURL+"/v1/journal-entries", bytes.NewReader(payload))
	if err != nil {
		return JournalResult{}, err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return JournalResult{}, shared.Externalf("accounting: post journal entry: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var result JournalResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return JournalResult{}, shared.Externalf("accounting: decode posting result: %v", err)
	}
	if resp.StatusCode >= 400 || !result.Success {
		reason := result.ErrorMessage
		if reason == "" {
			reason = fmt.Sprintf("provider returned status %d", resp.StatusCode)
		}
		result.Success = false
		result.ErrorMessage = reason
		return result, shared.Externalf("accounting: journal entry rejected: %s", reason)
	}
	return result, nil
}

func (c *HTTPClient) TestConnection(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.conn.BaseURL+"/v1/health", nil)
	if err != nil {
		return false, err
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode < 400, nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.conn.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.conn.AccessToken)
	}
	if c.conn.RealmID != "" {
		req.Header.Set("X-Realm-ID", c.conn.RealmID)
	}
}

type statusError struct {
	code int
	path string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("accounting: %s returned status %d", e.path, e.code)
}

func isStatus(err error, code int) bool {
	se, ok := err.(*statusError)
	return ok && se.code == code
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, dest any) error {
	target := c.conn.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shared.Externalf("accounting: get %s: %v", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return &statusError{code: resp.StatusCode, path: path}
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
