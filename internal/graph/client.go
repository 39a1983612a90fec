// Package graph is the outbound client for the upstream social-graph
// API: OAuth code exchanges, page enumeration and the linked-account
// probe. It deals only in the handful of shapes the credential core
// needs; the wider proxied surface lives elsewhere.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the upstream API root used when no override is
// configured.
const DefaultBaseURL = "https://graph.facebook.com/v23.0"

// UpstreamError carries a non-success response from the upstream API.
// The message is forwarded to the caller as-is; this layer never
// retries on its own.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream rejected request (status %d): %s", e.Status, e.Message)
}

// Token is the upstream token-exchange response.
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Page is one entry of the account enumeration.
type Page struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	AccessToken string   `json:"access_token"`
	Category    string   `json:"category"`
	Tasks       []string `json:"tasks"`
}

// LinkedAccount is the social profile attached to a page, when one
// exists.
type LinkedAccount struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Client issues requests against the upstream API. The zero HTTP
// client is replaced by one with a sane timeout.
type Client struct {
	BaseURL     string
	AppID       string
	AppSecret   string
	RedirectURI string
	HTTP        *http.Client
}

// NewClient builds a client for the given OAuth application.
func NewClient(baseURL, appID, appSecret, redirectURI string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:     baseURL,
		AppID:       appID,
		AppSecret:   appSecret,
		RedirectURI: redirectURI,
		HTTP:        &http.Client{Timeout: 15 * time.Second},
	}
}

// AuthorizeURL returns the upstream consent dialog URL for the given
// CSRF state token and permission scopes.
func (c *Client) AuthorizeURL(state string, scopes []string) string {
	q := url.Values{}
	q.Set("client_id", c.AppID)
	q.Set("redirect_uri", c.RedirectURI)
	q.Set("state", state)
	if len(scopes) > 0 {
		q.Set("scope", strings.Join(scopes, ","))
	}
	return "https://www.facebook.com/v23.0/dialog/oauth?" + q.Encode()
}

// ExchangeCode swaps an authorization code for a short-lived user
// token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (Token, error) {
	q := url.Values{}
	q.Set("client_id", c.AppID)
	q.Set("client_secret", c.AppSecret)
	q.Set("redirect_uri", c.RedirectURI)
	q.Set("code", code)
	var tok Token
	if err := c.get(ctx, "/oauth/access_token", q, &tok); err != nil {
		return Token{}, err
	}
	return tok, nil
}

// ExchangeLongLived swaps a short-lived user token for a long-lived
// one (roughly 60 days).
func (c *Client) ExchangeLongLived(ctx context.Context, shortLived string) (Token, error) {
	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", c.AppID)
	q.Set("client_secret", c.AppSecret)
	q.Set("fb_exchange_token", shortLived)
	var tok Token
	if err := c.get(ctx, "/oauth/access_token", q, &tok); err != nil {
		return Token{}, err
	}
	return tok, nil
}

// ListPages enumerates the pages the user token can administer, each
// with its own page token.
func (c *Client) ListPages(ctx context.Context, userToken string) ([]Page, error) {
	q := url.Values{}
	q.Set("access_token", userToken)
	q.Set("fields", "id,name,access_token,category,tasks")
	var resp struct {
		Data []Page `json:"data"`
	}
	if err := c.get(ctx, "/me/accounts", q, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ProbeLinkedAccount asks whether a page has a linked social account.
// Absence is not an error: the second return is false when the page
// has none.
func (c *Client) ProbeLinkedAccount(ctx context.Context, pageID, pageToken string) (LinkedAccount, bool, error) {
	q := url.Values{}
	q.Set("access_token", pageToken)
	q.Set("fields", "instagram_business_account{id,username}")
	var resp struct {
		Linked *LinkedAccount `json:"instagram_business_account"`
	}
	if err := c.get(ctx, "/"+pageID, q, &resp); err != nil {
		return LinkedAccount{}, false, err
	}
	if resp.Linked == nil || resp.Linked.ID == "" {
		return LinkedAccount{}, false, nil
	}
	return *resp.Linked, true, nil
}

// get issues one GET and decodes the JSON body into out. Non-2xx
// responses become UpstreamError with the upstream's own message when
// it sent one.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("call upstream %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read upstream response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{Status: resp.StatusCode, Message: upstreamMessage(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode upstream response from %s: %w", path, err)
	}
	return nil
}

// upstreamMessage pulls the error message out of the platform's
// standard error envelope, falling back to the raw body.
func upstreamMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return string(body)
}
