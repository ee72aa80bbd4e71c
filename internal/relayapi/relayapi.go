// Package relayapi is the client for the builder relay: the hosted service
// that registers builders, creates collections, and mints the delegation
// tokens the vendor storage nodes require for writes. The keychain calls it
// on behalf of the wallet owner; no key material is ever sent, only DIDs and
// signed artifacts.
package relayapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNoBaseURL is returned when a client is built without a relay URL.
var ErrNoBaseURL = errors.New("no relay URL configured")

// Client talks JSON to the relay service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a relay client. httpClient nil selects a 30s-timeout default.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}, nil
}

// RegisterBuilderParams registers a builder DID with the relay.
type RegisterBuilderParams struct {
	DID  string `json:"did"`
	Name string `json:"name"`
}

// RegisterBuilder registers the builder with the relay. Registering an
// already-known DID is not an error; the relay answers idempotently.
func (c *Client) RegisterBuilder(ctx context.Context, params RegisterBuilderParams) error {
	_, err := c.post(ctx, "/api/builder/register", params)
	return err
}

// CreateCollectionParams describes a new collection.
type CreateCollectionParams struct {
	Name   string          `json:"name"`
	Owner  string          `json:"owner"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// CollectionResult identifies a created collection.
type CollectionResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateCollection creates a collection owned by the given DID.
func (c *Client) CreateCollection(ctx context.Context, params CreateCollectionParams) (*CollectionResult, error) {
	data, err := c.post(ctx, "/api/collections/create", params)
	if err != nil {
		return nil, err
	}
	var result CollectionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	return &result, nil
}

// DelegationParams requests a delegation token for a user operation.
type DelegationParams struct {
	UserDID    string `json:"userDid"`
	Collection string `json:"collection"`
	Operation  string `json:"operation,omitempty"`
}

// Delegation is a relay-minted token the storage nodes accept as authority.
type Delegation struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CreateDelegation mints a delegation token for the user DID.
func (c *Client) CreateDelegation(ctx context.Context, params DelegationParams) (*Delegation, error) {
	return c.delegation(ctx, "/api/delegation/create", params)
}

// GrantAccessDelegation mints a token scoped to an ACL grant.
func (c *Client) GrantAccessDelegation(ctx context.Context, params DelegationParams) (*Delegation, error) {
	return c.delegation(ctx, "/api/delegation/grant-access", params)
}

// RevokeAccessDelegation mints a token scoped to an ACL revocation.
func (c *Client) RevokeAccessDelegation(ctx context.Context, params DelegationParams) (*Delegation, error) {
	return c.delegation(ctx, "/api/delegation/revoke-access", params)
}

// PrepareStoreParams asks the relay to stage a write.
type PrepareStoreParams struct {
	UserDID    string          `json:"userDid"`
	Collection string          `json:"collection"`
	Data       json.RawMessage `json:"data"`
}

// PreparedStore carries everything a node write needs.
type PreparedStore struct {
	Delegation string   `json:"delegation"`
	Collection string   `json:"collection"`
	NodeURLs   []string `json:"nodeUrls"`
}

// PrepareStore stages a write: the relay validates the collection, mints a
// delegation, and returns the node set to write against.
func (c *Client) PrepareStore(ctx context.Context, params PrepareStoreParams) (*PreparedStore, error) {
	data, err := c.post(ctx, "/api/store/prepare", params)
	if err != nil {
		return nil, err
	}
	var result PreparedStore
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode prepared store: %w", err)
	}
	return &result, nil
}

// PrepareReadParams asks the relay to stage a read.
type PrepareReadParams struct {
	UserDID    string `json:"userDid"`
	Collection string `json:"collection"`
	Document   string `json:"document"`
}

// PrepareRead stages a read the same way PrepareStore stages a write.
func (c *Client) PrepareRead(ctx context.Context, params PrepareReadParams) (*PreparedStore, error) {
	data, err := c.post(ctx, "/api/data/prepare-read", params)
	if err != nil {
		return nil, err
	}
	var result PreparedStore
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode prepared read: %w", err)
	}
	return &result, nil
}

// Subscription is the relay's view of a DID's subscription.
type Subscription struct {
	Active    bool      `json:"active"`
	Plan      string    `json:"plan,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// SubscriptionStatus fetches the subscription state for a DID.
func (c *Client) SubscriptionStatus(ctx context.Context, did string) (*Subscription, error) {
	data, err := c.get(ctx, "/api/subscription/status/"+url.PathEscape(did))
	if err != nil {
		return nil, err
	}
	var result Subscription
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	return &result, nil
}

func (c *Client) delegation(ctx context.Context, path string, params DelegationParams) (*Delegation, error) {
	data, err := c.post(ctx, path, params)
	if err != nil {
		return nil, err
	}
	var result Delegation
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode delegation: %w", err)
	}
	return &result, nil
}

type relayResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data))
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var decoded relayResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", res.StatusCode, err)
	}
	if res.StatusCode >= 400 || !decoded.Success {
		msg := decoded.Error
		if msg == "" {
			msg = fmt.Sprintf("relay returned status %d", res.StatusCode)
		}
		return nil, errors.New(msg)
	}
	return decoded.Data, nil
}
