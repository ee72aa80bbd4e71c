package secretvault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoNodes is returned when a client is built without node URLs.
var ErrNoNodes = errors.New("no node URLs configured")

// DocumentRef identifies a stored document.
type DocumentRef struct {
	Collection string `json:"collection"`
	Document   string `json:"document"`
	Owner      string `json:"owner,omitempty"`
}

// CreateDataParams are the inputs to a delegated document write.
type CreateDataParams struct {
	Owner      string            `json:"owner"`
	ACL        ACL               `json:"acl"`
	Collection string            `json:"collection"`
	Data       []json.RawMessage `json:"data"`
}

// UserClient is the vendor secure-storage client, consumed as a black box.
// Encryption-at-rest and secret sharing across nodes are the vendor's
// concern; this interface only carries opaque JSON in and out.
type UserClient interface {
	CreateData(ctx context.Context, delegation string, params CreateDataParams) (json.RawMessage, error)
	ReadData(ctx context.Context, ref DocumentRef) (json.RawMessage, error)
	GrantAccess(ctx context.Context, ref DocumentRef, acl ACL) error
	RevokeAccess(ctx context.Context, ref DocumentRef, grantee string) error
	DeleteData(ctx context.Context, ref DocumentRef) error
	ListDataReferences(ctx context.Context) ([]DocumentRef, error)
}

// ClientFactory builds a UserClient bound to a keypair and node set.
type ClientFactory func(kp Keypair, nodeURLs []string) (UserClient, error)

// NewHTTPClient is the default ClientFactory: a thin JSON relay speaking
// plain REST to the first configured node.
func NewHTTPClient(kp Keypair, nodeURLs []string) (UserClient, error) {
	if len(nodeURLs) == 0 {
		return nil, ErrNoNodes
	}
	return &httpClient{
		kp:      kp,
		baseURL: nodeURLs[0],
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type httpClient struct {
	kp      Keypair
	baseURL string
	http    *http.Client
}

type nodeResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (c *httpClient) CreateData(ctx context.Context, delegation string, params CreateDataParams) (json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/data/create", params, delegation)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *httpClient) ReadData(ctx context.Context, ref DocumentRef) (json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/data/read", ref, "")
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *httpClient) GrantAccess(ctx context.Context, ref DocumentRef, acl ACL) error {
	body := struct {
		DocumentRef
		ACL ACL `json:"acl"`
	}{DocumentRef: ref, ACL: acl}
	_, err := c.do(ctx, http.MethodPost, "/v1/data/acl/grant", body, "")
	return err
}

func (c *httpClient) RevokeAccess(ctx context.Context, ref DocumentRef, grantee string) error {
	body := struct {
		DocumentRef
		Grantee string `json:"grantee"`
	}{DocumentRef: ref, Grantee: grantee}
	_, err := c.do(ctx, http.MethodPost, "/v1/data/acl/revoke", body, "")
	return err
}

func (c *httpClient) DeleteData(ctx context.Context, ref DocumentRef) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/data/delete", ref, "")
	return err
}

func (c *httpClient) ListDataReferences(ctx context.Context) ([]DocumentRef, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/data/references", nil, "")
	if err != nil {
		return nil, err
	}
	var refs []DocumentRef
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &refs); err != nil {
			return nil, fmt.Errorf("decode references: %w", err)
		}
	}
	return refs, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body any, delegation string) (*nodeResponse, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-DID", c.kp.DID())
	if delegation != "" {
		req.Header.Set("Authorization", "Bearer "+delegation)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("node request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var decoded nodeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", res.StatusCode, err)
	}
	if res.StatusCode >= 400 || !decoded.Success {
		msg := decoded.Error
		if msg == "" {
			msg = fmt.Sprintf("node returned status %d", res.StatusCode)
		}
		return nil, errors.New(msg)
	}
	return &decoded, nil
}
