package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Lisboaa111/Nillion-Keychain/internal/secretvault"
	"github.com/Lisboaa111/Nillion-Keychain/internal/wire"
)

// DefaultRequestTimeout is the page-side wait per call. It is deliberately
// shorter than the background approval window: it protects the page from a
// bridge that is unreachable, not from a slow human. A provider-side timeout
// leaves the background's pending request orphaned until the background's
// own timeout garbage-collects it.
const DefaultRequestTimeout = 60 * time.Second

var (
	// ErrNotConnected is returned for data calls before a successful connect.
	ErrNotConnected = errors.New("Not connected")

	// ErrTimeout is returned when no response arrived within the page-side
	// window.
	ErrTimeout = errors.New("Timeout")
)

// StoreParams are the page-supplied inputs to storeData.
type StoreParams struct {
	Collection string           `json:"collection"`
	Data       json.RawMessage  `json:"data"`
	Delegation string           `json:"delegation,omitempty"`
	BuilderDID string           `json:"builderDid,omitempty"`
	NodeURLs   []string         `json:"nodeUrls,omitempty"`
	ACL        *secretvault.ACL `json:"acl,omitempty"`
}

// RetrieveParams are the inputs to retrieveData.
type RetrieveParams struct {
	Collection string   `json:"collection"`
	Document   string   `json:"document"`
	NodeURLs   []string `json:"nodeUrls,omitempty"`
}

// AccessParams are the inputs to grantAccess and revokeAccess.
type AccessParams struct {
	Collection  string           `json:"collection"`
	Document    string           `json:"document"`
	Grantee     string           `json:"grantee"`
	Permissions *secretvault.ACL `json:"permissions,omitempty"`
	Delegation  string           `json:"delegation"`
	NodeURLs    []string         `json:"nodeUrls,omitempty"`
}

// ListParams are the inputs to listData.
type ListParams struct {
	NodeURLs []string `json:"nodeUrls,omitempty"`
}

// Provider is the page-realm wallet API. It is fully attacker-observable:
// it validates inputs, correlates calls by a page-local incrementing id, and
// relays opaque requests. It never holds or sees key material.
type Provider struct {
	bus     *Bus
	timeout time.Duration
	logger  *slog.Logger

	mu           sync.Mutex
	nextID       int64
	waiters      map[int64]chan wire.Response
	connected    bool
	userDID      string
	onDisconnect func(reason string)
}

// NewProvider wires a provider onto the page bus. timeout <= 0 selects
// DefaultRequestTimeout.
func NewProvider(bus *Bus, timeout time.Duration, logger *slog.Logger) *Provider {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{
		bus:     bus,
		timeout: timeout,
		logger:  logger,
		waiters: make(map[int64]chan wire.Response),
	}
	bus.Listen(EventResponse, p.handleResponse)
	bus.Listen(EventForceDisconnect, p.handleForceDisconnect)
	return p
}

// IsConnected reports the provider's cached connection state.
func (p *Provider) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// UserDID returns the cached DID, empty until connected.
func (p *Provider) UserDID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userDID
}

// OnDisconnect registers a callback fired when the background force-
// disconnects this page.
func (p *Provider) OnDisconnect(fn func(reason string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDisconnect = fn
}

// Check refreshes the cached connection state from the background. Errors
// are swallowed: an unreachable background simply reads as not connected.
func (p *Provider) Check(ctx context.Context) {
	resp, err := p.request(ctx, wire.MsgCheckConnection, nil)
	if err != nil || !resp.Connected {
		return
	}
	p.mu.Lock()
	p.connected = true
	p.userDID = resp.DID
	p.mu.Unlock()
}

// Connect asks the wallet for a connection and caches the resulting DID.
func (p *Provider) Connect(ctx context.Context) (string, error) {
	resp, err := p.request(ctx, wire.MsgConnect, nil)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	p.connected = true
	p.userDID = resp.DID
	p.mu.Unlock()
	return resp.DID, nil
}

// Disconnect removes this origin's connection.
func (p *Provider) Disconnect(ctx context.Context) error {
	if _, err := p.request(ctx, wire.MsgDisconnect, nil); err != nil {
		return err
	}
	p.mu.Lock()
	p.connected = false
	p.userDID = ""
	p.mu.Unlock()
	return nil
}

// GetDID returns the wallet DID for a connected origin.
func (p *Provider) GetDID(ctx context.Context) (string, error) {
	resp, err := p.request(ctx, wire.MsgGetDID, nil)
	if err != nil {
		return "", err
	}
	return resp.DID, nil
}

// StoreData stores a document, subject to human approval.
func (p *Provider) StoreData(ctx context.Context, params StoreParams) (json.RawMessage, error) {
	if !p.IsConnected() {
		return nil, ErrNotConnected
	}
	if params.Collection == "" || len(params.Data) == 0 {
		return nil, errors.New("collection and data required")
	}
	resp, err := p.send(ctx, wire.MsgStoreData, params)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// RetrieveData reads a document, subject to human approval.
func (p *Provider) RetrieveData(ctx context.Context, params RetrieveParams) (json.RawMessage, error) {
	if !p.IsConnected() {
		return nil, ErrNotConnected
	}
	if params.Collection == "" || params.Document == "" {
		return nil, errors.New("collection and document required")
	}
	resp, err := p.send(ctx, wire.MsgRetrieveData, params)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GrantAccess adds an ACL entry on a document, subject to human approval.
func (p *Provider) GrantAccess(ctx context.Context, params AccessParams) (wire.Response, error) {
	if !p.IsConnected() {
		return wire.Response{}, ErrNotConnected
	}
	if params.Collection == "" || params.Document == "" || params.Grantee == "" || params.Delegation == "" {
		return wire.Response{}, errors.New("Missing required fields")
	}
	return p.send(ctx, wire.MsgGrantAccess, params)
}

// RevokeAccess removes an ACL entry on a document, subject to human approval.
func (p *Provider) RevokeAccess(ctx context.Context, params AccessParams) (wire.Response, error) {
	if !p.IsConnected() {
		return wire.Response{}, ErrNotConnected
	}
	if params.Collection == "" || params.Document == "" || params.Grantee == "" || params.Delegation == "" {
		return wire.Response{}, errors.New("Missing required fields")
	}
	return p.send(ctx, wire.MsgRevokeAccess, params)
}

// ListData lists the wallet's stored documents, subject to human approval.
func (p *Provider) ListData(ctx context.Context, params ListParams) (json.RawMessage, error) {
	if !p.IsConnected() {
		return nil, ErrNotConnected
	}
	resp, err := p.send(ctx, wire.MsgListData, params)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (p *Provider) send(ctx context.Context, msgType string, params any) (wire.Response, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return wire.Response{}, err
	}
	return p.request(ctx, msgType, payload)
}

// request assigns the next correlation id, registers a resolver for it, and
// dispatches the page event. Responses may arrive out of order relative to
// issuance when multiple calls are in flight, so resolvers are keyed by id
// rather than matched in FIFO order.
func (p *Provider) request(ctx context.Context, msgType string, payload json.RawMessage) (wire.Response, error) {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	ch := make(chan wire.Response, 1)
	p.waiters[id] = ch
	p.mu.Unlock()

	detail, err := json.Marshal(requestDetail{ID: id, Type: msgType, Payload: payload})
	if err != nil {
		p.dropWaiter(id)
		return wire.Response{}, err
	}
	p.bus.Dispatch(Event{Name: EventRequest, Detail: detail})

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if !resp.Success {
			return resp, errors.New(errText(resp.Error))
		}
		return resp, nil
	case <-timer.C:
		p.dropWaiter(id)
		return wire.Response{}, ErrTimeout
	case <-ctx.Done():
		p.dropWaiter(id)
		return wire.Response{}, ctx.Err()
	}
}

func (p *Provider) handleResponse(e Event) {
	var detail responseDetail
	if err := json.Unmarshal(e.Detail, &detail); err != nil {
		p.logger.Warn("dropping malformed response event", "error", err)
		return
	}

	p.mu.Lock()
	ch, ok := p.waiters[detail.ID]
	if ok {
		delete(p.waiters, detail.ID)
	}
	p.mu.Unlock()
	if !ok {
		// Late response after the page-side timeout; nothing waits anymore.
		return
	}

	var resp wire.Response
	if err := json.Unmarshal(detail.Response, &resp); err != nil {
		resp = wire.Failf("Error")
	}
	ch <- resp
}

func (p *Provider) handleForceDisconnect(e Event) {
	var detail disconnectDetail
	_ = json.Unmarshal(e.Detail, &detail)

	p.mu.Lock()
	p.connected = false
	p.userDID = ""
	fn := p.onDisconnect
	p.mu.Unlock()

	if fn != nil {
		reason := detail.Reason
		if reason == "" {
			reason = "Disconnected by user"
		}
		fn(reason)
	}
}

func (p *Provider) dropWaiter(id int64) {
	p.mu.Lock()
	delete(p.waiters, id)
	p.mu.Unlock()
}

func errText(s string) string {
	if s == "" {
		return "Error"
	}
	return s
}
