// Package popup implements the approval surface's executor: the privileged
// context that renders a pending request, and on approval performs the actual
// vendor-storage operation with the wallet keypair before resolving the
// request. Page code only ever sees the structured result; the keypair never
// leaves this side of the boundary.
package popup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/Lisboaa111/Nillion-Keychain/internal/relayapi"
	"github.com/Lisboaa111/Nillion-Keychain/internal/secretvault"
	"github.com/Lisboaa111/Nillion-Keychain/internal/wallet"
	"github.com/Lisboaa111/Nillion-Keychain/internal/wire"
)

// Backend is the messaging channel back into the background router.
type Backend interface {
	Send(ctx context.Context, msg wire.Message) (wire.Response, error)
}

var (
	// ErrNoRequest is returned when the popup URL names no pending request.
	ErrNoRequest = errors.New("no pending request in popup URL")

	// ErrRequestNotFound is returned when the named request is gone, either
	// consumed or expired.
	ErrRequestNotFound = errors.New("pending request not found")
)

// Executor drives one approval flow. It is built once per daemon and handed
// a popup URL per invocation.
type Executor struct {
	backend  Backend
	wallet   *wallet.Wallet
	factory  secretvault.ClientFactory
	relay    *relayapi.Client
	nodeURLs []string
	logger   *slog.Logger
}

// New builds an Executor. factory nil selects the default HTTP client; relay
// may be nil, in which case store requests must carry their own delegation.
func New(backend Backend, w *wallet.Wallet, factory secretvault.ClientFactory, relay *relayapi.Client, nodeURLs []string, logger *slog.Logger) *Executor {
	if factory == nil {
		factory = secretvault.NewHTTPClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		backend:  backend,
		wallet:   w,
		factory:  factory,
		relay:    relay,
		nodeURLs: nodeURLs,
		logger:   logger,
	}
}

// Load parses a popup URL of the form "popup.html?request=<id>&action=<name>"
// and fetches the pending request it names.
func (e *Executor) Load(ctx context.Context, popupURL string) (*wire.PendingView, error) {
	u, err := url.Parse(popupURL)
	if err != nil {
		return nil, fmt.Errorf("parse popup url: %w", err)
	}
	id := u.Query().Get("request")
	if id == "" {
		return nil, ErrNoRequest
	}

	resp, err := e.backend.Send(ctx, wire.Message{
		Type:      wire.MsgGetPendingRequest,
		RequestID: id,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.Request == nil {
		return nil, ErrRequestNotFound
	}
	return resp.Request, nil
}

// Approve executes the approved action and resolves the pending request.
// Execution failures do not turn into rejections: the request is still
// resolved approved, with a failure result, so the page learns the real
// error and the audit trail records what the human actually decided.
func (e *Executor) Approve(ctx context.Context, view *wire.PendingView) error {
	result := e.execute(ctx, view)

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	approved := true
	resp, err := e.backend.Send(ctx, wire.Message{
		Type:      wire.MsgApprovalResponse,
		RequestID: view.ID,
		Approved:  &approved,
		Result:    raw,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Error)
	}
	return nil
}

// Reject resolves the pending request as denied.
func (e *Executor) Reject(ctx context.Context, id string) error {
	approved := false
	resp, err := e.backend.Send(ctx, wire.Message{
		Type:      wire.MsgApprovalResponse,
		RequestID: id,
		Approved:  &approved,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Error)
	}
	return nil
}

// execute performs the vendor-storage side effect for a data action. Connect
// has no side effect; approval itself is the effect.
func (e *Executor) execute(ctx context.Context, view *wire.PendingView) wire.Response {
	if view.Action == wire.ActionConnect {
		return wire.Response{Success: true}
	}

	kp, err := e.wallet.Keypair()
	if err != nil {
		if errors.Is(err, wallet.ErrLocked) {
			return wire.LockedResponse()
		}
		return wire.Fail(err)
	}

	switch view.Action {
	case wire.ActionStoreData:
		return e.storeData(ctx, kp, view.Data)
	case wire.ActionRetrieveData:
		return e.retrieveData(ctx, kp, view.Data)
	case wire.ActionGrantAccess:
		return e.grantAccess(ctx, kp, view.Data)
	case wire.ActionRevokeAccess:
		return e.revokeAccess(ctx, kp, view.Data)
	case wire.ActionListData:
		return e.listData(ctx, kp, view.Data)
	default:
		return wire.Failf("Unknown type")
	}
}

type storePayload struct {
	Collection string           `json:"collection"`
	Data       json.RawMessage  `json:"data"`
	Delegation string           `json:"delegation"`
	BuilderDID string           `json:"builderDid"`
	NodeURLs   []string         `json:"nodeUrls"`
	ACL        *secretvault.ACL `json:"acl"`
}

func (e *Executor) storeData(ctx context.Context, kp secretvault.Keypair, data json.RawMessage) wire.Response {
	var p storePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return wire.Fail(fmt.Errorf("malformed store payload: %w", err))
	}

	// Requests without a delegation get one minted through the builder
	// relay, when configured.
	if p.Delegation == "" && e.relay != nil {
		prepared, err := e.relay.PrepareStore(ctx, relayapi.PrepareStoreParams{
			UserDID:    kp.DID(),
			Collection: p.Collection,
			Data:       p.Data,
		})
		if err != nil {
			return wire.Fail(err)
		}
		p.Delegation = prepared.Delegation
		if len(p.NodeURLs) == 0 {
			p.NodeURLs = prepared.NodeURLs
		}
	}

	client, err := e.client(kp, p.NodeURLs)
	if err != nil {
		return wire.Fail(err)
	}

	// Default grant: the builder may read and execute over the document but
	// not rewrite it. The owner keeps full control implicitly.
	acl := secretvault.ACL{Grantee: p.BuilderDID, Read: true, Write: false, Execute: true}
	if p.BuilderDID == "" {
		acl.Grantee = kp.DID()
		acl.Execute = false
	}
	if p.ACL != nil {
		acl = *p.ACL
	}

	created, err := client.CreateData(ctx, p.Delegation, secretvault.CreateDataParams{
		Owner:      kp.DID(),
		ACL:        acl,
		Collection: p.Collection,
		Data:       []json.RawMessage{p.Data},
	})
	if err != nil {
		return wire.Fail(err)
	}

	resp := wire.Response{Success: true, Collection: p.Collection, Result: created}
	// The node answers a write with the list of created ids.
	var ids []string
	if json.Unmarshal(created, &ids) == nil && len(ids) > 0 {
		resp.Document = ids[0]
	}
	return resp
}

type refPayload struct {
	Collection string   `json:"collection"`
	Document   string   `json:"document"`
	NodeURLs   []string `json:"nodeUrls"`
}

func (e *Executor) retrieveData(ctx context.Context, kp secretvault.Keypair, data json.RawMessage) wire.Response {
	var p refPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return wire.Fail(fmt.Errorf("malformed retrieve payload: %w", err))
	}
	client, err := e.client(kp, p.NodeURLs)
	if err != nil {
		return wire.Fail(err)
	}
	doc, err := client.ReadData(ctx, secretvault.DocumentRef{
		Collection: p.Collection,
		Document:   p.Document,
		Owner:      kp.DID(),
	})
	if err != nil {
		return wire.Fail(err)
	}
	return wire.Response{Success: true, Data: doc}
}

type accessPayload struct {
	Collection  string           `json:"collection"`
	Document    string           `json:"document"`
	Grantee     string           `json:"grantee"`
	Permissions *secretvault.ACL `json:"permissions"`
	NodeURLs    []string         `json:"nodeUrls"`
}

func (e *Executor) grantAccess(ctx context.Context, kp secretvault.Keypair, data json.RawMessage) wire.Response {
	var p accessPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return wire.Fail(fmt.Errorf("malformed grant payload: %w", err))
	}
	client, err := e.client(kp, p.NodeURLs)
	if err != nil {
		return wire.Fail(err)
	}

	acl := secretvault.ACL{Grantee: p.Grantee, Read: true}
	if p.Permissions != nil {
		acl = *p.Permissions
		acl.Grantee = p.Grantee
	}

	err = client.GrantAccess(ctx, secretvault.DocumentRef{
		Collection: p.Collection,
		Document:   p.Document,
		Owner:      kp.DID(),
	}, acl)
	if err != nil {
		return wire.Fail(err)
	}
	return wire.Response{Success: true, Message: "Access granted"}
}

func (e *Executor) revokeAccess(ctx context.Context, kp secretvault.Keypair, data json.RawMessage) wire.Response {
	var p accessPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return wire.Fail(fmt.Errorf("malformed revoke payload: %w", err))
	}
	client, err := e.client(kp, p.NodeURLs)
	if err != nil {
		return wire.Fail(err)
	}
	err = client.RevokeAccess(ctx, secretvault.DocumentRef{
		Collection: p.Collection,
		Document:   p.Document,
		Owner:      kp.DID(),
	}, p.Grantee)
	if err != nil {
		return wire.Fail(err)
	}
	return wire.Response{Success: true, Message: "Access revoked"}
}

type listPayload struct {
	NodeURLs []string `json:"nodeUrls"`
}

func (e *Executor) listData(ctx context.Context, kp secretvault.Keypair, data json.RawMessage) wire.Response {
	var p listPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return wire.Fail(fmt.Errorf("malformed list payload: %w", err))
		}
	}
	client, err := e.client(kp, p.NodeURLs)
	if err != nil {
		return wire.Fail(err)
	}
	refs, err := client.ListDataReferences(ctx)
	if err != nil {
		return wire.Fail(err)
	}
	raw, err := json.Marshal(refs)
	if err != nil {
		return wire.Fail(err)
	}
	return wire.Response{Success: true, Data: raw}
}

// client builds a vendor client against the payload's node set, falling back
// to the daemon's configured nodes.
func (e *Executor) client(kp secretvault.Keypair, nodeURLs []string) (secretvault.UserClient, error) {
	if len(nodeURLs) == 0 {
		nodeURLs = e.nodeURLs
	}
	return e.factory(kp, nodeURLs)
}
