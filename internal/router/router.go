// Package router implements the privileged background message dispatcher:
// the single entry point for every content-script-originated message. It
// authenticates senders, consults the wallet and the connection registry,
// creates pending requests for anything needing human approval, opens the
// popup, and waits for the decision.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/Lisboaa111/Nillion-Keychain/internal/metrics"
	"github.com/Lisboaa111/Nillion-Keychain/internal/pending"
	"github.com/Lisboaa111/Nillion-Keychain/internal/registry"
	"github.com/Lisboaa111/Nillion-Keychain/internal/store"
	"github.com/Lisboaa111/Nillion-Keychain/internal/wallet"
	"github.com/Lisboaa111/Nillion-Keychain/internal/wire"
)

// PopupOpener opens the approval popup at the given extension URL. The URL
// query string is the sole channel by which the popup learns which pending
// request to render.
type PopupOpener interface {
	OpenPopup(popupURL string) error
}

// Auditor records approval decisions durably.
type Auditor interface {
	AppendAudit(entry *store.AuditEntry) error
}

// Config carries the router's fixed parameters.
type Config struct {
	// ExtensionID is the id of our own messaging context. Messages whose
	// sender carries a different id are dropped without a reply.
	ExtensionID string

	// ApprovalTimeout bounds the wait for a human decision. Zero selects
	// the pending store default.
	ApprovalTimeout time.Duration
}

// Router dispatches wire messages. It is the only writer of the pending
// store and the connection registry.
type Router struct {
	wallet   *wallet.Wallet
	registry *registry.Registry
	pending  *pending.Store
	popup    PopupOpener
	audit    Auditor
	cfg      Config
	logger   *slog.Logger
}

// New builds a Router. audit may be nil.
func New(w *wallet.Wallet, reg *registry.Registry, p *pending.Store, popup PopupOpener, audit Auditor, cfg Config, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		wallet:   w,
		registry: reg,
		pending:  p,
		popup:    popup,
		audit:    audit,
		cfg:      cfg,
		logger:   logger,
	}
}

// Handle processes one inbound message. The returned bool is false when the
// message was silently dropped because the sender is not the extension's own
// messaging context; no response must be delivered in that case, so the
// offending context learns nothing about internal state.
//
// The origin is computed strictly from the sender metadata the transport
// attached, never from the message body.
func (r *Router) Handle(ctx context.Context, sender wire.Sender, msg wire.Message) (wire.Response, bool) {
	if sender.ExtensionID != r.cfg.ExtensionID {
		metrics.DroppedSendersTotal.Inc()
		r.logger.Warn("dropping message from foreign sender",
			"sender_id", sender.ExtensionID,
			"type", msg.Type,
		)
		return wire.Response{}, false
	}

	metrics.MessagesTotal.WithLabelValues(msg.Type).Inc()
	origin := sender.Origin()

	return r.dispatch(ctx, origin, msg), true
}

func (r *Router) dispatch(ctx context.Context, origin string, msg wire.Message) wire.Response {
	switch msg.Type {
	case wire.MsgConnect:
		return r.connect(ctx, origin)

	case wire.MsgGetDID:
		return r.getDID(origin)

	case wire.MsgCheckConnection:
		return r.checkConnection(origin)

	case wire.MsgDisconnect:
		if err := r.registry.Remove(origin); err != nil {
			return wire.Fail(err)
		}
		return wire.Response{Success: true}

	case wire.MsgRemoveConnectedSite:
		if msg.Origin == "" {
			return wire.Failf("origin required")
		}
		if err := r.registry.Remove(msg.Origin); err != nil {
			return wire.Fail(err)
		}
		return wire.Response{Success: true}

	case wire.MsgGetConnectedSites:
		sites, err := r.registry.List()
		if err != nil {
			return wire.Fail(err)
		}
		return wire.Response{Success: true, Sites: sites}

	case wire.MsgGetPendingRequest:
		view, ok := r.pending.Get(msg.RequestID)
		if !ok {
			return wire.Failf("Not found")
		}
		return wire.Response{Success: true, Request: view}

	case wire.MsgApprovalResponse:
		if msg.Approved == nil {
			return wire.Failf("approved flag required")
		}
		if !r.pending.Resolve(msg.RequestID, *msg.Approved, msg.Result) {
			return wire.Failf("Not found")
		}
		return wire.Response{Success: true}

	case wire.MsgStoreData, wire.MsgRetrieveData, wire.MsgGrantAccess,
		wire.MsgRevokeAccess, wire.MsgListData:
		return r.dataOperation(ctx, origin, msg)

	default:
		return wire.Failf("Unknown type")
	}
}

// connect implements NILLION_CONNECT: an already-connected origin gets the
// cached DID without a prompt; anything else goes through human approval.
func (r *Router) connect(ctx context.Context, origin string) wire.Response {
	if !r.wallet.Initialized() {
		return wire.Failf("Wallet not setup")
	}
	if !r.wallet.IsUnlocked() {
		return wire.LockedResponse()
	}

	did, err := r.wallet.DID()
	if err != nil {
		return wire.Fail(err)
	}

	connected, err := r.registry.IsConnected(origin)
	if err != nil {
		return wire.Fail(err)
	}
	if connected {
		return wire.Response{Success: true, DID: did, AlreadyConnected: true}
	}

	payload, _ := json.Marshal(map[string]string{"origin": origin})
	if _, err := r.requestApproval(ctx, origin, wire.ActionConnect, payload); err != nil {
		return wire.Fail(err)
	}

	if err := r.registry.MarkConnected(origin); err != nil {
		return wire.Fail(err)
	}
	return wire.Response{Success: true, DID: did}
}

func (r *Router) getDID(origin string) wire.Response {
	connected, err := r.registry.IsConnected(origin)
	if err != nil {
		return wire.Fail(err)
	}
	if !connected {
		return wire.Failf("Not connected")
	}
	if !r.wallet.IsUnlocked() {
		return wire.LockedResponse()
	}
	did, err := r.wallet.DID()
	if err != nil {
		return wire.Fail(err)
	}
	return wire.Response{Success: true, DID: did}
}

func (r *Router) checkConnection(origin string) wire.Response {
	connected, err := r.registry.IsConnected(origin)
	if err != nil {
		return wire.Fail(err)
	}
	if !connected {
		return wire.Response{Success: true, Connected: false}
	}

	did, err := r.wallet.DID()
	if err != nil {
		return wire.Fail(err)
	}
	return wire.Response{
		Success:   true,
		Connected: true,
		DID:       did,
		Locked:    !r.wallet.IsUnlocked(),
	}
}

// dataOperation gates every data-bearing action. Locked wallets fail fast
// with the machine-readable locked flag and no popup; unlocked wallets get a
// fresh pending request per call. Connection status never bypasses approval
// here.
func (r *Router) dataOperation(ctx context.Context, origin string, msg wire.Message) wire.Response {
	if !r.wallet.IsUnlocked() {
		return wire.LockedResponse()
	}

	action := wire.ActionForMessage(msg.Type)
	result, err := r.requestApproval(ctx, origin, action, msg.Payload)
	if err != nil {
		return wire.Fail(err)
	}

	var resp wire.Response
	if err := json.Unmarshal(result, &resp); err != nil {
		return wire.Fail(fmt.Errorf("malformed approval result: %w", err))
	}
	return resp
}

// requestApproval creates a pending request, opens the popup, and waits for
// the decision. Every exit path removes the record and leaves an audit
// entry; errors are returned, never thrown past the handler boundary.
func (r *Router) requestApproval(ctx context.Context, origin, action string, payload json.RawMessage) (json.RawMessage, error) {
	id := r.pending.Create(origin, action, payload)

	q := url.Values{}
	q.Set("request", id)
	q.Set("action", action)
	popupURL := "popup.html?" + q.Encode()

	if err := r.popup.OpenPopup(popupURL); err != nil {
		r.pending.Drop(id)
		r.recordAudit(origin, action, "error")
		return nil, fmt.Errorf("open popup: %w", err)
	}

	r.logger.Info("awaiting approval",
		"request_id", id,
		"origin", origin,
		"action", action,
	)

	result, err := r.pending.Await(ctx, id, r.cfg.ApprovalTimeout)
	switch {
	case err == nil:
		r.recordAudit(origin, action, "approved")
		return result, nil
	case errors.Is(err, pending.ErrRejected):
		r.recordAudit(origin, action, "rejected")
		return nil, err
	case errors.Is(err, pending.ErrTimeout):
		r.recordAudit(origin, action, "timeout")
		return nil, err
	default:
		r.recordAudit(origin, action, "error")
		return nil, err
	}
}

func (r *Router) recordAudit(origin, action, outcome string) {
	if r.audit == nil {
		return
	}
	err := r.audit.AppendAudit(&store.AuditEntry{
		ID:      uuid.NewString(),
		Time:    time.Now().UTC(),
		Origin:  origin,
		Action:  action,
		Outcome: outcome,
	})
	if err != nil {
		r.logger.Error("failed to append audit entry", "error", err)
	}
}
