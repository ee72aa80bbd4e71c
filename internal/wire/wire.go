// Package wire defines the message taxonomy spoken between the content
// bridge, the background router, and the popup, plus the structured response
// shape every handler returns. Nothing here carries key material.
package wire

import (
	"encoding/json"
	"errors"
	"net/url"
)

// Message types accepted by the background router.
const (
	MsgConnect             = "NILLION_CONNECT"
	MsgGetDID              = "NILLION_GET_DID"
	MsgCheckConnection     = "NILLION_CHECK_CONNECTION"
	MsgDisconnect          = "NILLION_DISCONNECT"
	MsgRemoveConnectedSite = "REMOVE_CONNECTED_SITE"
	MsgGetConnectedSites   = "GET_CONNECTED_SITES"
	MsgGetPendingRequest   = "GET_PENDING_REQUEST"
	MsgStoreData           = "NILLION_STORE_DATA"
	MsgRetrieveData        = "NILLION_RETRIEVE_DATA"
	MsgGrantAccess         = "NILLION_GRANT_ACCESS"
	MsgRevokeAccess        = "NILLION_REVOKE_ACCESS"
	MsgListData            = "NILLION_LIST_DATA"
	MsgApprovalResponse    = "APPROVAL_RESPONSE"

	// MsgDisconnected is broadcast from the background to bridges when an
	// origin is disconnected, so page-side state invalidates without reload.
	MsgDisconnected = "NILLION_DISCONNECTED"
)

// Action names rendered in the approval popup.
const (
	ActionConnect      = "connect"
	ActionStoreData    = "storeData"
	ActionRetrieveData = "retrieveData"
	ActionGrantAccess  = "grantAccess"
	ActionRevokeAccess = "revokeAccess"
	ActionListData     = "listData"
	ActionUnknown      = "unknown"
)

var actionNames = map[string]string{
	MsgStoreData:    ActionStoreData,
	MsgRetrieveData: ActionRetrieveData,
	MsgGrantAccess:  ActionGrantAccess,
	MsgRevokeAccess: ActionRevokeAccess,
	MsgListData:     ActionListData,
}

// ActionForMessage maps a data-bearing message type to its action name.
func ActionForMessage(msgType string) string {
	if a, ok := actionNames[msgType]; ok {
		return a
	}
	return ActionUnknown
}

// ErrValidation is returned when a required request field is missing or
// malformed. It is surfaced to the caller immediately, no retry.
var ErrValidation = errors.New("validation failed")

// Message is the JSON envelope sent to the background router.
// RequestID, Approved and Result are only set on APPROVAL_RESPONSE;
// Origin is only set on REMOVE_CONNECTED_SITE.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Origin    string          `json:"origin,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Approved  *bool           `json:"approved,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// PendingView is the popup-visible snapshot of a pending request.
type PendingView struct {
	ID     string          `json:"id"`
	Origin string          `json:"origin"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Response is the structured result delivered back through the messaging
// channel. Handlers never throw across the boundary; every failure is
// converted into Success=false plus an error message.
type Response struct {
	Success          bool            `json:"success"`
	Error            string          `json:"error,omitempty"`
	Locked           bool            `json:"locked,omitempty"`
	Connected        bool            `json:"connected,omitempty"`
	AlreadyConnected bool            `json:"alreadyConnected,omitempty"`
	DID              string          `json:"did,omitempty"`
	Sites            []string        `json:"sites,omitempty"`
	Request          *PendingView    `json:"request,omitempty"`
	Collection       string          `json:"collection,omitempty"`
	Document         string          `json:"document,omitempty"`
	Data             json.RawMessage `json:"data,omitempty"`
	Message          string          `json:"message,omitempty"`
	Result           json.RawMessage `json:"result,omitempty"`
}

// Fail converts an error into a failure response.
func Fail(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

// Failf builds a failure response from a plain message.
func Failf(msg string) Response {
	return Response{Success: false, Error: msg}
}

// LockedResponse is the fail-fast answer for operations that require an
// unlocked wallet. The machine-readable Locked flag lets callers prompt for
// unlock instead of treating it as a generic failure.
func LockedResponse() Response {
	return Response{
		Success: false,
		Error:   "Wallet is locked. Please unlock your wallet first.",
		Locked:  true,
	}
}

// Sender is transport-attached metadata about the message source. It is
// populated by the messaging channel itself, never from the message body,
// which is the anti-spoofing invariant the router depends on.
type Sender struct {
	// ExtensionID identifies the messaging context. The router drops
	// messages whose ExtensionID does not match its own.
	ExtensionID string

	// URL is the page URL of the tab the message came from.
	URL string
}

// Origin returns the scheme://host[:port] origin of the sender's page URL,
// or "unknown" when the URL is absent or unparseable.
func (s Sender) Origin() string {
	if s.URL == "" {
		return "unknown"
	}
	u, err := url.Parse(s.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "unknown"
	}
	return u.Scheme + "://" + u.Host
}
