package popup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Lisboaa111/Nillion-Keychain/internal/relayapi"
	"github.com/Lisboaa111/Nillion-Keychain/internal/secretvault"
	"github.com/Lisboaa111/Nillion-Keychain/internal/session"
	"github.com/Lisboaa111/Nillion-Keychain/internal/store"
	"github.com/Lisboaa111/Nillion-Keychain/internal/wallet"
	"github.com/Lisboaa111/Nillion-Keychain/internal/wire"
)

// fakeBackend records every message and answers from a script.
type fakeBackend struct {
	sent      []wire.Message
	pending   map[string]*wire.PendingView
	responses map[string]wire.Response
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		pending:   make(map[string]*wire.PendingView),
		responses: make(map[string]wire.Response),
	}
}

func (f *fakeBackend) Send(_ context.Context, msg wire.Message) (wire.Response, error) {
	f.sent = append(f.sent, msg)
	switch msg.Type {
	case wire.MsgGetPendingRequest:
		view, ok := f.pending[msg.RequestID]
		if !ok {
			return wire.Failf("Not found"), nil
		}
		return wire.Response{Success: true, Request: view}, nil
	case wire.MsgApprovalResponse:
		if resp, ok := f.responses[msg.Type]; ok {
			return resp, nil
		}
		return wire.Response{Success: true}, nil
	}
	return wire.Failf("Unknown type"), nil
}

func (f *fakeBackend) lastApproval(t *testing.T) wire.Message {
	t.Helper()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Type == wire.MsgApprovalResponse {
			return f.sent[i]
		}
	}
	t.Fatal("no APPROVAL_RESPONSE sent")
	return wire.Message{}
}

// fakeClient is a scripted vendor-storage client.
type fakeClient struct {
	createResult json.RawMessage
	readResult   json.RawMessage
	refs         []secretvault.DocumentRef
	err          error

	createParams *secretvault.CreateDataParams
	delegation   string
	grantACL     *secretvault.ACL
	revokedFrom  string
}

func (f *fakeClient) CreateData(_ context.Context, delegation string, params secretvault.CreateDataParams) (json.RawMessage, error) {
	f.delegation = delegation
	f.createParams = &params
	return f.createResult, f.err
}

func (f *fakeClient) ReadData(_ context.Context, _ secretvault.DocumentRef) (json.RawMessage, error) {
	return f.readResult, f.err
}

func (f *fakeClient) GrantAccess(_ context.Context, _ secretvault.DocumentRef, acl secretvault.ACL) error {
	f.grantACL = &acl
	return f.err
}

func (f *fakeClient) RevokeAccess(_ context.Context, _ secretvault.DocumentRef, grantee string) error {
	f.revokedFrom = grantee
	return f.err
}

func (f *fakeClient) DeleteData(_ context.Context, _ secretvault.DocumentRef) error {
	return f.err
}

func (f *fakeClient) ListDataReferences(_ context.Context) ([]secretvault.DocumentRef, error) {
	return f.refs, f.err
}

func newTestExecutor(t *testing.T, client *fakeClient) (*Executor, *fakeBackend, *wallet.Wallet) {
	t.Helper()
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "keychain.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	w := wallet.New(s, session.New(), 0, nil)
	if _, err := w.Setup("correct horse battery"); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	backend := newFakeBackend()
	factory := func(kp secretvault.Keypair, nodeURLs []string) (secretvault.UserClient, error) {
		return client, nil
	}
	return New(backend, w, factory, nil, []string{"http://node.example"}, nil), backend, w
}

func TestLoadParsesPopupURL(t *testing.T) {
	exec, backend, _ := newTestExecutor(t, &fakeClient{})
	backend.pending["req-1"] = &wire.PendingView{
		ID:     "req-1",
		Origin: "https://app.example",
		Action: wire.ActionConnect,
	}

	view, err := exec.Load(context.Background(), "popup.html?request=req-1&action=connect")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if view.ID != "req-1" || view.Action != wire.ActionConnect {
		t.Errorf("view = %+v", view)
	}
}

func TestLoadMissingRequestParam(t *testing.T) {
	exec, _, _ := newTestExecutor(t, &fakeClient{})
	if _, err := exec.Load(context.Background(), "popup.html?action=connect"); !errors.Is(err, ErrNoRequest) {
		t.Fatalf("err = %v, want ErrNoRequest", err)
	}
}

func TestLoadUnknownRequest(t *testing.T) {
	exec, _, _ := newTestExecutor(t, &fakeClient{})
	if _, err := exec.Load(context.Background(), "popup.html?request=ghost&action=connect"); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("err = %v, want ErrRequestNotFound", err)
	}
}

func TestApproveConnectHasNoSideEffect(t *testing.T) {
	client := &fakeClient{}
	exec, backend, _ := newTestExecutor(t, client)

	view := &wire.PendingView{ID: "req-1", Origin: "https://app.example", Action: wire.ActionConnect}
	if err := exec.Approve(context.Background(), view); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	msg := backend.lastApproval(t)
	if msg.RequestID != "req-1" {
		t.Errorf("RequestID = %q", msg.RequestID)
	}
	if msg.Approved == nil || !*msg.Approved {
		t.Error("approval must carry approved=true")
	}
	if client.createParams != nil {
		t.Error("connect approval must not touch storage")
	}
}

func TestApproveStoreDataExecutesAndResolves(t *testing.T) {
	client := &fakeClient{createResult: json.RawMessage(`["doc-42"]`)}
	exec, backend, w := newTestExecutor(t, client)

	data, _ := json.Marshal(map[string]any{
		"collection": "c1",
		"data":       map[string]int{"v": 7},
		"delegation": "tok-1",
		"builderDid": "did:nil:builder",
	})
	view := &wire.PendingView{ID: "req-1", Origin: "https://app.example", Action: wire.ActionStoreData, Data: data}
	if err := exec.Approve(context.Background(), view); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if client.delegation != "tok-1" {
		t.Errorf("delegation = %q", client.delegation)
	}
	did, _ := w.DID()
	if client.createParams.Owner != did {
		t.Errorf("owner = %q, want wallet DID %q", client.createParams.Owner, did)
	}
	if client.createParams.Collection != "c1" {
		t.Errorf("collection = %q", client.createParams.Collection)
	}
	acl := client.createParams.ACL
	if acl.Grantee != "did:nil:builder" || !acl.Read || acl.Write || !acl.Execute {
		t.Errorf("default acl = %+v, want builder read+execute", acl)
	}

	msg := backend.lastApproval(t)
	var result wire.Response
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if result.Document != "doc-42" {
		t.Errorf("document = %q, want doc-42", result.Document)
	}
	if result.Collection != "c1" {
		t.Errorf("collection = %q", result.Collection)
	}
}

func TestApproveStoreDataMintsDelegationThroughRelay(t *testing.T) {
	relaySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/store/prepare" {
			t.Errorf("relay path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"success":true,"data":{"delegation":"minted-tok","collection":"c1","nodeUrls":["http://node-a"]}}`)
	}))
	defer relaySrv.Close()
	relay, err := relayapi.New(relaySrv.URL, relaySrv.Client())
	if err != nil {
		t.Fatalf("relayapi.New: %v", err)
	}

	client := &fakeClient{createResult: json.RawMessage(`["doc-9"]`)}
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "keychain.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	defer s.Close()
	w := wallet.New(s, session.New(), 0, nil)
	if _, err := w.Setup("correct horse battery"); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	backend := newFakeBackend()
	factory := func(kp secretvault.Keypair, nodeURLs []string) (secretvault.UserClient, error) {
		return client, nil
	}
	exec := New(backend, w, factory, relay, nil, nil)

	data, _ := json.Marshal(map[string]any{"collection": "c1", "data": map[string]int{"v": 1}})
	view := &wire.PendingView{ID: "req-1", Origin: "https://app.example", Action: wire.ActionStoreData, Data: data}
	if err := exec.Approve(context.Background(), view); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if client.delegation != "minted-tok" {
		t.Errorf("delegation = %q, want minted-tok", client.delegation)
	}
	var result wire.Response
	if err := json.Unmarshal(backend.lastApproval(t).Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.Success || result.Document != "doc-9" {
		t.Errorf("result = %+v", result)
	}
}

func TestApproveExecutionFailureStillResolvesApproved(t *testing.T) {
	client := &fakeClient{err: errors.New("node unreachable")}
	exec, backend, _ := newTestExecutor(t, client)

	data, _ := json.Marshal(map[string]any{"collection": "c1", "data": map[string]int{"v": 1}})
	view := &wire.PendingView{ID: "req-1", Origin: "https://app.example", Action: wire.ActionStoreData, Data: data}
	if err := exec.Approve(context.Background(), view); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	msg := backend.lastApproval(t)
	if msg.Approved == nil || !*msg.Approved {
		t.Fatal("execution failure must not flip the decision to rejected")
	}
	var result wire.Response
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Success {
		t.Fatal("result should carry the execution failure")
	}
	if result.Error != "node unreachable" {
		t.Errorf("error = %q", result.Error)
	}
}

func TestApproveWhileLockedReportsLocked(t *testing.T) {
	client := &fakeClient{}
	exec, backend, w := newTestExecutor(t, client)
	if err := w.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	data, _ := json.Marshal(map[string]any{"collection": "c1", "data": map[string]int{"v": 1}})
	view := &wire.PendingView{ID: "req-1", Origin: "https://app.example", Action: wire.ActionStoreData, Data: data}
	if err := exec.Approve(context.Background(), view); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	var result wire.Response
	if err := json.Unmarshal(backend.lastApproval(t).Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Success || !result.Locked {
		t.Errorf("result = %+v, want locked failure", result)
	}
}

func TestApproveRetrieveData(t *testing.T) {
	client := &fakeClient{readResult: json.RawMessage(`{"secret":"x"}`)}
	exec, backend, _ := newTestExecutor(t, client)

	data, _ := json.Marshal(map[string]string{"collection": "c1", "document": "doc-1"})
	view := &wire.PendingView{ID: "req-1", Origin: "https://app.example", Action: wire.ActionRetrieveData, Data: data}
	if err := exec.Approve(context.Background(), view); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	var result wire.Response
	if err := json.Unmarshal(backend.lastApproval(t).Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.Success || string(result.Data) != `{"secret":"x"}` {
		t.Errorf("result = %+v", result)
	}
}

func TestApproveGrantAccessDefaultsToReadOnly(t *testing.T) {
	client := &fakeClient{}
	exec, backend, _ := newTestExecutor(t, client)

	data, _ := json.Marshal(map[string]string{
		"collection": "c1",
		"document":   "doc-1",
		"grantee":    "did:nil:grantee",
	})
	view := &wire.PendingView{ID: "req-1", Origin: "https://app.example", Action: wire.ActionGrantAccess, Data: data}
	if err := exec.Approve(context.Background(), view); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if client.grantACL == nil {
		t.Fatal("GrantAccess never called")
	}
	if client.grantACL.Grantee != "did:nil:grantee" {
		t.Errorf("grantee = %q", client.grantACL.Grantee)
	}
	if !client.grantACL.Read || client.grantACL.Write || client.grantACL.Execute {
		t.Errorf("default acl = %+v, want read-only", client.grantACL)
	}
	var result wire.Response
	if err := json.Unmarshal(backend.lastApproval(t).Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Message != "Access granted" {
		t.Errorf("message = %q", result.Message)
	}
}

func TestApproveRevokeAccess(t *testing.T) {
	client := &fakeClient{}
	exec, _, _ := newTestExecutor(t, client)

	data, _ := json.Marshal(map[string]string{
		"collection": "c1",
		"document":   "doc-1",
		"grantee":    "did:nil:grantee",
	})
	view := &wire.PendingView{ID: "req-1", Origin: "https://app.example", Action: wire.ActionRevokeAccess, Data: data}
	if err := exec.Approve(context.Background(), view); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if client.revokedFrom != "did:nil:grantee" {
		t.Errorf("revokedFrom = %q", client.revokedFrom)
	}
}

func TestApproveListData(t *testing.T) {
	client := &fakeClient{refs: []secretvault.DocumentRef{
		{Collection: "c1", Document: "doc-1"},
		{Collection: "c2", Document: "doc-2"},
	}}
	exec, backend, _ := newTestExecutor(t, client)

	view := &wire.PendingView{ID: "req-1", Origin: "https://app.example", Action: wire.ActionListData}
	if err := exec.Approve(context.Background(), view); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	var result wire.Response
	if err := json.Unmarshal(backend.lastApproval(t).Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	var refs []secretvault.DocumentRef
	if err := json.Unmarshal(result.Data, &refs); err != nil {
		t.Fatalf("unmarshal refs: %v", err)
	}
	if len(refs) != 2 || refs[0].Document != "doc-1" {
		t.Errorf("refs = %+v", refs)
	}
}

func TestRejectSendsDenial(t *testing.T) {
	exec, backend, _ := newTestExecutor(t, &fakeClient{})
	if err := exec.Reject(context.Background(), "req-1"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	msg := backend.lastApproval(t)
	if msg.Approved == nil || *msg.Approved {
		t.Error("rejection must carry approved=false")
	}
	if len(msg.Result) != 0 {
		t.Errorf("rejection carries result %s", msg.Result)
	}
}

func TestRejectUnknownRequest(t *testing.T) {
	exec, backend, _ := newTestExecutor(t, &fakeClient{})
	backend.responses[wire.MsgApprovalResponse] = wire.Failf("Not found")
	if err := exec.Reject(context.Background(), "ghost"); err == nil || err.Error() != "Not found" {
		t.Fatalf("err = %v, want Not found", err)
	}
}
