package bridge

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/Lisboaa111/Nillion-Keychain/internal/wire"
)

// HandlerFunc is the background router entry point a tab's messenger calls.
// The bool mirrors the router's drop semantics: false means no response was
// produced and none may be synthesized.
type HandlerFunc func(ctx context.Context, sender wire.Sender, msg wire.Message) (wire.Response, bool)

// Tab is one page context: its own bus, provider, and bridge, bound to a
// page URL. The bridge's messenger carries that URL as sender metadata on
// every message, the way the browser stamps sender.url on runtime messages.
type Tab struct {
	URL      string
	Bus      *Bus
	Provider *Provider
	Bridge   *Bridge
}

// Manager opens tabs against a single background handler and routes
// background-originated broadcasts back to the tabs whose origin matches.
// It satisfies the registry's Notifier so removing a connection force-
// disconnects the affected pages.
type Manager struct {
	handler     HandlerFunc
	extensionID string
	timeout     time.Duration
	logger      *slog.Logger

	mu   sync.Mutex
	tabs []*Tab
}

// NewManager builds a tab manager. timeout is the per-call page-side wait;
// zero selects DefaultRequestTimeout.
func NewManager(handler HandlerFunc, extensionID string, timeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		handler:     handler,
		extensionID: extensionID,
		timeout:     timeout,
		logger:      logger,
	}
}

// OpenTab creates a page context for pageURL, wires its provider and bridge
// onto a fresh bus, and starts the bridge relay.
func (m *Manager) OpenTab(pageURL string) *Tab {
	bus := NewBus()
	tab := &Tab{
		URL: pageURL,
		Bus: bus,
	}
	tab.Bridge = NewBridge(bus, &tabMessenger{
		handler: m.handler,
		sender:  wire.Sender{ExtensionID: m.extensionID, URL: pageURL},
		logger:  m.logger,
	}, m.logger)
	tab.Bridge.Start()
	tab.Provider = NewProvider(bus, m.timeout, m.logger)

	m.mu.Lock()
	m.tabs = append(m.tabs, tab)
	m.mu.Unlock()

	m.logger.Debug("opened tab", "url", pageURL)
	return tab
}

// CloseTab forgets a tab. Its bus keeps working for in-flight calls but no
// further broadcasts reach it.
func (m *Manager) CloseTab(tab *Tab) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tabs {
		if t == tab {
			m.tabs = append(m.tabs[:i], m.tabs[i+1:]...)
			return
		}
	}
}

// NotifyDisconnected broadcasts a disconnect to every tab whose page origin
// matches. Tabs on other origins never learn the event happened.
func (m *Manager) NotifyDisconnected(origin string) {
	m.mu.Lock()
	tabs := make([]*Tab, len(m.tabs))
	copy(tabs, m.tabs)
	m.mu.Unlock()

	for _, tab := range tabs {
		if pageOrigin(tab.URL) != origin {
			continue
		}
		tab.Bridge.OnBackgroundMessage(wire.Message{
			Type:   wire.MsgDisconnected,
			Origin: origin,
		})
	}
}

// tabMessenger delivers a page message to the background handler with the
// tab's fixed sender identity attached. A dropped message surfaces as a
// timeout on the page side, exactly as a swallowed runtime message would.
type tabMessenger struct {
	handler HandlerFunc
	sender  wire.Sender
	logger  *slog.Logger
}

func (t *tabMessenger) Send(ctx context.Context, msg wire.Message) (wire.Response, error) {
	resp, ok := t.handler(ctx, t.sender, msg)
	if !ok {
		t.logger.Debug("message dropped by background", "type", msg.Type)
		return wire.Response{}, ErrDropped
	}
	return resp, nil
}

func pageOrigin(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "unknown"
	}
	return u.Scheme + "://" + u.Host
}
