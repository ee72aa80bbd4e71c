package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/Lisboaa111/Nillion-Keychain/internal/wire"
)

// ErrDropped signals the background discarded a message without producing a
// response. The bridge must stay silent too; the page-side timeout is the
// only observable effect.
var ErrDropped = errors.New("message dropped")

// Messenger is the extension messaging channel into the background router.
// Only the isolated bridge realm holds one; page code can never reach it.
// The transport attaches the sender metadata itself.
type Messenger interface {
	Send(ctx context.Context, msg wire.Message) (wire.Response, error)
}

// Bridge is the isolated-realm relay. It forwards provider events to the
// background and re-dispatches structured responses (and force-disconnect
// broadcasts) back into the page realm.
type Bridge struct {
	bus       *Bus
	messenger Messenger
	logger    *slog.Logger
}

// NewBridge wires a bridge onto the page bus. Call Start to begin relaying.
func NewBridge(bus *Bus, messenger Messenger, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{bus: bus, messenger: messenger, logger: logger}
}

// Start registers the request listener.
func (b *Bridge) Start() {
	b.bus.Listen(EventRequest, b.relay)
}

func (b *Bridge) relay(e Event) {
	var req requestDetail
	if err := json.Unmarshal(e.Detail, &req); err != nil {
		b.logger.Warn("dropping malformed page request", "error", err)
		return
	}

	resp, err := b.messenger.Send(context.Background(), wire.Message{
		Type:    req.Type,
		Payload: req.Payload,
	})
	if errors.Is(err, ErrDropped) {
		return
	}
	if err != nil {
		resp = wire.Failf(errMessage(err))
	}

	b.respond(req.ID, resp)
}

func (b *Bridge) respond(id int64, resp wire.Response) {
	raw, err := json.Marshal(resp)
	if err != nil {
		b.logger.Error("failed to encode response", "error", err)
		raw = []byte(`{"success":false,"error":"Error"}`)
	}
	detail, _ := json.Marshal(responseDetail{ID: id, Response: raw})
	b.bus.Dispatch(Event{Name: EventResponse, Detail: detail})
}

// OnBackgroundMessage handles broadcasts originating from the background.
// A NILLION_DISCONNECTED broadcast is re-dispatched into the page realm so
// the injected provider can invalidate its local state reactively.
func (b *Bridge) OnBackgroundMessage(msg wire.Message) {
	if msg.Type != wire.MsgDisconnected {
		return
	}
	detail, _ := json.Marshal(disconnectDetail{Origin: msg.Origin})
	b.bus.Dispatch(Event{Name: EventForceDisconnect, Detail: detail})
}

func errMessage(err error) string {
	if err == nil || err.Error() == "" {
		return "Error"
	}
	return err.Error()
}
