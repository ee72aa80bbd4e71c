package popup

import (
	"context"
	"errors"

	"github.com/Lisboaa111/Nillion-Keychain/internal/router"
	"github.com/Lisboaa111/Nillion-Keychain/internal/wire"
)

// RouterBackend adapts the in-process background router into a Backend. The
// popup runs in the extension's own context, so its sender identity is the
// extension id itself with no page URL.
type RouterBackend struct {
	Router *router.Router
	Sender wire.Sender
}

// Send delivers one message to the router. The popup's own sender identity
// is always accepted; a drop here means misconfiguration, not an attack.
func (b *RouterBackend) Send(ctx context.Context, msg wire.Message) (wire.Response, error) {
	resp, ok := b.Router.Handle(ctx, b.Sender, msg)
	if !ok {
		return wire.Response{}, errors.New("message dropped: popup sender not recognized")
	}
	return resp, nil
}
