package services

import (
	"context"

	"github.com/relaymesh/courier/domain/models"
)

/* relay-facing interfaces */

// Session is the connected handle to a single relay. Implementations
// must be safe for concurrent use; every protocol operation of an
// agent may call Send and Poll from its own goroutine.
type Session interface {
	// Send delivers a sealed blob to the mailbox of the given recipient
	// on the named channel, via the relay at destAddress.
	Send(ctx context.Context, destAddress string, destPubKey []byte, channel string, blob []byte) error
	// Poll fetches up to limit items addressed to the session owner on
	// the named channel. An empty channel yields an empty slice, not an
	// error. The returned cursor is an opaque token of the relay.
	Poll(ctx context.Context, channel string, limit int) ([]models.Delivery, string, error)
}

// Lookup resolves a public key to a reachable endpoint. A missing peer
// is reported as a nil endpoint, not an error.
type Lookup interface {
	Lookup(ctx context.Context, pubKey []byte, typeFilter string) (*models.Endpoint, error)
}

// PortForwarder opens an externally reachable port for a fixed lease,
// e.g. via UPnP. Relay nodes refresh leases periodically when one is
// injected.
type PortForwarder interface {
	Open(port int, protocol string, lease int64) error
}
