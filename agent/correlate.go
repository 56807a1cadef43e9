package agent

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/relaymesh/courier/domain"
	"github.com/relaymesh/courier/domain/models"
)

// newRequestID draws a correlation id from a cryptographically
// adequate source. Collisions within the lifetime of one outstanding
// call are accepted as negligible.
func newRequestID() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf(`generating request id failed - %v`, err)
	}

	return binary.BigEndian.Uint64(buf[:]), nil
}

// ReplyChannel derives the channel a response to the given request id
// travels on. Both the requester and the responder must derive the
// exact same name, so the textual convention is fixed:
// base + "@" + decimal id.
func ReplyChannel(base string, id uint64) string {
	return base + `@` + strconv.FormatUint(id, 10)
}

// awaitReply polls the given channel until an item arrives, sleeping
// for the configured delay between empty polls. Only empty polls are
// retried; transport errors propagate immediately. The loop has no
// timeout of its own and runs until ctx is cancelled or expires.
func (a *App[InReq, InResp, InMsg, OutReq, OutResp, OutMsg]) awaitReply(
	ctx context.Context, channel string, senderPubKey []byte) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, awaitErr(err)
		}

		items, _, err := a.session.Poll(ctx, channel, 1)
		if err != nil {
			// a ctx-honoring session reports the expired deadline through
			// the poll itself; that is a timeout, not a network failure
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, awaitErr(err)
			}
			return nil, &domain.TransportError{Op: `poll`, Err: err}
		}

		if len(items) > 0 {
			return a.open(&items[0], senderPubKey)
		}

		select {
		case <-ctx.Done():
			return nil, awaitErr(ctx.Err())
		case <-time.After(a.cfg.PollDelay):
		}
	}
}

func awaitErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf(`%w - %v`, domain.ErrAwaitTimeout, err)
	}

	return err
}

// open decrypts a delivery and verifies that the sender key recovered
// from the envelope matches the expected peer. A nil expected key
// accepts any authenticated sender and defers the check to the caller.
func (a *App[InReq, InResp, InMsg, OutReq, OutResp, OutMsg]) open(
	item *models.Delivery, senderPubKey []byte) ([]byte, error) {
	payload, recoveredKey, err := a.packer.Unpack(item.Blob, a.cfg.PublicKey, a.cfg.SecretKey)
	if err != nil {
		return nil, err
	}

	if senderPubKey == nil {
		senderPubKey = item.Sender.PublicKey
	}

	if !bytes.Equal(recoveredKey, senderPubKey) {
		return nil, &domain.AuthError{Reason: fmt.Sprintf(
			`sender key mismatch (envelope: %s, expected: %s)`,
			models.PeerIdentity{PublicKey: recoveredKey}, models.PeerIdentity{PublicKey: senderPubKey})}
	}

	return payload, nil
}
