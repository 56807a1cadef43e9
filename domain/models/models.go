package models

import (
	"bytes"
	"time"

	"github.com/btcsuite/btcutil/base58"
)

// PeerIdentity identifies a remote party by its public key.
// Identities are compared by key value.
type PeerIdentity struct {
	PublicKey []byte
}

func (p PeerIdentity) Equal(other PeerIdentity) bool {
	return bytes.Equal(p.PublicKey, other.PublicKey)
}

// String renders the identity in base58, the form used for mailbox
// addressing and log output.
func (p PeerIdentity) String() string {
	return base58.Encode(p.PublicKey)
}

// Endpoint states where and to whom a sealed envelope should be sent:
// the relay address a peer polls and the peer's public key.
type Endpoint struct {
	ServerAddress string
	ClientPubKey  []byte
}

// Delivery is one item fetched from a polled channel: the sealed blob
// plus the transport-reported provenance of its sender.
type Delivery struct {
	Blob          []byte
	Sender        PeerIdentity
	SenderAddress string
	Channel       string
	ReceivedAt    time.Time
}

// MessageInfo carries the provenance of a decrypted inbound item to
// application handlers, e.g. for logging or authorization decisions.
type MessageInfo struct {
	Sender        PeerIdentity
	SenderAddress string
	Channel       string
	ReceivedAt    time.Time
}

// Info derives handler-facing provenance from a raw delivery.
func (d *Delivery) Info() MessageInfo {
	return MessageInfo{
		Sender:        d.Sender,
		SenderAddress: d.SenderAddress,
		Channel:       d.Channel,
		ReceivedAt:    d.ReceivedAt,
	}
}
