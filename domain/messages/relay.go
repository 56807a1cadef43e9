// Package messages holds the wire shapes spoken between transport
// sessions and relay nodes. Binary fields travel base64-encoded by
// encoding/json; public keys travel in their base58 text form.
package messages

import (
	"encoding/json"
	"time"
)

type SendReq struct {
	Recipient     string `json:"recipient"`
	Channel       string `json:"channel"`
	Blob          []byte `json:"blob"`
	SenderKey     string `json:"sender_key"`
	SenderAddress string `json:"sender_address"`
}

type PollReq struct {
	Recipient string `json:"recipient"`
	Channel   string `json:"channel"`
	Limit     int    `json:"limit"`
}

type PollRes struct {
	Items  []DeliveryItem `json:"items"`
	Cursor string         `json:"cursor"`
}

type DeliveryItem struct {
	Blob          []byte    `json:"blob"`
	SenderKey     string    `json:"sender_key"`
	SenderAddress string    `json:"sender_address"`
	Channel       string    `json:"channel"`
	ReceivedAt    time.Time `json:"received_at"`
}

type InfoRes struct {
	Name      string `json:"name"`
	PublicKey string `json:"public_key"`
	Address   string `json:"address"`
}

type AnnounceReq struct {
	PublicKey     string `json:"public_key"`
	ServerAddress string `json:"server_address"`
	ClientType    string `json:"client_type"`
}

type LookupRes struct {
	PublicKey     string `json:"public_key"`
	ServerAddress string `json:"server_address"`
}

type ServerRecord struct {
	Address   string `json:"address"`
	PublicKey string `json:"public_key"`
}

type ServersRes struct {
	Servers []ServerRecord `json:"servers"`
}

/* zmq framing */

type ZmqCommand struct {
	Op   string          `json:"op"`
	Body json.RawMessage `json:"body"`
}

type ZmqReply struct {
	Ok    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Body  json.RawMessage `json:"body,omitempty"`
}
