package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/btcsuite/btcutil/base58"
	zmq "github.com/pebbe/zmq4"
	"github.com/relaymesh/courier/domain"
	"github.com/relaymesh/courier/domain/messages"
	"github.com/relaymesh/courier/domain/models"
)

// Zmq is the connected handle to one relay over its zmq command
// surface. A REQ socket allows a single in-flight exchange, so every
// command holds the socket mutex for its round trip.
type Zmq struct {
	serverAddress string
	self          models.PeerIdentity
	zmqCtx        *zmq.Context

	mu  sync.Mutex
	skt *zmq.Socket
}

// ConnectZmq dials the relay's REP endpoint and verifies its identity
// against the expected public key.
func ConnectZmq(serverAddress string, serverPubKey, selfPubKey []byte) (*Zmq, error) {
	zmqCtx, err := zmq.NewContext()
	if err != nil {
		return nil, fmt.Errorf(`zmq context initialization failed - %v`, err)
	}

	skt, err := zmqCtx.NewSocket(zmq.REQ)
	if err != nil {
		return nil, fmt.Errorf(`constructing zmq client socket failed - %v`, err)
	}

	if err = skt.Connect(serverAddress); err != nil {
		return nil, fmt.Errorf(`connecting to zmq socket (%s) failed - %v`, serverAddress, err)
	}

	z := &Zmq{serverAddress: serverAddress, self: models.PeerIdentity{PublicKey: selfPubKey}, zmqCtx: zmqCtx, skt: skt}

	var info messages.InfoRes
	if err = z.command(z.skt, domain.ZmqOpInfo, nil, &info); err != nil {
		return nil, err
	}

	if serverPubKey != nil && info.PublicKey != base58.Encode(serverPubKey) {
		return nil, fmt.Errorf(`relay at %s presented an unexpected public key %s`, serverAddress, info.PublicKey)
	}

	return z, nil
}

func (z *Zmq) Send(_ context.Context, destAddress string, destPubKey []byte, channel string, blob []byte) error {
	req := messages.SendReq{
		Recipient:     base58.Encode(destPubKey),
		Channel:       channel,
		Blob:          blob,
		SenderKey:     z.self.String(),
		SenderAddress: z.serverAddress,
	}

	// a send may target a relay other than the connected one
	if destAddress != z.serverAddress {
		return z.commandTo(destAddress, domain.ZmqOpSend, req, nil)
	}

	z.mu.Lock()
	defer z.mu.Unlock()
	return z.command(z.skt, domain.ZmqOpSend, req, nil)
}

func (z *Zmq) Poll(_ context.Context, channel string, limit int) ([]models.Delivery, string, error) {
	req := messages.PollReq{
		Recipient: z.self.String(),
		Channel:   channel,
		Limit:     limit,
	}

	var res messages.PollRes
	z.mu.Lock()
	err := z.command(z.skt, domain.ZmqOpPoll, req, &res)
	z.mu.Unlock()
	if err != nil {
		return nil, ``, err
	}

	return toDeliveries(res.Items), res.Cursor, nil
}

func (z *Zmq) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if err := z.skt.Close(); err != nil {
		return err
	}

	return z.zmqCtx.Term()
}

// commandTo opens a short-lived socket toward a foreign relay for a
// single exchange. The socket is drawn from the session's context so
// repeated cross-relay sends do not accumulate zmq I/O threads.
func (z *Zmq) commandTo(address, op string, body, out interface{}) error {
	skt, err := z.zmqCtx.NewSocket(zmq.REQ)
	if err != nil {
		return fmt.Errorf(`constructing zmq socket failed - %v`, err)
	}
	defer skt.Close()

	if err = skt.Connect(address); err != nil {
		return fmt.Errorf(`connecting to zmq socket (%s) failed - %v`, address, err)
	}

	return z.command(skt, op, body, out)
}

func (z *Zmq) command(skt *zmq.Socket, op string, body, out interface{}) error {
	cmd := messages.ZmqCommand{Op: op}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf(`marshalling command body failed - %v`, err)
		}
		cmd.Body = data
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf(`marshalling command failed - %v`, err)
	}

	if _, err = skt.SendBytes(data, 0); err != nil {
		return fmt.Errorf(`sending zmq command failed - %v`, err)
	}

	repData, err := skt.RecvBytes(0)
	if err != nil {
		return fmt.Errorf(`receiving zmq reply failed - %v`, err)
	}

	var rep messages.ZmqReply
	if err = json.Unmarshal(repData, &rep); err != nil {
		return fmt.Errorf(`decoding zmq reply failed - %v`, err)
	}

	if !rep.Ok {
		return fmt.Errorf(`relay rejected %s command - %s`, op, rep.Error)
	}

	if out != nil {
		if err = json.Unmarshal(rep.Body, out); err != nil {
			return fmt.Errorf(`decoding zmq reply body failed - %v`, err)
		}
	}

	return nil
}
