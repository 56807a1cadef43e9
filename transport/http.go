// Package transport provides the client-side session implementations
// speaking to a relay node: one over its REST surface and one over its
// zmq command surface, plus an in-process network for tests.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/btcsuite/btcutil/base58"
	"github.com/relaymesh/courier/domain"
	"github.com/relaymesh/courier/domain/messages"
	"github.com/relaymesh/courier/domain/models"
)

// HTTP is the connected handle to one relay over its REST surface.
// The handle holds no mutable state and is safe for concurrent use.
type HTTP struct {
	serverAddress string
	serverPubKey  []byte
	self          models.PeerIdentity
	client        *http.Client
}

// ConnectHTTP verifies the relay at serverAddress presents the
// expected public key and returns a session identified by selfPubKey.
func ConnectHTTP(ctx context.Context, serverAddress string, serverPubKey, selfPubKey []byte) (*HTTP, error) {
	h := &HTTP{
		serverAddress: serverAddress,
		serverPubKey:  serverPubKey,
		self:          models.PeerIdentity{PublicKey: selfPubKey},
		client:        &http.Client{},
	}

	var info messages.InfoRes
	if err := h.get(ctx, serverAddress+domain.InfoEndpoint, &info); err != nil {
		return nil, err
	}

	if serverPubKey != nil && info.PublicKey != base58.Encode(serverPubKey) {
		return nil, fmt.Errorf(`relay at %s presented an unexpected public key %s`, serverAddress, info.PublicKey)
	}

	return h, nil
}

func (h *HTTP) Send(ctx context.Context, destAddress string, destPubKey []byte, channel string, blob []byte) error {
	req := messages.SendReq{
		Recipient:     base58.Encode(destPubKey),
		Channel:       channel,
		Blob:          blob,
		SenderKey:     h.self.String(),
		SenderAddress: h.serverAddress,
	}

	return h.post(ctx, destAddress+domain.SendEndpoint, req, nil)
}

func (h *HTTP) Poll(ctx context.Context, channel string, limit int) ([]models.Delivery, string, error) {
	req := messages.PollReq{
		Recipient: h.self.String(),
		Channel:   channel,
		Limit:     limit,
	}

	var res messages.PollRes
	if err := h.post(ctx, h.serverAddress+domain.PollEndpoint, req, &res); err != nil {
		return nil, ``, err
	}

	return toDeliveries(res.Items), res.Cursor, nil
}

// Lookup resolves a peer's public key through the connected relay's
// index. A 404 is reported as a nil endpoint.
func (h *HTTP) Lookup(ctx context.Context, pubKey []byte, typeFilter string) (*models.Endpoint, error) {
	url := h.serverAddress + domain.LookupEndpoint + `?key=` + base58.Encode(pubKey)
	if typeFilter != `` {
		url += `&type=` + typeFilter
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf(`constructing lookup request failed - %v`, err)
	}

	res, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf(`lookup request failed - %v`, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(`invalid status code: %d`, res.StatusCode)
	}

	var body messages.LookupRes
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf(`decoding lookup response failed - %v`, err)
	}

	return &models.Endpoint{ServerAddress: body.ServerAddress, ClientPubKey: pubKey}, nil
}

func (h *HTTP) get(ctx context.Context, url string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf(`constructing request failed - %v`, err)
	}

	res, err := h.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf(`request failed - %v`, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf(`invalid status code: %d`, res.StatusCode)
	}

	if err = json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf(`decoding response failed - %v`, err)
	}

	return nil
}

func (h *HTTP) post(ctx context.Context, url string, in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf(`marshalling request failed - %v`, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf(`constructing request failed - %v`, err)
	}
	httpReq.Header.Set(`Content-Type`, `application/json`)

	res, err := h.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf(`request failed - %v`, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusAccepted {
		return fmt.Errorf(`invalid status code: %d`, res.StatusCode)
	}

	if out != nil {
		if err = json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf(`decoding response failed - %v`, err)
		}
	}

	return nil
}

func toDeliveries(items []messages.DeliveryItem) []models.Delivery {
	deliveries := make([]models.Delivery, 0, len(items))
	for _, it := range items {
		deliveries = append(deliveries, models.Delivery{
			Blob:          it.Blob,
			Sender:        models.PeerIdentity{PublicKey: base58.Decode(it.SenderKey)},
			SenderAddress: it.SenderAddress,
			Channel:       it.Channel,
			ReceivedAt:    it.ReceivedAt,
		})
	}

	return deliveries
}
