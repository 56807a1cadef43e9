// Package agent implements the client side of the protocol: typed
// requests matched to their responses through reply channels, typed
// fire-and-forget messages, and the dispatch of inbound traffic to the
// consumer-supplied handlers. Everything runs over a poll-only relay;
// there is no push delivery and no persistent connection.
package agent

import (
	"context"
	"fmt"

	"github.com/relaymesh/courier/domain"
	"github.com/relaymesh/courier/domain/models"
	"github.com/relaymesh/courier/domain/services"
	"github.com/relaymesh/courier/envelope"
	"github.com/relaymesh/courier/log"
)

// Handler is the application contract: consumer-supplied logic for
// answering an inbound request and reacting to an inbound message.
type Handler[Req, Resp, Msg any] interface {
	HandleRequest(ctx context.Context, req Req, info models.MessageInfo) (Resp, error)
	HandleMessage(ctx context.Context, msg Msg, info models.MessageInfo) error
}

// App exchanges typed payloads with remote peers. The six type
// parameters are deliberately independent: the requests a peer answers
// need not mirror the requests it issues, so heterogeneous peers
// interoperate wherever their contracts structurally agree.
//
// All operations may run concurrently; they share only the read-only
// config and the session, which must itself be safe for concurrent
// use.
type App[InReq, InResp, InMsg, OutReq, OutResp, OutMsg any] struct {
	cfg     *domain.Config
	session services.Session
	packer  services.Packer
	lookup  services.Lookup
	handler Handler[InReq, InResp, InMsg]
	log     *log.Logger
}

func New[InReq, InResp, InMsg, OutReq, OutResp, OutMsg any](
	cfg *domain.Config,
	session services.Session,
	packer services.Packer,
	lookup services.Lookup,
	handler Handler[InReq, InResp, InMsg],
	logger *log.Logger,
) (*App[InReq, InResp, InMsg, OutReq, OutResp, OutMsg], error) {
	if cfg.Channel == `` {
		return nil, fmt.Errorf(`no base channel configured`)
	}

	if handler == nil {
		return nil, fmt.Errorf(`no handler provided`)
	}

	if logger == nil {
		logger = log.NewLogger(false)
	}

	return &App[InReq, InResp, InMsg, OutReq, OutResp, OutMsg]{
		cfg:     cfg,
		session: session,
		packer:  packer,
		lookup:  lookup,
		handler: handler,
		log:     logger,
	}, nil
}

// Request sends a typed request to the given endpoint and waits for
// its correlated response. Waiting is implemented by polling the reply
// channel derived from the request id; only the wait is retried, never
// the request itself. The loop runs until a reply arrives or ctx ends,
// so callers wanting an upper bound must pass a deadline.
func (a *App[InReq, InResp, InMsg, OutReq, OutResp, OutMsg]) Request(
	ctx context.Context, endpoint models.Endpoint, req OutReq) (resp OutResp, err error) {
	id, err := newRequestID()
	if err != nil {
		return resp, err
	}

	payload, err := envelope.ToDocument(req)
	if err != nil {
		return resp, err
	}

	doc, err := envelope.EncodeRequest(id, payload)
	if err != nil {
		return resp, err
	}

	blob, err := a.packer.Pack(doc, endpoint.ClientPubKey, a.cfg.PublicKey, a.cfg.SecretKey)
	if err != nil {
		return resp, err
	}

	if err = a.session.Send(ctx, endpoint.ServerAddress, endpoint.ClientPubKey, a.cfg.Channel, blob); err != nil {
		return resp, &domain.TransportError{Op: `send`, Err: err}
	}

	a.log.Trace(fmt.Sprintf(`request %d sent to %s, awaiting reply`, id, endpoint.ServerAddress))

	replyDoc, err := a.awaitReply(ctx, ReplyChannel(a.cfg.Channel, id), endpoint.ClientPubKey)
	if err != nil {
		return resp, err
	}

	return envelope.FromDocument[OutResp](replyDoc)
}

// Send delivers a typed fire-and-forget message to the given endpoint.
// No reply is awaited and none is expected.
func (a *App[InReq, InResp, InMsg, OutReq, OutResp, OutMsg]) Send(
	ctx context.Context, endpoint models.Endpoint, msg OutMsg) error {
	payload, err := envelope.ToDocument(msg)
	if err != nil {
		return err
	}

	doc, err := envelope.EncodeMessage(payload)
	if err != nil {
		return err
	}

	blob, err := a.packer.Pack(doc, endpoint.ClientPubKey, a.cfg.PublicKey, a.cfg.SecretKey)
	if err != nil {
		return err
	}

	if err = a.session.Send(ctx, endpoint.ServerAddress, endpoint.ClientPubKey, a.cfg.Channel, blob); err != nil {
		return &domain.TransportError{Op: `send`, Err: err}
	}

	return nil
}

// PollMessage fetches at most one inbound item from the base channel.
// A nil delivery means the mailbox was empty.
func (a *App[InReq, InResp, InMsg, OutReq, OutResp, OutMsg]) PollMessage(
	ctx context.Context) (*models.Delivery, error) {
	items, _, err := a.session.Poll(ctx, a.cfg.Channel, 1)
	if err != nil {
		return nil, &domain.TransportError{Op: `poll`, Err: err}
	}

	if len(items) == 0 {
		return nil, nil
	}

	return &items[0], nil
}

// Update processes exactly one inbound item: it polls the base
// channel, decrypts and classifies the envelope and dispatches it to
// the matching handler. Requests are answered on the reply channel
// derived from their id, toward the sender's own relay. Callers drive
// the agent by invoking Update repeatedly; an error concerns the one
// item it was processing and never poisons later calls.
func (a *App[InReq, InResp, InMsg, OutReq, OutResp, OutMsg]) Update(ctx context.Context) error {
	item, err := a.PollMessage(ctx)
	if err != nil {
		return err
	}

	if item == nil {
		return nil
	}

	doc, err := a.open(item, nil)
	if err != nil {
		return err
	}

	inbound, err := envelope.Classify(doc)
	if err != nil {
		return err
	}

	switch inbound.Kind {
	case envelope.KindRequest:
		return a.dispatchRequest(ctx, item, inbound)
	default:
		return a.dispatchMessage(ctx, item, inbound)
	}
}

func (a *App[InReq, InResp, InMsg, OutReq, OutResp, OutMsg]) dispatchRequest(
	ctx context.Context, item *models.Delivery, inbound *envelope.Inbound) error {
	req, err := envelope.FromDocument[InReq](inbound.Payload)
	if err != nil {
		return err
	}

	resp, err := a.handler.HandleRequest(ctx, req, item.Info())
	if err != nil {
		// the requester is not notified and keeps polling until its own
		// deadline fires
		return &domain.ApplicationError{Err: err}
	}

	payload, err := envelope.ToDocument(resp)
	if err != nil {
		return err
	}

	blob, err := a.packer.Pack(envelope.EncodeResponse(payload),
		item.Sender.PublicKey, a.cfg.PublicKey, a.cfg.SecretKey)
	if err != nil {
		return err
	}

	channel := ReplyChannel(a.cfg.Channel, inbound.ID)
	if err = a.session.Send(ctx, item.SenderAddress, item.Sender.PublicKey, channel, blob); err != nil {
		return &domain.TransportError{Op: `send`, Err: err}
	}

	a.log.Trace(fmt.Sprintf(`request %d answered on %s`, inbound.ID, channel))
	return nil
}

func (a *App[InReq, InResp, InMsg, OutReq, OutResp, OutMsg]) dispatchMessage(
	ctx context.Context, item *models.Delivery, inbound *envelope.Inbound) error {
	msg, err := envelope.FromDocument[InMsg](inbound.Payload)
	if err != nil {
		return err
	}

	if err = a.handler.HandleMessage(ctx, msg, item.Info()); err != nil {
		return &domain.ApplicationError{Err: err}
	}

	return nil
}

// Lookup resolves a peer's public key to a reachable endpoint via the
// discovery collaborator.
func (a *App[InReq, InResp, InMsg, OutReq, OutResp, OutMsg]) Lookup(
	ctx context.Context, pubKey []byte, typeFilter string) (*models.Endpoint, error) {
	if a.lookup == nil {
		return nil, fmt.Errorf(`no lookup service configured`)
	}

	endpoint, err := a.lookup.Lookup(ctx, pubKey, typeFilter)
	if err != nil {
		return nil, &domain.TransportError{Op: `lookup`, Err: err}
	}

	if endpoint == nil {
		return nil, domain.ErrPeerNotFound
	}

	return endpoint, nil
}
