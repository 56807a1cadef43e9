package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaymesh/courier/agent"
	"github.com/relaymesh/courier/domain"
	"github.com/relaymesh/courier/domain/models"
	"github.com/relaymesh/courier/transport"
)

const (
	testChannel = `app`
	pollDelay   = 10 * time.Millisecond
)

type ping struct {
	Seq int `json:"seq"`
}

type pong struct {
	Seq int `json:"seq"`
}

type note struct {
	Text string `json:"text"`
}

type none struct{}

/* plain packer: keeps the protocol tests independent of libsodium */

type plainEnvelope struct {
	Payload json.RawMessage `json:"payload"`
	Sender  []byte          `json:"sender"`
}

type plainPacker struct{}

func (p *plainPacker) Pack(payload, _, sendPubKey, _ []byte) ([]byte, error) {
	return json.Marshal(plainEnvelope{Payload: payload, Sender: sendPubKey})
}

func (p *plainPacker) Unpack(data, _, _ []byte) ([]byte, []byte, error) {
	var env plainEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, &domain.AuthError{Reason: `invalid envelope`, Err: err}
	}

	return env.Payload, env.Sender, nil
}

func plainPack(t *testing.T, payload string, senderKey []byte) []byte {
	t.Helper()
	data, err := json.Marshal(plainEnvelope{Payload: json.RawMessage(payload), Sender: senderKey})
	require.NoError(t, err)
	return data
}

/* session stubs for failure injection */

// blockingSession honors the poll ctx the way a real network client
// does: it blocks until the ctx ends and reports the ctx error from
// the poll itself.
type blockingSession struct{}

func (s *blockingSession) Send(_ context.Context, _ string, _ []byte, _ string, _ []byte) error {
	return nil
}

func (s *blockingSession) Poll(ctx context.Context, _ string, _ int) ([]models.Delivery, string, error) {
	<-ctx.Done()
	return nil, ``, ctx.Err()
}

// brokenSession fails every poll with a network error and counts the
// attempts.
type brokenSession struct {
	mu    sync.Mutex
	polls int
}

func (s *brokenSession) Send(_ context.Context, _ string, _ []byte, _ string, _ []byte) error {
	return nil
}

func (s *brokenSession) Poll(_ context.Context, _ string, _ int) ([]models.Delivery, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	return nil, ``, fmt.Errorf(`connection reset`)
}

func (s *brokenSession) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

/* responder handler */

type pongHandler struct {
	mu       sync.Mutex
	delays   map[int]time.Duration
	reqErr   error
	messages []note
	senders  []models.PeerIdentity
}

func (h *pongHandler) HandleRequest(_ context.Context, req ping, _ models.MessageInfo) (pong, error) {
	h.mu.Lock()
	delay := h.delays[req.Seq]
	reqErr := h.reqErr
	h.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if reqErr != nil {
		return pong{}, reqErr
	}

	return pong{Seq: req.Seq}, nil
}

func (h *pongHandler) HandleMessage(_ context.Context, msg note, info models.MessageInfo) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
	h.senders = append(h.senders, info.Sender)
	return nil
}

func (h *pongHandler) received() ([]note, []models.PeerIdentity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]note{}, h.messages...), append([]models.PeerIdentity{}, h.senders...)
}

type silentHandler struct{}

func (h *silentHandler) HandleRequest(_ context.Context, _ none, _ models.MessageInfo) (none, error) {
	return none{}, nil
}

func (h *silentHandler) HandleMessage(_ context.Context, _ none, _ models.MessageInfo) error {
	return nil
}

/* fixtures */

type fixture struct {
	net       *transport.MockNetwork
	requester *agent.App[none, none, none, ping, pong, note]
	responder *agent.App[ping, pong, note, none, none, none]
	handler   *pongHandler
	aKey      []byte
	bKey      []byte
	endpointB models.Endpoint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	net := transport.NewMockNetwork()
	aKey := []byte(`agent-a-public-key-0123456789abc`)
	bKey := []byte(`agent-b-public-key-0123456789abc`)
	handler := &pongHandler{delays: map[int]time.Duration{}}

	requester, err := agent.New[none, none, none, ping, pong, note](
		testConfig(aKey), net.Session(aKey, `relay-a`), &plainPacker{}, nil, &silentHandler{}, nil)
	require.NoError(t, err)

	responder, err := agent.New[ping, pong, note, none, none, none](
		testConfig(bKey), net.Session(bKey, `relay-b`), &plainPacker{}, nil, handler, nil)
	require.NoError(t, err)

	return &fixture{
		net:       net,
		requester: requester,
		responder: responder,
		handler:   handler,
		aKey:      aKey,
		bKey:      bKey,
		endpointB: models.Endpoint{ServerAddress: `relay-b`, ClientPubKey: bKey},
	}
}

func testConfig(pubKey []byte) *domain.Config {
	return &domain.Config{
		ServerAddress: `relay`,
		PublicKey:     pubKey,
		SecretKey:     pubKey,
		Channel:       testChannel,
		Encoding:      domain.EncodingBase64,
		PollDelay:     pollDelay,
	}
}

// drive runs the responder's update loop with the given number of
// concurrent workers until ctx ends.
func (f *fixture) drive(ctx context.Context, workers int) {
	for i := 0; i < workers; i++ {
		go func() {
			for {
				_ = f.responder.Update(ctx)

				select {
				case <-ctx.Done():
					return
				case <-time.After(pollDelay / 2):
				}
			}
		}()
	}
}

/* tests */

func TestRequestResponse(t *testing.T) {
	requireT := require.New(t)
	f := newFixture(t)
	f.net.SetLatency(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	f.drive(ctx, 1)

	resp, err := f.requester.Request(ctx, f.endpointB, ping{Seq: 7})
	requireT.NoError(err)
	requireT.Equal(pong{Seq: 7}, resp)
}

func TestRequestTimesOutWhenPeerOffline(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := f.requester.Request(ctx, f.endpointB, ping{Seq: 1})
	require.ErrorIs(t, err, domain.ErrAwaitTimeout)
}

func TestRequestDeadlineExpiringInsidePollIsTimeout(t *testing.T) {
	requireT := require.New(t)

	aKey := []byte(`agent-a-public-key-0123456789abc`)
	app, err := agent.New[none, none, none, ping, pong, note](
		testConfig(aKey), &blockingSession{}, &plainPacker{}, nil, &silentHandler{}, nil)
	requireT.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = app.Request(ctx, models.Endpoint{ServerAddress: `relay-b`}, ping{Seq: 1})
	requireT.ErrorIs(err, domain.ErrAwaitTimeout)

	var trErr *domain.TransportError
	requireT.False(errors.As(err, &trErr), `expired deadline reported as a transport failure`)
}

func TestPollTransportErrorPropagatesWithoutRetry(t *testing.T) {
	requireT := require.New(t)

	aKey := []byte(`agent-a-public-key-0123456789abc`)
	session := &brokenSession{}
	app, err := agent.New[none, none, none, ping, pong, note](
		testConfig(aKey), session, &plainPacker{}, nil, &silentHandler{}, nil)
	requireT.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = app.Request(ctx, models.Endpoint{ServerAddress: `relay-b`}, ping{Seq: 1})

	var trErr *domain.TransportError
	requireT.True(errors.As(err, &trErr))
	requireT.Equal(1, session.pollCount(), `failed poll was retried`)
}

func TestRequestCancellation(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		_, err := f.requester.Request(ctx, f.endpointB, ping{Seq: 1})
		errChan <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal(`await loop did not stop on cancellation`)
	}
}

func TestMessageDeliveredExactlyOnce(t *testing.T) {
	requireT := require.New(t)
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	requireT.NoError(f.requester.Send(ctx, f.endpointB, note{Text: `hello`}))

	f.drive(ctx, 1)

	requireT.Eventually(func() bool {
		msgs, _ := f.handler.received()
		return len(msgs) == 1
	}, time.Second, pollDelay)

	// further updates must not re-deliver
	time.Sleep(5 * pollDelay)
	msgs, senders := f.handler.received()
	requireT.Len(msgs, 1)
	requireT.Equal(note{Text: `hello`}, msgs[0])
	requireT.True(senders[0].Equal(models.PeerIdentity{PublicKey: f.aKey}))

	// no reply travels back for a fire-and-forget message
	item, err := f.requester.PollMessage(ctx)
	requireT.NoError(err)
	requireT.Nil(item)
}

func TestConcurrentRequestsCompleteOutOfOrder(t *testing.T) {
	requireT := require.New(t)
	f := newFixture(t)
	f.handler.delays[1] = 120 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	f.drive(ctx, 2)

	var wg sync.WaitGroup
	results := make([]pong, 3)
	errs := make([]error, 3)
	for seq := 1; seq <= 2; seq++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			results[seq], errs[seq] = f.requester.Request(ctx, f.endpointB, ping{Seq: seq})
		}(seq)
	}
	wg.Wait()

	for seq := 1; seq <= 2; seq++ {
		requireT.NoError(errs[seq])
		requireT.Equal(pong{Seq: seq}, results[seq], `response correlated to the wrong request`)
	}
}

func TestMalformedEnvelopeReported(t *testing.T) {
	requireT := require.New(t)
	f := newFixture(t)

	ctx := context.Background()
	intruder := f.net.Session([]byte(`intruder-public-key-0123456789ab`), `relay-c`)
	requireT.NoError(intruder.Send(ctx, ``, f.bKey, testChannel,
		plainPack(t, `{"foo":1}`, []byte(`intruder-public-key-0123456789ab`))))

	err := f.responder.Update(ctx)
	requireT.ErrorIs(err, domain.ErrMalformedEnvelope)

	// the poll loop survives: the next update sees an empty mailbox
	requireT.NoError(f.responder.Update(ctx))
}

func TestRequestPayloadConversionError(t *testing.T) {
	requireT := require.New(t)
	f := newFixture(t)

	ctx := context.Background()
	sender := []byte(`typed-mismatch-key-0123456789abc`)
	session := f.net.Session(sender, `relay-c`)
	requireT.NoError(session.Send(ctx, ``, f.bKey, testChannel,
		plainPack(t, `{"request":{"seq":"abc"},"id":1}`, sender)))

	err := f.responder.Update(ctx)
	requireT.Error(err)

	var convErr *domain.ConversionError
	requireT.True(errors.As(err, &convErr))
}

func TestSenderMismatchRejected(t *testing.T) {
	requireT := require.New(t)
	f := newFixture(t)

	ctx := context.Background()
	// envelope claims a sender other than the transport-reported one
	session := f.net.Session([]byte(`real-sender-key-0123456789abcdef`), `relay-c`)
	requireT.NoError(session.Send(ctx, ``, f.bKey, testChannel,
		plainPack(t, `{"message":"spoofed"}`, []byte(`forged-sender-key-0123456789abcd`))))

	err := f.responder.Update(ctx)
	requireT.Error(err)

	var authErr *domain.AuthError
	requireT.True(errors.As(err, &authErr))
}

func TestHandlerErrorSendsNoReply(t *testing.T) {
	requireT := require.New(t)
	f := newFixture(t)
	f.handler.reqErr = fmt.Errorf(`boom`)

	reqCtx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		_, err := f.requester.Request(reqCtx, f.endpointB, ping{Seq: 1})
		errChan <- err
	}()

	// the responder observes the handler failure locally
	var updateErr error
	requireT.Eventually(func() bool {
		updateErr = f.responder.Update(context.Background())
		return updateErr != nil
	}, time.Second, pollDelay)

	var appErr *domain.ApplicationError
	requireT.True(errors.As(updateErr, &appErr))

	// the requester is never notified and runs into its deadline
	requireT.ErrorIs(<-errChan, domain.ErrAwaitTimeout)
}

func TestLookup(t *testing.T) {
	requireT := require.New(t)

	net := transport.NewMockNetwork()
	aKey := []byte(`agent-a-public-key-0123456789abc`)
	bKey := []byte(`agent-b-public-key-0123456789abc`)
	session := net.Session(aKey, `relay-a`)

	app, err := agent.New[none, none, none, ping, pong, note](
		testConfig(aKey), session, &plainPacker{}, session, &silentHandler{}, nil)
	requireT.NoError(err)

	ctx := context.Background()
	_, err = app.Lookup(ctx, bKey, ``)
	requireT.ErrorIs(err, domain.ErrPeerNotFound)

	net.Register(bKey, models.Endpoint{ServerAddress: `relay-b`, ClientPubKey: bKey})

	endpoint, err := app.Lookup(ctx, bKey, ``)
	requireT.NoError(err)
	requireT.Equal(`relay-b`, endpoint.ServerAddress)
}

func TestPollingEmptyMailboxIsIdempotent(t *testing.T) {
	requireT := require.New(t)
	f := newFixture(t)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		item, err := f.responder.PollMessage(ctx)
		requireT.NoError(err)
		requireT.Nil(item)
	}
}
