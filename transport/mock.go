package transport

import (
	"context"
	"sync"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/relaymesh/courier/domain/models"
)

// MockNetwork is an in-process relay network used by tests: mailboxes
// keyed by (recipient, channel) and an optional artificial delivery
// latency.
type MockNetwork struct {
	mu      sync.Mutex
	queues  map[string][]models.Delivery
	peers   map[string]models.Endpoint
	latency time.Duration
}

func NewMockNetwork() *MockNetwork {
	return &MockNetwork{
		queues: map[string][]models.Delivery{},
		peers:  map[string]models.Endpoint{},
	}
}

// SetLatency delays every delivery by d, simulating network and
// processing time.
func (n *MockNetwork) SetLatency(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.latency = d
}

// Register adds a peer to the network's lookup index.
func (n *MockNetwork) Register(pubKey []byte, endpoint models.Endpoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers[base58.Encode(pubKey)] = endpoint
}

// Session returns a connected handle owned by the given identity.
func (n *MockNetwork) Session(selfPubKey []byte, selfAddress string) *MockSession {
	return &MockSession{
		net:         n,
		self:        models.PeerIdentity{PublicKey: selfPubKey},
		selfAddress: selfAddress,
	}
}

func (n *MockNetwork) push(recipient, channel string, d models.Delivery) {
	latency := func() time.Duration {
		n.mu.Lock()
		defer n.mu.Unlock()
		return n.latency
	}()

	deliver := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		key := recipient + `|` + channel
		n.queues[key] = append(n.queues[key], d)
	}

	if latency == 0 {
		deliver()
		return
	}

	time.AfterFunc(latency, deliver)
}

func (n *MockNetwork) pop(recipient, channel string, limit int) []models.Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := recipient + `|` + channel
	queue := n.queues[key]
	if len(queue) == 0 {
		return nil
	}

	if limit <= 0 || limit > len(queue) {
		limit = len(queue)
	}

	items := make([]models.Delivery, limit)
	copy(items, queue[:limit])
	n.queues[key] = queue[limit:]

	return items
}

// MockSession implements the session and lookup contracts against a
// MockNetwork.
type MockSession struct {
	net         *MockNetwork
	self        models.PeerIdentity
	selfAddress string
}

func (s *MockSession) Send(_ context.Context, _ string, destPubKey []byte, channel string, blob []byte) error {
	s.net.push(base58.Encode(destPubKey), channel, models.Delivery{
		Blob:          blob,
		Sender:        s.self,
		SenderAddress: s.selfAddress,
		Channel:       channel,
		ReceivedAt:    time.Now(),
	})

	return nil
}

func (s *MockSession) Poll(_ context.Context, channel string, limit int) ([]models.Delivery, string, error) {
	return s.net.pop(s.self.String(), channel, limit), ``, nil
}

func (s *MockSession) Lookup(_ context.Context, pubKey []byte, _ string) (*models.Endpoint, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()

	endpoint, ok := s.net.peers[base58.Encode(pubKey)]
	if !ok {
		return nil, nil
	}

	return &endpoint, nil
}
