package relay

import (
	"sync"

	"github.com/btcsuite/btcutil/base58"
	"github.com/relaymesh/courier/domain/messages"
	"github.com/relaymesh/courier/domain/models"
)

type peerRecord struct {
	serverAddress string
	clientType    string
}

// Index tracks the peers announced to this relay and the other relays
// discovered through bootstrap indexing and traversal.
type Index struct {
	mu      sync.RWMutex
	peers   map[string]peerRecord
	servers map[string]string
}

func NewIndex() *Index {
	return &Index{
		peers:   map[string]peerRecord{},
		servers: map[string]string{},
	}
}

func (x *Index) Announce(pubKey []byte, serverAddress, clientType string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.peers[base58.Encode(pubKey)] = peerRecord{serverAddress: serverAddress, clientType: clientType}
}

// Lookup resolves a public key to an endpoint. An unknown peer or a
// type filter mismatch yields nil, which the caller reports as
// peer-not-found; the index itself never errors.
func (x *Index) Lookup(pubKey []byte, typeFilter string) *models.Endpoint {
	x.mu.RLock()
	defer x.mu.RUnlock()

	rec, ok := x.peers[base58.Encode(pubKey)]
	if !ok {
		return nil
	}

	if typeFilter != `` && rec.clientType != typeFilter {
		return nil
	}

	return &models.Endpoint{ServerAddress: rec.serverAddress, ClientPubKey: pubKey}
}

func (x *Index) IndexServer(address, pubKey string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.servers[address] = pubKey
}

func (x *Index) Servers() []messages.ServerRecord {
	x.mu.RLock()
	defer x.mu.RUnlock()

	records := make([]messages.ServerRecord, 0, len(x.servers))
	for address, key := range x.servers {
		records = append(records, messages.ServerRecord{Address: address, PublicKey: key})
	}

	return records
}
