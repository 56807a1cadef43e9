// Package relay implements the relay side of the protocol: an
// in-memory mailbox store addressed by (recipient, channel), a peer
// index for discovery and the periodic coordination loops that keep a
// node wired into the wider relay network.
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/relaymesh/courier/domain"
	"github.com/relaymesh/courier/domain/messages"
	"github.com/relaymesh/courier/domain/services"
	"github.com/relaymesh/courier/log"
)

// Node bundles the mailbox store, the peer index and the serving
// surfaces of one relay. Run coordinates three long-lived tasks that
// share nothing but the read-only config: the serve loops, an optional
// port-refresh loop and the bootstrap/traversal loop.
type Node struct {
	cfg       *domain.RelayConfig
	inbox     *Inbox
	index     *Index
	km        services.KeyManager
	http      *Server
	zmq       *ZmqListener
	forwarder services.PortForwarder
	trav      *traverser
	log       *log.Logger
}

func NewNode(cfg *domain.RelayConfig, km services.KeyManager, forwarder services.PortForwarder, logger *log.Logger) (*Node, error) {
	inbox := NewInbox()
	index := NewIndex()

	n := &Node{
		cfg:       cfg,
		inbox:     inbox,
		index:     index,
		km:        km,
		http:      NewServer(cfg, inbox, index, km, logger),
		forwarder: forwarder,
		trav:      newTraverser(),
		log:       logger,
	}

	if cfg.ZmqPort != 0 {
		info := messages.InfoRes{
			Name:      cfg.Name,
			PublicKey: base58.Encode(km.PublicKey()),
			Address:   cfg.PublicAddress,
		}

		zl, err := NewZmqListener(cfg, inbox, index, info, logger)
		if err != nil {
			return nil, fmt.Errorf(`constructing zmq listener failed - %v`, err)
		}
		n.zmq = zl
	}

	return n, nil
}

// Run serves until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	errChan := make(chan error, 2)

	go func() {
		errChan <- n.http.Start()
	}()

	if n.zmq != nil {
		go func() {
			errChan <- n.zmq.Start()
		}()
	}

	if n.forwarder != nil && len(n.cfg.OpenPorts) > 0 {
		go n.refreshPorts(ctx)
	}

	go n.traverse(ctx)

	select {
	case <-ctx.Done():
		n.stop()
		return nil
	case err := <-errChan:
		n.stop()
		return err
	}
}

func (n *Node) stop() {
	if err := n.http.Stop(); err != nil {
		n.log.Error(fmt.Sprintf(`stopping http server failed - %v`, err))
	}

	if n.zmq != nil {
		if err := n.zmq.Stop(); err != nil {
			n.log.Error(fmt.Sprintf(`stopping zmq listener failed - %v`, err))
		}
	}
}

// refreshPorts re-opens the configured ports once per lease period.
func (n *Node) refreshPorts(ctx context.Context) {
	lease := n.cfg.PortLease
	if lease == 0 {
		lease = time.Hour
	}

	for {
		for _, port := range n.cfg.OpenPorts {
			if err := n.forwarder.Open(port, `tcp`, int64(lease.Seconds())); err != nil {
				n.log.Error(fmt.Sprintf(`opening port %d failed - %v`, port, err))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(lease):
		}
	}
}

// traverse runs the outer coordination loop: index the bootstrap
// relays, merge the server tables of every known relay once, announce
// if configured, then sleep for the configured interval.
func (n *Node) traverse(ctx context.Context) {
	for {
		n.log.Debug(`indexing bootstrap addresses`)
		for _, address := range n.cfg.Bootstrap {
			info, err := n.trav.fetchInfo(address)
			if err != nil {
				n.log.Error(fmt.Sprintf(`indexing bootstrap relay failed - %v`, err))
				continue
			}

			n.index.IndexServer(address, info.PublicKey)
		}

		n.log.Debug(`traversing known relays`)
		for _, rec := range n.index.Servers() {
			servers, err := n.trav.fetchServers(rec.Address)
			if err != nil {
				n.log.Error(fmt.Sprintf(`traversing relay failed - %v`, err))
				continue
			}

			for _, s := range servers {
				if s.Address != `` && s.Address != n.cfg.PublicAddress {
					n.index.IndexServer(s.Address, s.PublicKey)
				}
			}
		}

		if n.cfg.Announce {
			req := messages.AnnounceReq{
				PublicKey:     base58.Encode(n.km.PublicKey()),
				ServerAddress: n.cfg.PublicAddress,
				ClientType:    domain.ClientTypeRelay,
			}

			for _, rec := range n.index.Servers() {
				if err := n.trav.announce(rec.Address, req); err != nil {
					n.log.Error(fmt.Sprintf(`announcing to relay failed - %v`, err))
				}
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(n.cfg.TraverseDelay):
		}
	}
}
