package main

import (
	"github.com/relaymesh/courier/crypto"
	"github.com/relaymesh/courier/domain"
	"github.com/relaymesh/courier/log"
	"github.com/relaymesh/courier/relay"
)

func initNode(cfg domain.RelayConfig) (*relay.Node, error) {
	logger := log.NewLogger(cfg.Verbose)

	km := crypto.NewKeyManager()
	if err := km.Generate(); err != nil {
		return nil, err
	}

	// port forwarding stays an external contract; nodes run without one
	return relay.NewNode(&cfg, km, nil, logger)
}
