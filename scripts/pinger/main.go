// Spins up a local relay and two agents, then exchanges a greeting
// message and a ping request between them through the relay's mailbox.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/relaymesh/courier/agent"
	"github.com/relaymesh/courier/crypto"
	"github.com/relaymesh/courier/domain"
	"github.com/relaymesh/courier/domain/models"
	courierLog "github.com/relaymesh/courier/log"
	"github.com/relaymesh/courier/relay"
	"github.com/relaymesh/courier/transport"
)

const (
	relayPort    = 9797
	relayAddress = `http://localhost:9797`
	channel      = `pinger`
	pollDelay    = 100 * time.Millisecond
)

type pingReq struct {
	Seq int `json:"seq"`
}

type pongRes struct {
	Seq  int    `json:"seq"`
	Node string `json:"node"`
}

type textMsg struct {
	Text string `json:"text"`
}

type none struct{}

// ponger answers ping requests and prints greetings.
type ponger struct {
	name string
}

func (p *ponger) HandleRequest(_ context.Context, req pingReq, info models.MessageInfo) (pongRes, error) {
	fmt.Printf("-> ping %d from %s\n", req.Seq, info.Sender)
	return pongRes{Seq: req.Seq, Node: p.name}, nil
}

func (p *ponger) HandleMessage(_ context.Context, msg textMsg, info models.MessageInfo) error {
	fmt.Printf("-> message %q from %s\n", msg.Text, info.Sender)
	return nil
}

// silent receives nothing; it exists so the pinging side satisfies the
// application contract.
type silent struct{}

func (s *silent) HandleRequest(_ context.Context, _ none, _ models.MessageInfo) (none, error) {
	return none{}, nil
}

func (s *silent) HandleMessage(_ context.Context, _ none, _ models.MessageInfo) error {
	return nil
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := courierLog.NewLogger(true)

	relayKm := crypto.NewKeyManager()
	if err := relayKm.Generate(); err != nil {
		log.Fatalln(err)
	}

	node, err := relay.NewNode(&domain.RelayConfig{
		Name:          `local`,
		Port:          relayPort,
		PublicAddress: relayAddress,
		TraverseDelay: time.Minute,
	}, relayKm, nil, logger)
	if err != nil {
		log.Fatalln(err)
	}

	go func() {
		if err := node.Run(ctx); err != nil {
			log.Fatalln(fmt.Sprintf(`relay failed - %v`, err))
		}
	}()
	time.Sleep(200 * time.Millisecond)

	pongApp, pongKey := newPonger(ctx, logger)
	pingApp := newPinger(ctx, logger)

	// drive the ponger
	go func() {
		for {
			if err := pongApp.Update(ctx); err != nil {
				logger.Error(fmt.Sprintf(`processing inbound item failed - %v`, err))
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(pollDelay):
			}
		}
	}()

	endpoint := models.Endpoint{ServerAddress: relayAddress, ClientPubKey: pongKey}

	if err := pingApp.Send(ctx, endpoint, textMsg{Text: `hello`}); err != nil {
		log.Fatalln(fmt.Sprintf(`sending message failed - %v`, err))
	}

	for seq := 1; seq <= 3; seq++ {
		reqCtx, reqCancel := context.WithTimeout(ctx, 10*time.Second)
		pong, err := pingApp.Request(reqCtx, endpoint, pingReq{Seq: seq})
		reqCancel()
		if err != nil {
			log.Fatalln(fmt.Sprintf(`ping %d failed - %v`, seq, err))
		}

		fmt.Printf("<- pong %d from node %s\n", pong.Seq, pong.Node)
	}
}

func newPonger(ctx context.Context, logger *courierLog.Logger) (*agent.App[pingReq, pongRes, textMsg, none, none, none], []byte) {
	km := crypto.NewKeyManager()
	if err := km.Generate(); err != nil {
		log.Fatalln(err)
	}

	app, err := agent.New[pingReq, pongRes, textMsg, none, none, none](
		agentConfig(`ponger`, km), mustSession(ctx, km), mustPacker(), nil, &ponger{name: `ponger`}, logger)
	if err != nil {
		log.Fatalln(err)
	}

	return app, km.PublicKey()
}

func newPinger(ctx context.Context, logger *courierLog.Logger) *agent.App[none, none, none, pingReq, pongRes, textMsg] {
	km := crypto.NewKeyManager()
	if err := km.Generate(); err != nil {
		log.Fatalln(err)
	}

	app, err := agent.New[none, none, none, pingReq, pongRes, textMsg](
		agentConfig(`pinger`, km), mustSession(ctx, km), mustPacker(), nil, &silent{}, logger)
	if err != nil {
		log.Fatalln(err)
	}

	return app
}

func agentConfig(name string, km *crypto.KeyManager) *domain.Config {
	return &domain.Config{
		Name:          name,
		ServerAddress: relayAddress,
		PublicKey:     km.PublicKey(),
		SecretKey:     km.PrivateKey(),
		Channel:       channel,
		Encoding:      domain.EncodingBase64,
		Compression:   domain.CompressionDefault,
		PollDelay:     pollDelay,
	}
}

func mustSession(ctx context.Context, km *crypto.KeyManager) *transport.HTTP {
	session, err := transport.ConnectHTTP(ctx, relayAddress, nil, km.PublicKey())
	if err != nil {
		log.Fatalln(fmt.Sprintf(`connecting to relay failed - %v`, err))
	}

	return session
}

func mustPacker() *crypto.Packer {
	packer, err := crypto.NewPacker(domain.EncodingBase64, domain.CompressionDefault)
	if err != nil {
		log.Fatalln(err)
	}

	return packer
}
