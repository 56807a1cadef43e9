package relay_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaymesh/courier/domain"
	"github.com/relaymesh/courier/domain/messages"
	"github.com/relaymesh/courier/log"
	"github.com/relaymesh/courier/relay"
)

func TestZmqListenerStopEndsServeLoop(t *testing.T) {
	requireT := require.New(t)

	zl, err := relay.NewZmqListener(
		&domain.RelayConfig{ZmqPort: 29876},
		relay.NewInbox(),
		relay.NewIndex(),
		messages.InfoRes{Name: `test`},
		log.NewLogger(false),
	)
	requireT.NoError(err)

	done := make(chan error, 1)
	go func() { done <- zl.Start() }()

	// let the loop run a few idle iterations before signalling it
	time.Sleep(50 * time.Millisecond)
	requireT.NoError(zl.Stop())

	select {
	case err := <-done:
		requireT.NoError(err)
	case <-time.After(time.Second):
		t.Fatal(`serve loop kept running after stop`)
	}
}
