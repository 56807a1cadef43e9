package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/relaymesh/courier/cli"
	"github.com/tryfix/log"
)

func main() {
	cfg := cli.ParseArgs()

	node, err := initNode(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	if err = node.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
