package cli

import (
	"flag"
	"strconv"
	"strings"
	"time"

	"github.com/relaymesh/courier/domain"
)

// ParseArgs reads the relay node configuration from the command line.
// The returned config is immutable for the process lifetime.
func ParseArgs() domain.RelayConfig {
	name := flag.String(`label`, ``, `relay's name`)
	port := flag.Int(`port`, 8080, `relay's http port`)
	zmqPort := flag.Int(`zmq-port`, 0, `relay's zmq port (0 disables the zmq surface)`)
	address := flag.String(`address`, ``, `publicly reachable address of this relay`)
	bootstrap := flag.String(`bootstrap`, ``, `comma-separated bootstrap relay addresses`)
	announce := flag.Bool(`announce`, false, `announce this relay to the network`)
	traverseDelay := flag.Duration(`traverse-delay`, 10*time.Minute, `delay between traversal passes`)
	openPorts := flag.String(`open-ports`, ``, `comma-separated ports to keep forwarded`)
	verbose := flag.Bool(`verbose`, false, `enable verbose logging`)
	flag.Parse()

	publicAddress := *address
	if publicAddress == `` {
		publicAddress = `http://localhost:` + strconv.Itoa(*port)
	}

	return domain.RelayConfig{
		Name:          *name,
		Port:          *port,
		ZmqPort:       *zmqPort,
		PublicAddress: publicAddress,
		Bootstrap:     splitList(*bootstrap),
		Announce:      *announce,
		TraverseDelay: *traverseDelay,
		OpenPorts:     splitPorts(*openPorts),
		Verbose:       *verbose,
	}
}

func splitList(val string) []string {
	if val == `` {
		return nil
	}

	var out []string
	for _, item := range strings.Split(val, `,`) {
		if item = strings.TrimSpace(item); item != `` {
			out = append(out, item)
		}
	}

	return out
}

func splitPorts(val string) []int {
	var out []int
	for _, item := range splitList(val) {
		if port, err := strconv.Atoi(item); err == nil {
			out = append(out, port)
		}
	}

	return out
}
