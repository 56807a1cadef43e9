package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/relaymesh/courier/domain"
	"github.com/relaymesh/courier/domain/messages"
)

// traverser is the relay-to-relay client used by the orchestration
// loop: it indexes bootstrap relays, merges their known-server tables
// and optionally announces this relay to them.
type traverser struct {
	client *http.Client
}

func newTraverser() *traverser {
	return &traverser{client: &http.Client{Timeout: 10 * time.Second}}
}

func (t *traverser) fetchInfo(address string) (messages.InfoRes, error) {
	var info messages.InfoRes
	res, err := t.client.Get(address + domain.InfoEndpoint)
	if err != nil {
		return info, fmt.Errorf(`info request to %s failed - %v`, address, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return info, fmt.Errorf(`invalid status code from %s: %d`, address, res.StatusCode)
	}

	if err = json.NewDecoder(res.Body).Decode(&info); err != nil {
		return info, fmt.Errorf(`decoding info response failed - %v`, err)
	}

	return info, nil
}

func (t *traverser) fetchServers(address string) ([]messages.ServerRecord, error) {
	res, err := t.client.Get(address + domain.ServersEndpoint)
	if err != nil {
		return nil, fmt.Errorf(`servers request to %s failed - %v`, address, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(`invalid status code from %s: %d`, address, res.StatusCode)
	}

	var body messages.ServersRes
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf(`decoding servers response failed - %v`, err)
	}

	return body.Servers, nil
}

func (t *traverser) announce(address string, req messages.AnnounceReq) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf(`marshalling announce request failed - %v`, err)
	}

	res, err := t.client.Post(address+domain.AnnounceEndpoint, `application/json`, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf(`announce request to %s failed - %v`, address, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf(`invalid status code from %s: %d`, address, res.StatusCode)
	}

	return nil
}
