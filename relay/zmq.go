package relay

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcutil/base58"
	zmq "github.com/pebbe/zmq4"
	"github.com/relaymesh/courier/domain"
	"github.com/relaymesh/courier/domain/messages"
	"github.com/relaymesh/courier/log"
)

const (
	errTempUnavail = `resource temporarily unavailable`
	idleDelay      = 10 * time.Millisecond
)

// ZmqListener serves the relay's mailbox commands on a REP socket for
// peers preferring zmq over the REST surface. Commands and replies are
// JSON frames. The socket is owned by the serving goroutine; Stop only
// signals the loop, which closes the socket on its way out.
type ZmqListener struct {
	skt     *zmq.Socket
	inbox   *Inbox
	index   *Index
	info    messages.InfoRes
	log     *log.Logger
	stopped int32
}

func NewZmqListener(cfg *domain.RelayConfig, inbox *Inbox, index *Index, info messages.InfoRes, logger *log.Logger) (*ZmqListener, error) {
	ctx, err := zmq.NewContext()
	if err != nil {
		return nil, fmt.Errorf(`zmq context initialization failed - %v`, err)
	}

	repSkt, err := ctx.NewSocket(zmq.REP)
	if err != nil {
		return nil, fmt.Errorf(`constructing zmq server socket failed - %v`, err)
	}

	if err = repSkt.Bind(`tcp://*:` + strconv.Itoa(cfg.ZmqPort)); err != nil {
		return nil, fmt.Errorf(`binding zmq socket to port %d failed - %v`, cfg.ZmqPort, err)
	}

	return &ZmqListener{skt: repSkt, inbox: inbox, index: index, info: info, log: logger}, nil
}

func (z *ZmqListener) Start() error {
	for atomic.LoadInt32(&z.stopped) == 0 {
		msg, err := z.skt.RecvMessage(zmq.DONTWAIT)
		if err != nil {
			if err.Error() != errTempUnavail {
				z.log.Error(fmt.Sprintf(`receiving zmq message failed - %v`, err))
			}
			time.Sleep(idleDelay)
			continue
		}

		if len(msg) == 0 {
			z.reply(messages.ZmqReply{Error: `received an empty message`})
			continue
		}

		z.reply(z.process([]byte(msg[0])))
	}

	return z.skt.Close()
}

func (z *ZmqListener) Stop() error {
	atomic.StoreInt32(&z.stopped, 1)
	return nil
}

func (z *ZmqListener) process(data []byte) messages.ZmqReply {
	var cmd messages.ZmqCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return messages.ZmqReply{Error: fmt.Sprintf(`decoding command failed - %v`, err)}
	}

	switch cmd.Op {
	case domain.ZmqOpInfo:
		return z.replyBody(z.info)
	case domain.ZmqOpSend:
		var req messages.SendReq
		if err := json.Unmarshal(cmd.Body, &req); err != nil {
			return messages.ZmqReply{Error: fmt.Sprintf(`decoding send body failed - %v`, err)}
		}

		if req.Recipient == `` || req.Channel == `` || len(req.Blob) == 0 {
			return messages.ZmqReply{Error: `incomplete send command`}
		}

		z.inbox.Push(req.Recipient, req.Channel, Item{
			Blob:          req.Blob,
			SenderKey:     base58.Decode(req.SenderKey),
			SenderAddress: req.SenderAddress,
		})
		return messages.ZmqReply{Ok: true}
	case domain.ZmqOpPoll:
		var req messages.PollReq
		if err := json.Unmarshal(cmd.Body, &req); err != nil {
			return messages.ZmqReply{Error: fmt.Sprintf(`decoding poll body failed - %v`, err)}
		}

		items, cursor := z.inbox.Pop(req.Recipient, req.Channel, req.Limit)
		res := messages.PollRes{Cursor: cursor, Items: make([]messages.DeliveryItem, 0, len(items))}
		for _, it := range items {
			res.Items = append(res.Items, messages.DeliveryItem{
				Blob:          it.Blob,
				SenderKey:     base58.Encode(it.SenderKey),
				SenderAddress: it.SenderAddress,
				Channel:       req.Channel,
				ReceivedAt:    it.ReceivedAt,
			})
		}
		return z.replyBody(res)
	default:
		return messages.ZmqReply{Error: fmt.Sprintf(`unknown command %s`, cmd.Op)}
	}
}

func (z *ZmqListener) replyBody(body interface{}) messages.ZmqReply {
	data, err := json.Marshal(body)
	if err != nil {
		return messages.ZmqReply{Error: fmt.Sprintf(`encoding reply failed - %v`, err)}
	}

	return messages.ZmqReply{Ok: true, Body: data}
}

func (z *ZmqListener) reply(rep messages.ZmqReply) {
	data, err := json.Marshal(rep)
	if err != nil {
		z.log.Error(fmt.Sprintf(`marshalling zmq reply failed - %v`, err))
		data = []byte(`{"ok":false,"error":"internal error"}`)
	}

	if _, err = z.skt.SendBytes(data, zmq.DONTWAIT); err != nil {
		z.log.Error(fmt.Sprintf(`sending zmq reply failed - %v`, err))
	}
}
