package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/btcsuite/btcutil/base58"
	"github.com/gorilla/mux"
	"github.com/relaymesh/courier/domain"
	"github.com/relaymesh/courier/domain/messages"
	"github.com/relaymesh/courier/domain/services"
	"github.com/relaymesh/courier/log"
)

// Server is the HTTP surface of a relay node: the mailbox endpoints
// (send, poll) plus the discovery endpoints (info, announce, lookup,
// servers) used by agents and by traversing relays.
type Server struct {
	cfg    *domain.RelayConfig
	inbox  *Inbox
	index  *Index
	km     services.KeyManager
	router *mux.Router
	srv    *http.Server
	log    *log.Logger
}

func NewServer(cfg *domain.RelayConfig, inbox *Inbox, index *Index, km services.KeyManager, logger *log.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		inbox:  inbox,
		index:  index,
		km:     km,
		router: mux.NewRouter(),
		log:    logger,
	}

	s.router.HandleFunc(domain.InfoEndpoint, s.handleInfo).Methods(http.MethodGet)
	s.router.HandleFunc(domain.SendEndpoint, s.handleSend).Methods(http.MethodPost)
	s.router.HandleFunc(domain.PollEndpoint, s.handlePoll).Methods(http.MethodPost)
	s.router.HandleFunc(domain.AnnounceEndpoint, s.handleAnnounce).Methods(http.MethodPost)
	s.router.HandleFunc(domain.LookupEndpoint, s.handleLookup).Methods(http.MethodGet)
	s.router.HandleFunc(domain.ServersEndpoint, s.handleServers).Methods(http.MethodGet)

	s.srv = &http.Server{Addr: `:` + strconv.Itoa(cfg.Port), Handler: s.router}
	return s
}

// Router exposes the handler tree, e.g. for serving on a test listener.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.log.Info(fmt.Sprintf(`relay http server listening on %d`, s.cfg.Port))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf(`http server initialization failed - %v`, err)
	}

	return nil
}

func (s *Server) Stop() error {
	return s.srv.Close()
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, messages.InfoRes{
		Name:      s.cfg.Name,
		PublicKey: base58.Encode(s.km.PublicKey()),
		Address:   s.cfg.PublicAddress,
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req messages.SendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Error(fmt.Sprintf(`decoding send request failed - %v`, err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if req.Recipient == `` || req.Channel == `` || len(req.Blob) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.inbox.Push(req.Recipient, req.Channel, Item{
		Blob:          req.Blob,
		SenderKey:     base58.Decode(req.SenderKey),
		SenderAddress: req.SenderAddress,
	})

	s.log.Trace(fmt.Sprintf(`stored blob for %s on channel %s`, req.Recipient, req.Channel))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req messages.PollReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Error(fmt.Sprintf(`decoding poll request failed - %v`, err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	items, cursor := s.inbox.Pop(req.Recipient, req.Channel, req.Limit)

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

	s.respond(w, res)
}

func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req messages.AnnounceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Error(fmt.Sprintf(`decoding announce request failed - %v`, err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if req.PublicKey == `` || req.ServerAddress == `` {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.index.Announce(base58.Decode(req.PublicKey), req.ServerAddress, req.ClientType)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get(`key`)
	if key == `` {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	endpoint := s.index.Lookup(base58.Decode(key), r.URL.Query().Get(`type`))
	if endpoint == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	s.respond(w, messages.LookupRes{
		PublicKey:     key,
		ServerAddress: endpoint.ServerAddress,
	})
}

func (s *Server) handleServers(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, messages.ServersRes{Servers: s.index.Servers()})
}

func (s *Server) respond(w http.ResponseWriter, body interface{}) {
	w.Header().Set(`Content-Type`, `application/json`)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error(fmt.Sprintf(`encoding response failed - %v`, err))
	}
}
