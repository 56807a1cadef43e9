package domain

/* relay REST surface */

const (
	InfoEndpoint     = `/info`
	SendEndpoint     = `/send`
	PollEndpoint     = `/poll`
	AnnounceEndpoint = `/announce`
	LookupEndpoint   = `/lookup`
	ServersEndpoint  = `/servers`
)

/* zmq command surface */

const (
	ZmqOpSend = `send`
	ZmqOpPoll = `poll`
	ZmqOpInfo = `info`
)

/* client types announced to the peer index */

const (
	ClientTypeAgent = `agent`
	ClientTypeRelay = `relay`
)
