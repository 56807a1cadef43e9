package domain

import "time"

// Encoding selects the textual representation of binary fields
// inside a sealed envelope.
type Encoding string

const (
	EncodingBase64 Encoding = `base64`
	EncodingBase58 Encoding = `base58`
)

// CompressionLevel maps to the zstd level a payload is compressed
// with before encryption.
type CompressionLevel int

const (
	CompressionFastest CompressionLevel = iota
	CompressionDefault
	CompressionBetter
	CompressionBest
)

// Config holds the process-wide parameters of an agent. It is
// constructed once at startup and never mutated afterwards; every
// protocol operation reads it concurrently without locking.
type Config struct {
	Name          string
	ServerAddress string
	ServerPubKey  []byte
	PublicKey     []byte
	SecretKey     []byte
	Channel       string
	Encoding      Encoding
	Compression   CompressionLevel
	PollDelay     time.Duration
	Verbose       bool
}

// RelayConfig holds the parameters of a relay node.
type RelayConfig struct {
	Name          string
	Port          int
	ZmqPort       int
	PublicAddress string
	Bootstrap     []string
	Announce      bool
	TraverseDelay time.Duration
	OpenPorts     []int
	PortLease     time.Duration
	Verbose       bool
}
