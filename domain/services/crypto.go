package services

/* crypto interfaces */

// Packer seals and opens the byte payload of an envelope. Pack
// authenticates the sender to the recipient; Unpack verifies and
// returns the sender public key recovered from the sealed envelope.
type Packer interface {
	Pack(payload, recPubKey, sendPubKey, sendPrvKey []byte) ([]byte, error)
	Unpack(data, recPubKey, recPrvKey []byte) (payload, senderPubKey []byte, err error)
}

// KeyManager owns the curve25519 keypair of one process.
type KeyManager interface {
	Generate() error
	PublicKey() []byte
	PrivateKey() []byte
}
