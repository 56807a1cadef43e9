package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

const curve25519KeySize = 32

// KeyManager owns the curve25519 keypair identifying one process on
// the relay network.
type KeyManager struct {
	pub *[curve25519KeySize]byte
	prv *[curve25519KeySize]byte
}

func NewKeyManager() *KeyManager {
	return &KeyManager{}
}

func (k *KeyManager) Generate() error {
	pubKey, prvKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf(`generating curve25519 keypair failed - %v`, err)
	}

	k.pub = pubKey
	k.prv = prvKey
	return nil
}

// Set installs an externally provided keypair, e.g. one loaded from
// process configuration.
func (k *KeyManager) Set(pubKey, prvKey []byte) error {
	if len(pubKey) != curve25519KeySize || len(prvKey) != curve25519KeySize {
		return fmt.Errorf(`invalid key length (pub: %d, prv: %d), curve25519 keys must be %d bytes`,
			len(pubKey), len(prvKey), curve25519KeySize)
	}

	var pub, prv [curve25519KeySize]byte
	copy(pub[:], pubKey)
	copy(prv[:], prvKey)

	k.pub = &pub
	k.prv = &prv
	return nil
}

// PublicKey returns nil until a keypair is installed via Generate or
// Set.
func (k *KeyManager) PublicKey() []byte {
	if k.pub == nil {
		return nil
	}

	tmpPubKey := *k.pub
	return tmpPubKey[:]
}

// PrivateKey returns nil until a keypair is installed via Generate or
// Set.
func (k *KeyManager) PrivateKey() []byte {
	if k.prv == nil {
		return nil
	}

	tmpPrvKey := *k.prv
	return tmpPrvKey[:]
}
