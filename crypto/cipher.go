package crypto

import (
	"crypto/rand"
	"fmt"

	chacha "github.com/GoKillers/libsodium-go/crypto/aead/chacha20poly1305ietf"
	"github.com/GoKillers/libsodium-go/cryptobox"
)

const boxNonceBytes = 24

type encryptor struct{}

func (e *encryptor) box(payload, nonce, peerPubKey, mySecKey []byte) ([]byte, error) {
	encMsg, exit := cryptobox.CryptoBoxEasy(payload, nonce, peerPubKey, mySecKey)
	if exit != 0 {
		return nil, fmt.Errorf(`crypto_box failed with exit code %d`, exit)
	}

	return encMsg, nil
}

func (e *encryptor) boxOpen(cipher, nonce, peerPubKey, mySecKey []byte) ([]byte, error) {
	msg, exit := cryptobox.CryptoBoxOpenEasy(cipher, nonce, peerPubKey, mySecKey)
	if exit != 0 {
		return nil, fmt.Errorf(`crypto_box_open failed with exit code %d`, exit)
	}

	return msg, nil
}

func (e *encryptor) sealBox(payload, peerPubKey []byte) ([]byte, error) {
	encMsg, exit := cryptobox.CryptoBoxSeal(payload, peerPubKey)
	if exit != 0 {
		return nil, fmt.Errorf(`crypto_box_seal failed with exit code %d`, exit)
	}

	return encMsg, nil
}

func (e *encryptor) sealBoxOpen(cipher, peerPubKey, mySecKey []byte) ([]byte, error) {
	msg, exit := cryptobox.CryptoBoxSealOpen(cipher, peerPubKey, mySecKey)
	if exit != 0 {
		return nil, fmt.Errorf(`crypto_box_seal_open failed with exit code %d`, exit)
	}

	return msg, nil
}

func (e *encryptor) encryptDetached(msg, nonce, key []byte) (cipher, mac []byte) {
	var convertedIv [chacha.NonceBytes]byte
	copy(convertedIv[:], nonce)

	var convertedKey [chacha.KeyBytes]byte
	copy(convertedKey[:], key)

	return chacha.EncryptDetached(msg, nil, &convertedIv, &convertedKey)
}

func (e *encryptor) decryptDetached(cipher, mac, nonce, key []byte) ([]byte, error) {
	var convertedIv [chacha.NonceBytes]byte
	copy(convertedIv[:], nonce)

	var convertedKey [chacha.KeyBytes]byte
	copy(convertedKey[:], key)

	msg, err := chacha.DecryptDetached(cipher, mac, nil, &convertedIv, &convertedKey)
	if err != nil {
		return nil, fmt.Errorf(`chacha20poly1305 decryption failed - %v`, err)
	}

	return msg, nil
}

func randomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf(`reading random bytes failed - %v`, err)
	}

	return buf, nil
}
