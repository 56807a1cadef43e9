package crypto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	chacha "github.com/GoKillers/libsodium-go/crypto/aead/chacha20poly1305ietf"
	"github.com/btcsuite/btcutil/base58"
	"github.com/relaymesh/courier/domain"
)

/* authcrypt wire envelope */

type authCryptMsg struct {
	Protected  string `json:"protected"`
	Iv         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
	Tag        string `json:"tag"`
}

type payloadHeader struct {
	Typ        string      `json:"typ"`
	Alg        string      `json:"alg"`
	Enc        string      `json:"enc"`
	Zip        string      `json:"zip"`
	Recipients []recipient `json:"recipients"`
}

type recipient struct {
	EncryptedKey string          `json:"encrypted_key"`
	Header       recipientHeader `json:"header"`
}

type recipientHeader struct {
	Kid    string `json:"kid"`
	Iv     string `json:"iv"`
	Sender string `json:"sender"`
}

// Packer seals outbound payloads into authcrypt envelopes and opens
// inbound ones. The payload is zstd-compressed before encryption; the
// binary fields of the envelope are text-encoded per the configured
// encoding, which is recorded in the protected header so any peer can
// open the envelope regardless of its own configuration.
type Packer struct {
	enc  domain.Encoding
	cmp  *compactor
	ciph *encryptor
}

func NewPacker(enc domain.Encoding, lvl domain.CompressionLevel) (*Packer, error) {
	cmp, err := newCompactor(lvl)
	if err != nil {
		return nil, fmt.Errorf(`constructing compactor failed - %v`, err)
	}

	return &Packer{enc: enc, cmp: cmp, ciph: &encryptor{}}, nil
}

// Pack compresses and encrypts payload to the recipient, embedding the
// sender public key so the recipient can authenticate the origin.
func (p *Packer) Pack(payload, recPubKey, sendPubKey, sendPrvKey []byte) ([]byte, error) {
	compressed := p.cmp.compress(payload)

	// content encryption key shared via an authenticated box
	cek, err := randomBytes(chacha.KeyBytes)
	if err != nil {
		return nil, err
	}

	cekIv, err := randomBytes(boxNonceBytes)
	if err != nil {
		return nil, err
	}

	encryptedCek, err := p.ciph.box(cek, cekIv, recPubKey, sendPrvKey)
	if err != nil {
		return nil, fmt.Errorf(`encrypting content key failed - %v`, err)
	}

	encryptedSendKey, err := p.ciph.sealBox(sendPubKey, recPubKey)
	if err != nil {
		return nil, fmt.Errorf(`sealing sender key failed - %v`, err)
	}

	header := payloadHeader{
		Typ: `JWM/1.0`,
		Alg: `Authcrypt`,
		Enc: string(p.enc),
		Zip: `zstd`,
		Recipients: []recipient{
			{
				EncryptedKey: p.encode(encryptedCek),
				Header: recipientHeader{
					Kid:    base58.Encode(recPubKey),
					Iv:     p.encode(cekIv),
					Sender: p.encode(encryptedSendKey),
				},
			},
		},
	}

	headerData, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf(`marshalling protected header failed - %v`, err)
	}

	iv, err := randomBytes(chacha.NonceBytes)
	if err != nil {
		return nil, err
	}

	cipher, mac := p.ciph.encryptDetached(compressed, iv, cek)

	msg := authCryptMsg{
		Protected:  base64.StdEncoding.EncodeToString(headerData),
		Iv:         p.encode(iv),
		Ciphertext: p.encode(cipher),
		Tag:        p.encode(mac),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf(`marshalling authcrypt message failed - %v`, err)
	}

	return data, nil
}

// Unpack verifies and decrypts an authcrypt envelope, returning the
// plaintext payload and the sender public key recovered from it. Every
// failure is reported as an authentication error of this single item.
func (p *Packer) Unpack(data, recPubKey, recPrvKey []byte) (payload, senderPubKey []byte, err error) {
	var msg authCryptMsg
	if err = json.Unmarshal(data, &msg); err != nil {
		return nil, nil, &domain.AuthError{Reason: `invalid authcrypt message`, Err: err}
	}

	headerData, err := base64.StdEncoding.DecodeString(msg.Protected)
	if err != nil {
		return nil, nil, &domain.AuthError{Reason: `invalid protected header encoding`, Err: err}
	}

	var header payloadHeader
	if err = json.Unmarshal(headerData, &header); err != nil {
		return nil, nil, &domain.AuthError{Reason: `invalid protected header`, Err: err}
	}

	if len(header.Recipients) == 0 {
		return nil, nil, &domain.AuthError{Reason: `no recipients found`}
	}
	rec := header.Recipients[0]

	enc := domain.Encoding(header.Enc)

	encryptedSendKey, err := decode(enc, rec.Header.Sender)
	if err != nil {
		return nil, nil, &domain.AuthError{Reason: `invalid sender key encoding`, Err: err}
	}

	sendPubKey, err := p.ciph.sealBoxOpen(encryptedSendKey, recPubKey, recPrvKey)
	if err != nil {
		return nil, nil, &domain.AuthError{Reason: `opening sender key failed`, Err: err}
	}

	encryptedCek, err := decode(enc, rec.EncryptedKey)
	if err != nil {
		return nil, nil, &domain.AuthError{Reason: `invalid content key encoding`, Err: err}
	}

	cekIv, err := decode(enc, rec.Header.Iv)
	if err != nil {
		return nil, nil, &domain.AuthError{Reason: `invalid content key nonce encoding`, Err: err}
	}

	cek, err := p.ciph.boxOpen(encryptedCek, cekIv, sendPubKey, recPrvKey)
	if err != nil {
		return nil, nil, &domain.AuthError{Reason: `opening content key failed`, Err: err}
	}

	cipher, err := decode(enc, msg.Ciphertext)
	if err != nil {
		return nil, nil, &domain.AuthError{Reason: `invalid ciphertext encoding`, Err: err}
	}

	mac, err := decode(enc, msg.Tag)
	if err != nil {
		return nil, nil, &domain.AuthError{Reason: `invalid tag encoding`, Err: err}
	}

	iv, err := decode(enc, msg.Iv)
	if err != nil {
		return nil, nil, &domain.AuthError{Reason: `invalid nonce encoding`, Err: err}
	}

	compressed, err := p.ciph.decryptDetached(cipher, mac, iv, cek)
	if err != nil {
		return nil, nil, &domain.AuthError{Reason: `payload decryption failed`, Err: err}
	}

	payload, err = p.cmp.decompress(compressed)
	if err != nil {
		return nil, nil, &domain.AuthError{Reason: `payload decompression failed`, Err: err}
	}

	return payload, sendPubKey, nil
}

func (p *Packer) encode(data []byte) string {
	if p.enc == domain.EncodingBase58 {
		return base58.Encode(data)
	}

	return base64.StdEncoding.EncodeToString(data)
}

func decode(enc domain.Encoding, val string) ([]byte, error) {
	if enc == domain.EncodingBase58 {
		return base58.Decode(val), nil
	}

	return base64.StdEncoding.DecodeString(val)
}
