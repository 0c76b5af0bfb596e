// Package crypto implements the optional Crypto Envelope and Key Manager
// (spec §4.5), grounded on jeranaias-rigrun's EncryptionManager
// (internal/security/encrypt.go) for the AES-GCM shape, adapted to use
// golang.org/x/crypto/hkdf for the session-key derivation spec §4.5
// specifies explicitly, instead of the reference's password-based PBKDF2.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/ports"
)

var _ ports.CryptoEnvelope = (*Envelope)(nil)

// Envelope applies AES-GCM with a fixed 32-byte key. One Envelope wraps
// one generation of session key; the Key Manager swaps Envelopes on
// rotation.
type Envelope struct {
	aead cipher.AEAD
}

func NewEnvelope(key [32]byte) (*Envelope, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	return &Envelope{aead: aead}, nil
}

func (e *Envelope) Encrypt(plaintext []byte) (nonce [12]byte, ciphertext []byte, err error) {
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nonce, nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}
	ciphertext = e.aead.Seal(nil, nonce[:], plaintext, nil)
	return nonce, ciphertext, nil
}

func (e *Envelope) EncryptWithNonce(nonce [12]byte, plaintext []byte) []byte {
	return e.aead.Seal(nil, nonce[:], plaintext, nil)
}

// Decrypt returns domain.CryptoError{Kind: tag} on any authentication
// failure (spec §4.5's failure table), never a raw AEAD error, so callers
// can branch on the typed error.
func (e *Envelope) Decrypt(nonce [12]byte, ciphertext []byte) ([]byte, error) {
	pt, err := e.aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, &domain.CryptoError{Kind: domain.CryptoTagMismatch}
	}
	return pt, nil
}
