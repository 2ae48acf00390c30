package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is the nonce length used by every supported AEAD in this
// package; both AES-256-GCM and ChaCha20-Poly1305 take 12-byte nonces.
const NonceSize = 12

// TagSize is the authentication tag length appended by Seal.
const TagSize = 16

// Engine provides AEAD sealing and opening. Vaults written by this module
// use AES-256-GCM (AlgAESGCM) by default; the ChaCha20-Poly1305 engine sits
// behind the same interface and is used for new blobs when the caller
// selects AlgChaCha20P1.
type Engine interface {
	Seal(nonce, plaintext, associatedData []byte) []byte
	Open(nonce, ciphertext, associatedData []byte) ([]byte, error)
}

// Alg identifies which AEAD produced a blob's ciphertext.
type Alg string

const (
	AlgAESGCM     Alg = "AES-256-GCM"
	AlgChaCha20P1 Alg = "ChaCha20-Poly1305"
)

type aesGCMEngine struct {
	aead cipher.AEAD
}

// NewAESGCMEngine builds an AES-256-GCM engine from a 32-byte key.
func NewAESGCMEngine(key []byte) (Engine, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("cryptoutil: AES-256 key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: new AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: new GCM: %w", err)
	}
	return &aesGCMEngine{aead: aead}, nil
}

func (e *aesGCMEngine) Seal(nonce, plaintext, ad []byte) []byte {
	return e.aead.Seal(nil, nonce, plaintext, ad)
}

func (e *aesGCMEngine) Open(nonce, ciphertext, ad []byte) ([]byte, error) {
	pt, err := e.aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return pt, nil
}

type chachaEngine struct {
	aead cipher.AEAD
}

// NewChaCha20Poly1305Engine builds a ChaCha20-Poly1305 engine from a 32-byte key.
func NewChaCha20Poly1305Engine(key []byte) (Engine, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: new ChaCha20-Poly1305: %w", err)
	}
	return &chachaEngine{aead: aead}, nil
}

func (e *chachaEngine) Seal(nonce, plaintext, ad []byte) []byte {
	return e.aead.Seal(nil, nonce, plaintext, ad)
}

func (e *chachaEngine) Open(nonce, ciphertext, ad []byte) ([]byte, error) {
	pt, err := e.aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return pt, nil
}

// NewEngine builds the engine named by alg.
func NewEngine(alg Alg, key []byte) (Engine, error) {
	switch alg {
	case AlgAESGCM:
		return NewAESGCMEngine(key)
	case AlgChaCha20P1:
		return NewChaCha20Poly1305Engine(key)
	default:
		return nil, ErrUnsupportedCipher
	}
}

// NewNonce returns a fresh random 12-byte nonce. Every encryption call must
// draw a new one; nonces are never cached or reused.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptoutil: generate nonce: %w", err)
	}
	return nonce, nil
}

// NewSalt returns fresh random bytes of the given length, for vault salts
// and identifiers.
func NewSalt(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("cryptoutil: generate random bytes: %w", err)
	}
	return b, nil
}
