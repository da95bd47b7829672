package backup

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	KeySize   = 32
	NonceSize = 24 // XChaCha20-Poly1305
)

// WrapKey wraps an object key with the master key. Returns
// nonce|ciphertext so the result is self-contained.
func WrapKey(master, objKey []byte) ([]byte, error) {
	if len(master) != KeySize || len(objKey) != KeySize {
		return nil, fmt.Errorf("keys must be %d bytes", KeySize)
	}
	aead, err := chacha20poly1305.NewX(master)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return append(nonce, aead.Seal(nil, nonce, objKey, nil)...), nil
}

// SealWithKey encrypts plaintext with objKey and nonce, binding aad
// (the serialized header) into the authentication tag.
func SealWithKey(objKey, nonce, plaintext, aad []byte) ([]byte, error) {
	if len(objKey) != KeySize || len(nonce) != NonceSize {
		return nil, fmt.Errorf("invalid key or nonce size")
	}
	aead, err := chacha20poly1305.NewX(objKey)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// OpenPayload unwraps the object key with master and decrypts
// ciphertext, authenticating headerBytes as AAD.
func OpenPayload(master, nonce, ciphertext, wrappedKey, headerBytes []byte) ([]byte, error) {
	if len(master) != KeySize {
		return nil, fmt.Errorf("master key must be %d bytes", KeySize)
	}
	// wrapped = nonce(24) | enc(32) | tag(16)
	if len(wrappedKey) < NonceSize+KeySize+16 {
		return nil, fmt.Errorf("wrapped key too short")
	}
	wrapAead, err := chacha20poly1305.NewX(master)
	if err != nil {
		return nil, err
	}
	objKey, err := wrapAead.Open(nil, wrappedKey[:NonceSize], wrappedKey[NonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("unwrap key: %w", err)
	}
	if len(objKey) != KeySize {
		return nil, fmt.Errorf("unwrapped key wrong size")
	}
	aead, err := chacha20poly1305.NewX(objKey)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, headerBytes)
}
