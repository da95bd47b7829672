package backup

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
)

// Wire format: 4-byte big-endian header length | header JSON | body.
// The body is AEAD ciphertext when Header.Crypto is populated,
// plaintext otherwise.

// EncodeSegment serializes a segment object. With encrypt false the
// payload ships plaintext (trusted store) and Crypto stays empty.
func EncodeSegment(h *Header, payload *SegmentPayload, master []byte, encrypt bool) ([]byte, error) {
	plain, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return encodeObject(h, plain, master, encrypt)
}

// EncodeBlob serializes a blob object around raw plaintext content.
func EncodeBlob(h *Header, plaintext, master []byte, encrypt bool) ([]byte, error) {
	return encodeObject(h, plaintext, master, encrypt)
}

func encodeObject(h *Header, plaintext, master []byte, encrypt bool) ([]byte, error) {
	if !encrypt {
		h.Crypto = CryptoEnv{}
		headerBytes, err := json.Marshal(h)
		if err != nil {
			return nil, err
		}
		return frame(headerBytes, plaintext), nil
	}

	if len(master) != KeySize {
		return nil, fmt.Errorf("master key must be %d bytes", KeySize)
	}
	objKey := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, objKey); err != nil {
		return nil, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	wrapped, err := WrapKey(master, objKey)
	if err != nil {
		return nil, err
	}
	h.Crypto = CryptoEnv{
		NonceHex:   hex.EncodeToString(nonce),
		WrappedKey: hex.EncodeToString(wrapped),
	}
	// The header must be final before sealing: it is the AAD.
	headerBytes, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	body, err := SealWithKey(objKey, nonce, plaintext, headerBytes)
	if err != nil {
		return nil, err
	}
	return frame(headerBytes, body), nil
}

func frame(header, body []byte) []byte {
	buf := make([]byte, 4, 4+len(header)+len(body))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(header)))
	buf = append(buf, header...)
	return append(buf, body...)
}

// DecodeObject splits raw into header and body without decrypting.
func DecodeObject(raw []byte) (*Header, []byte, error) {
	if len(raw) < 4 {
		return nil, nil, fmt.Errorf("object too short")
	}
	headerLen := binary.BigEndian.Uint32(raw[:4])
	if headerLen > 1024*1024 {
		return nil, nil, fmt.Errorf("header too long")
	}
	if len(raw) < 4+int(headerLen) {
		return nil, nil, fmt.Errorf("truncated object")
	}
	headerBytes := raw[4 : 4+headerLen]
	var h Header
	if err := json.Unmarshal(headerBytes, &h); err != nil {
		return nil, nil, fmt.Errorf("parse header: %w", err)
	}
	if h.Magic != Magic || h.Version != Version {
		return nil, nil, fmt.Errorf("invalid magic/version")
	}
	return &h, raw[4+headerLen:], nil
}

// DecryptObject returns the plaintext body. Plaintext objects pass
// through; encrypted ones require the master key.
func DecryptObject(h *Header, body, master []byte) ([]byte, error) {
	if h.Crypto.NonceHex == "" || h.Crypto.WrappedKey == "" {
		return body, nil
	}
	if len(master) == 0 {
		return nil, fmt.Errorf("encrypted object but no key configured")
	}
	headerBytes, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	nonce, err := hex.DecodeString(h.Crypto.NonceHex)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	wrapped, err := hex.DecodeString(h.Crypto.WrappedKey)
	if err != nil {
		return nil, fmt.Errorf("wrapped key: %w", err)
	}
	return OpenPayload(master, nonce, body, wrapped, headerBytes)
}
