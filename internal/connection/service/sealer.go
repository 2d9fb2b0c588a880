package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/smallbiznis/clarity/internal/connection/domain"
	"golang.org/x/crypto/hkdf"
)

const (
	sealVersion = 1
	sealKeyInfo = "clarity/connection-access-token/v1"
)

var errSealedTokenCorrupt = errors.New("sealed_token_corrupt")

type sealedToken struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// tokenSealer encrypts platform access tokens with AES-256-GCM under a key
// derived from the configured secret with HKDF-SHA256.
type tokenSealer struct {
	key []byte
}

func newTokenSealer(secret string) tokenSealer {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return tokenSealer{}
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sealKeyInfo)), key); err != nil {
		return tokenSealer{}
	}
	return tokenSealer{key: key}
}

func (s tokenSealer) seal(token string) (string, error) {
	if len(s.key) == 0 {
		return "", domain.ErrEncryptionKeyMissing
	}

	gcm, err := s.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	out, err := json.Marshal(sealedToken{
		Version:    sealVersion,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(gcm.Seal(nil, nonce, []byte(token), nil)),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s tokenSealer) open(sealed string) (string, error) {
	if len(s.key) == 0 {
		return "", domain.ErrEncryptionKeyMissing
	}

	var envelope sealedToken
	if err := json.Unmarshal([]byte(sealed), &envelope); err != nil || envelope.Version != sealVersion {
		return "", errSealedTokenCorrupt
	}
	nonce, err := base64.RawStdEncoding.DecodeString(envelope.Nonce)
	if err != nil {
		return "", errSealedTokenCorrupt
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(envelope.Ciphertext)
	if err != nil {
		return "", errSealedTokenCorrupt
	}

	gcm, err := s.aead()
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", errSealedTokenCorrupt
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errSealedTokenCorrupt
	}
	return string(plain), nil
}

func (s tokenSealer) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
