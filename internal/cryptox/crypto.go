// Package cryptox seals storage-account secrets at rest.
//
// A sealed value is self-describing:
//
//	enc:v1:<base64 salt>:<base64 nonce||ciphertext>
//
// The AES-256-GCM key is derived from the master password and the salt with
// argon2id, so rotating the salt never requires re-reading old values.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/megarelay/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	sealedPrefix = "enc:v1:"
	saltSize     = 16
)

var ErrMalformed = errors.New("malformed sealed value")

// DeriveMasterKey derives a 32-byte key from password and salt with argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// IsSealed reports whether s was produced by Sealer.Seal.
func IsSealed(s string) bool {
	return strings.HasPrefix(s, sealedPrefix)
}

// Sealer encrypts and decrypts short strings with a password-derived key.
// New values are sealed under one random salt per Sealer; keys for other
// salts are derived lazily and cached. Safe for concurrent use.
type Sealer struct {
	password []byte
	salt     []byte

	mu    sync.Mutex
	aeads map[string]cipher.AEAD
}

func NewSealer(password string) (*Sealer, error) {
	if password == "" {
		return nil, errors.New("empty master password")
	}
	return &Sealer{
		password: []byte(password),
		salt:     common.GenerateRandByteArray(saltSize),
		aeads:    make(map[string]cipher.AEAD),
	}, nil
}

func (s *Sealer) aead(salt []byte) (cipher.AEAD, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.aeads[string(salt)]; ok {
		return a, nil
	}

	key := DeriveMasterKey(s.password, salt)
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	a, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	s.aeads[string(salt)] = a
	return a, nil
}

// Seal encrypts plaintext. Already sealed input is returned unchanged.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if IsSealed(plaintext) {
		return plaintext, nil
	}

	a, err := s.aead(s.salt)
	if err != nil {
		return "", err
	}

	nonce := common.GenerateRandByteArray(a.NonceSize())
	ciphertext := a.Seal(nonce, nonce, []byte(plaintext), nil)

	enc := base64.RawStdEncoding
	return sealedPrefix + enc.EncodeToString(s.salt) + ":" + enc.EncodeToString(ciphertext), nil
}

// Open decrypts a value produced by Seal. Input without the sealed prefix is
// treated as legacy plaintext and returned unchanged.
func (s *Sealer) Open(sealed string) (string, error) {
	if !IsSealed(sealed) {
		return sealed, nil
	}

	saltPart, dataPart, ok := strings.Cut(strings.TrimPrefix(sealed, sealedPrefix), ":")
	if !ok {
		return "", ErrMalformed
	}

	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(saltPart)
	if err != nil {
		return "", fmt.Errorf("%w: salt: %v", ErrMalformed, err)
	}
	data, err := enc.DecodeString(dataPart)
	if err != nil {
		return "", fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}

	a, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	if len(data) < a.NonceSize() {
		return "", ErrMalformed
	}

	plaintext, err := a.Open(nil, data[:a.NonceSize()], data[a.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plaintext), nil
}
