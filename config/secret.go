package config

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sb1:"

var ErrSecretKeyInvalid = errors.New("secret key must be 32 bytes (hex or base64)")

// SecretBox seals credentials stored in the database (vendor client_secret).
type SecretBox struct {
	key [32]byte
}

func NewSecretBox(rawKey string) (*SecretBox, error) {
	rawKey = strings.TrimSpace(rawKey)
	var decoded []byte
	if b, err := hex.DecodeString(rawKey); err == nil && len(b) == 32 {
		decoded = b
	} else if b, err := base64.StdEncoding.DecodeString(rawKey); err == nil && len(b) == 32 {
		decoded = b
	} else {
		return nil, ErrSecretKeyInvalid
	}
	box := &SecretBox{}
	copy(box.key[:], decoded)
	return box, nil
}

func (b *SecretBox) Seal(plain string) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, &b.key)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open returns values without the sealed prefix unchanged, so rows written
// before a key was configured keep working.
func (b *SecretBox) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed secret: %w", err)
	}
	if len(raw) < 24+secretbox.Overhead {
		return "", errors.New("sealed secret too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &b.key)
	if !ok {
		return "", errors.New("sealed secret could not be opened with the configured key")
	}
	return string(plain), nil
}

func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
