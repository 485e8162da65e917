// Package secrets decrypts API keys stored in the settings row.
package secrets

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
)

// noExpiry disables the token age check.
const noExpiry time.Duration = -1

var (
	ErrNoKey   = errors.New("encryption key not configured")
	ErrInvalid = errors.New("invalid or tampered token")
)

// Box encrypts and decrypts Fernet tokens. The Fernet key is derived from a
// passphrase with SHA-256, so any non-empty passphrase works.
type Box struct {
	key *fernet.Key
}

func New(passphrase string) (*Box, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, ErrNoKey
	}
	sum := sha256.Sum256([]byte(passphrase))
	var key fernet.Key
	copy(key[:], sum[:])
	return &Box{key: &key}, nil
}

// Decrypt returns the plaintext of token. Tokens never expire.
func (b *Box) Decrypt(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", nil
	}
	msg := fernet.VerifyAndDecrypt([]byte(token), noExpiry, []*fernet.Key{b.key})
	if msg == nil {
		return "", ErrInvalid
	}
	return string(msg), nil
}

func (b *Box) Encrypt(plaintext string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plaintext), b.key)
	if err != nil {
		return "", err
	}
	return string(tok), nil
}

// KeyString returns the derived key in the urlsafe base64 form other Fernet
// implementations accept.
func (b *Box) KeyString() string {
	return base64.URLEncoding.EncodeToString(b.key[:])
}
