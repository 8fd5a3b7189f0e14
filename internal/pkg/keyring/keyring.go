// Package keyring protects per-account data keys.
//
// Each account owns a random 256-bit data key used with AES-GCM to seal its stored
// passwords. The data key is persisted only in wrapped form: sealed under a
// key-encryption key derived with argon2id from the server secret and a per-account salt.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	keyLen   = 32
	saltLen  = 16
	nonceLen = 12
)

// ErrDecrypt is returned when ciphertext fails authentication.
var ErrDecrypt = errors.New("keyring: decryption failed")

type params struct {
	time    uint32
	memory  uint32
	threads uint8
}

// Option tunes argon2id cost.
type Option func(*params)

// WithArgon2 overrides the argon2id time, memory (KiB) and thread parameters.
func WithArgon2(time, memoryKiB uint32, threads uint8) Option {
	return func(p *params) {
		p.time, p.memory, p.threads = time, memoryKiB, threads
	}
}

// Keyring wraps and unwraps account data keys under a server secret.
type Keyring struct {
	secret []byte
	p      params
}

func New(secret string, opts ...Option) (*Keyring, error) {
	if secret == "" {
		return nil, errors.New("keyring: empty secret")
	}
	p := params{time: 1, memory: 64 * 1024, threads: 4}
	for _, o := range opts {
		o(&p)
	}
	return &Keyring{secret: []byte(secret), p: p}, nil
}

// WrappedKey is the persisted form of a data key.
type WrappedKey struct {
	Ciphertext []byte
	Nonce      []byte
	Salt       []byte
}

// NewAccountKey creates a fresh data key and returns it in wrapped form.
func (k *Keyring) NewAccountKey() (WrappedKey, error) {
	dataKey, err := randomBytes(keyLen)
	if err != nil {
		return WrappedKey{}, err
	}
	salt, err := randomBytes(saltLen)
	if err != nil {
		return WrappedKey{}, err
	}
	ct, nonce, err := seal(k.kek(salt), dataKey)
	if err != nil {
		return WrappedKey{}, fmt.Errorf("wrap data key: %w", err)
	}
	return WrappedKey{Ciphertext: ct, Nonce: nonce, Salt: salt}, nil
}

// Unwrap recovers the data key from its wrapped form.
func (k *Keyring) Unwrap(w WrappedKey) (*DataKey, error) {
	if len(w.Ciphertext) == 0 || len(w.Salt) == 0 {
		return nil, errors.New("keyring: account has no data key")
	}
	raw, err := open(k.kek(w.Salt), w.Ciphertext, w.Nonce)
	if err != nil {
		return nil, err
	}
	return &DataKey{key: raw}, nil
}

func (k *Keyring) kek(salt []byte) []byte {
	return argon2.IDKey(k.secret, salt, k.p.time, k.p.memory, k.p.threads, keyLen)
}

// DataKey seals and opens values for a single account.
type DataKey struct {
	key []byte
}

// Seal encrypts plaintext with a fresh 12-byte nonce.
func (d *DataKey) Seal(plaintext []byte) (ciphertext, nonce []byte, err error) {
	return seal(d.key, plaintext)
}

func (d *DataKey) Open(ciphertext, nonce []byte) ([]byte, error) {
	return open(d.key, ciphertext, nonce)
}

func seal(key, plaintext []byte) ([]byte, []byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce, err := randomBytes(nonceLen)
	if err != nil {
		return nil, nil, err
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

func open(key, ciphertext, nonce []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, ErrDecrypt
	}
	out, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return out, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("keyring: read random: %w", err)
	}
	return b, nil
}
