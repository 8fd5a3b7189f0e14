package keyring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeyring(t *testing.T, secret string) *Keyring {
	t.Helper()
	k, err := New(secret, WithArgon2(1, 8*1024, 1))
	require.NoError(t, err)
	return k
}

func TestNew_EmptySecret(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestAccountKey_SealOpen(t *testing.T) {
	k := newTestKeyring(t, "server-secret")
	wk, err := k.NewAccountKey()
	require.NoError(t, err)
	assert.Len(t, wk.Salt, saltLen)
	assert.Len(t, wk.Nonce, nonceLen)

	dk, err := k.Unwrap(wk)
	require.NoError(t, err)

	ct, nonce, err := dk.Seal([]byte("p@ss"))
	require.NoError(t, err)
	assert.NotContains(t, string(ct), "p@ss")

	// A second unwrap yields the same key.
	dk2, err := k.Unwrap(wk)
	require.NoError(t, err)
	pt, err := dk2.Open(ct, nonce)
	require.NoError(t, err)
	assert.Equal(t, "p@ss", string(pt))
}

func TestUnwrap_WrongSecretFails(t *testing.T) {
	wk, err := newTestKeyring(t, "one").NewAccountKey()
	require.NoError(t, err)
	_, err = newTestKeyring(t, "two").Unwrap(wk)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestUnwrap_MissingKey(t *testing.T) {
	_, err := newTestKeyring(t, "s").Unwrap(WrappedKey{})
	assert.Error(t, err)
}

func TestOpen_TamperedCiphertext(t *testing.T) {
	k := newTestKeyring(t, "s")
	wk, err := k.NewAccountKey()
	require.NoError(t, err)
	dk, err := k.Unwrap(wk)
	require.NoError(t, err)

	ct, nonce, err := dk.Seal([]byte("hello"))
	require.NoError(t, err)
	ct[0] ^= 0xff
	_, err = dk.Open(ct, nonce)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = dk.Open(ct, []byte("short"))
	assert.ErrorIs(t, err, ErrDecrypt)
}
