package security

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	_, err := h.Hash("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.NoError(t, h.Compare(hash, "correct horse"))
	assert.ErrorIs(t, h.Compare(hash, "battery staple"), ErrPasswordMismatch)
}

func TestFieldCipherRoundTrip(t *testing.T) {
	c, err := NewFieldCipher(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	sealed, err := c.Seal("sessão difícil")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
	assert.NotContains(t, sealed, "difícil")

	again, err := c.Seal("sessão difícil")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonces must differ")

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "sessão difícil", plain)

	empty, err := c.Seal("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFieldCipherPassesThroughLegacyPlaintext(t *testing.T) {
	c, err := NewFieldCipher(bytes.Repeat([]byte{1}, 16))
	require.NoError(t, err)

	plain, err := c.Open("written before encryption")
	require.NoError(t, err)
	assert.Equal(t, "written before encryption", plain)
}

func TestFieldCipherRejectsWrongKeyAndCorruption(t *testing.T) {
	a, err := NewFieldCipher(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	b, err := NewFieldCipher(bytes.Repeat([]byte{2}, 32))
	require.NoError(t, err)

	sealed, err := a.Seal("secret")
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.ErrorIs(t, err, ErrDecryption)
	_, err = a.Open(sealedPrefix + "!!!")
	assert.ErrorIs(t, err, ErrDecryption)
	_, err = a.Open(sealedPrefix + base64.StdEncoding.EncodeToString([]byte("x")))
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestNewFieldCipherKeys(t *testing.T) {
	_, err := NewFieldCipher([]byte("too short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = NewFieldCipherFromBase64("not base64 !")
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = NewFieldCipherFromBase64(base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{9}, 32)))
	assert.NoError(t, err)
}
