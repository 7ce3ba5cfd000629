package crypto

import (
	"testing"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("hello, encrypted journal")
	ciphertext, err := Encrypt(plaintext, "correct-horse-battery")
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := Decrypt(ciphertext, "correct-horse-battery")
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptFreshSaltPerCall(t *testing.T) {
	plaintext := []byte("same plaintext")
	c1, err := Encrypt(plaintext, "same-passphrase-1")
	require.NoError(t, err)
	c2, err := Encrypt(plaintext, "same-passphrase-1")
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2, "identical plaintext under the same passphrase must produce different ciphertexts")
}

func TestDecryptWrongPassphrase(t *testing.T) {
	ciphertext, err := Encrypt([]byte("secret"), "right-passphrase")
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, "wrong-passphrase")
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, model.KindIncorrectPassphrase, kind)
}

func TestDecryptBitFlipFails(t *testing.T) {
	ciphertext, err := Encrypt([]byte("secret payload"), "a-passphrase-123")
	require.NoError(t, err)

	flipped := append([]byte(nil), ciphertext...)
	flipped[len(flipped)-1] ^= 0x01

	_, err = Decrypt(flipped, "a-passphrase-123")
	require.Error(t, err)
}

func TestDecryptMalformedInput(t *testing.T) {
	_, err := Decrypt([]byte("too short"), "a-passphrase-123")
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, model.KindCrypto, kind)
}

func TestValidatePassphrase(t *testing.T) {
	cases := []struct {
		name    string
		pass    string
		wantErr bool
	}{
		{"empty", "", true},
		{"whitespace only", "       ", true},
		{"too short", "short12", true},
		{"exactly minimum", "exactly8", false},
		{"long enough", "a much longer passphrase", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassphrase(tc.pass)
			if tc.wantErr {
				require.Error(t, err)
				kind, ok := model.KindOf(err)
				require.True(t, ok)
				assert.Equal(t, model.KindInvalidInput, kind)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestEncryptRejectsBadPassphrase(t *testing.T) {
	_, err := Encrypt([]byte("data"), "short")
	require.Error(t, err)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := make([]byte, saltSize)
	k1 := deriveKey("password123", salt)
	k2 := deriveKey("password123", salt)
	assert.Equal(t, k1, k2)

	otherSalt := make([]byte, saltSize)
	otherSalt[0] = 1
	k3 := deriveKey("password123", otherSalt)
	assert.NotEqual(t, k1, k3)
}
