// Package crypto implements the passphrase-encrypted envelope that wraps
// the serialized database image on disk.
package crypto

import (
	"crypto/rand"
	"io"
	"strings"
	"unicode"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	keySize   = chacha20poly1305.KeySize // 32
	nonceSize = chacha20poly1305.NonceSizeX
	saltSize  = 16

	// Argon2id parameters (OWASP-recommended minimums for interactive use).
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 2

	// MinPassphraseLen is the shortest passphrase create/open/close accept.
	MinPassphraseLen = 8
)

// key is a derived 32-byte envelope key. zero zeroes it in place so key
// material does not linger in memory past its useful lifetime.
type key [keySize]byte

func (k *key) zero() {
	for i := range k {
		k[i] = 0
	}
}

func deriveKey(passphrase string, salt []byte) key {
	var k key
	dk := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keySize)
	copy(k[:], dk)
	for i := range dk {
		dk[i] = 0
	}
	return k
}

// ValidatePassphrase rejects empty, whitespace-only, or too-short
// passphrases.
func ValidatePassphrase(passphrase string) error {
	if strings.TrimSpace(passphrase) == "" {
		return model.ErrorInvalidInput("passphrase must not be empty")
	}
	if len([]rune(passphrase)) < MinPassphraseLen {
		return model.ErrorInvalidInput("passphrase must be at least %d characters", MinPassphraseLen)
	}
	if isAllWhitespace(passphrase) {
		return model.ErrorInvalidInput("passphrase must not be empty")
	}
	return nil
}

func isAllWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Encrypt seals plaintext under passphrase. The envelope layout is
// [salt(16) | nonce(24) | ciphertext+tag]; a fresh salt (and therefore a
// fresh derived key) and a fresh random nonce are generated on every call, so encrypting
// identical plaintext under the same passphrase twice yields different
// ciphertexts.
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	if err := ValidatePassphrase(passphrase); err != nil {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, model.ErrorCrypto(err, "failed to generate salt")
	}

	k := deriveKey(passphrase, salt)
	defer k.zero()

	aead, err := chacha20poly1305.NewX(k[:])
	if err != nil {
		return nil, model.ErrorCrypto(err, "failed to construct AEAD")
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, model.ErrorCrypto(err, "failed to generate nonce")
	}

	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// Decrypt opens ciphertext produced by Encrypt. It returns a distinguished
// IncorrectPassphrase error when authentication fails, and a generic Crypto
// error for malformed input.
func Decrypt(ciphertext []byte, passphrase string) ([]byte, error) {
	if err := ValidatePassphrase(passphrase); err != nil {
		return nil, err
	}

	if len(ciphertext) < saltSize+nonceSize {
		return nil, model.ErrorCrypto(nil, "ciphertext too short")
	}

	salt := ciphertext[:saltSize]
	nonce := ciphertext[saltSize : saltSize+nonceSize]
	sealed := ciphertext[saltSize+nonceSize:]

	k := deriveKey(passphrase, salt)
	defer k.zero()

	aead, err := chacha20poly1305.NewX(k[:])
	if err != nil {
		return nil, model.ErrorCrypto(err, "failed to construct AEAD")
	}

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, model.ErrorIncorrectPassphrase()
	}
	return plaintext, nil
}
