// Package cryptox holds the key-derivation helpers used to store and check
// vault passkeys without keeping them in plain text.
package cryptox

import (
	"crypto/subtle"
	"errors"

	"github.com/dmitrijs2005/vaultgate/internal/common"
	"golang.org/x/crypto/argon2"
)

// SaltSize is the per-vault salt length in bytes.
const SaltSize = 16

// argon2id parameters. Changing them invalidates every stored passkey hash.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
	kdfKeyLen  = 32
)

var ErrNoEntropy = errors.New("random source unavailable")

// DerivePasskeyHash returns the argon2id derivation of passkey under salt.
func DerivePasskeyHash(passkey, salt []byte) []byte {
	return argon2.IDKey(passkey, salt, kdfTime, kdfMemory, kdfThreads, kdfKeyLen)
}

// NewPasskeyHash draws a fresh salt and derives the hash for passkey.
func NewPasskeyHash(passkey []byte) (hash, salt []byte, err error) {
	salt = common.GenerateRandByteArray(SaltSize)
	if salt == nil {
		return nil, nil, ErrNoEntropy
	}
	return DerivePasskeyHash(passkey, salt), salt, nil
}

// CheckPasskey derives candidate under salt and compares it with hash in
// constant time.
func CheckPasskey(hash, salt, candidate []byte) bool {
	if len(hash) == 0 || len(salt) == 0 {
		return false
	}
	derived := DerivePasskeyHash(candidate, salt)
	defer common.WipeByteArray(derived)
	return subtle.ConstantTimeCompare(hash, derived) == 1
}
