package domain

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
)

const passwordSaltLen = 16

// EncryptedVault is the payload that, once serialized and encrypted with the
// user password, is persisted as the vault blob. Mnemonic is itself password
// ciphertext.
type EncryptedVault struct {
	Mnemonic    string       `json:"mnemonic"`
	WalletState *WalletState `json:"walletState"`
	LastLogin   int64        `json:"lastLogin"`
}

// PasswordRecord is the persisted salted hash of the user password.
type PasswordRecord struct {
	Hash string `json:"hash"`
	Salt string `json:"salt"`
}

// NewPasswordRecord returns a record for password with a fresh random salt.
func NewPasswordRecord(password string) (*PasswordRecord, error) {
	if len(password) <= 0 {
		return nil, ErrPasswordRequired
	}
	salt := make([]byte, passwordSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return &PasswordRecord{
		Hash: hex.EncodeToString(passwordHash(password, salt)),
		Salt: hex.EncodeToString(salt),
	}, nil
}

// Matches returns whether password is the one the record was created for.
func (r *PasswordRecord) Matches(password string) bool {
	if r == nil {
		return false
	}
	salt, err := hex.DecodeString(r.Salt)
	if err != nil {
		return false
	}
	hash, err := hex.DecodeString(r.Hash)
	if err != nil {
		return false
	}
	return hmac.Equal(hash, passwordHash(password, salt))
}

func passwordHash(password string, salt []byte) []byte {
	mac := hmac.New(sha512.New, salt)
	mac.Write([]byte(password))
	return mac.Sum(nil)
}
