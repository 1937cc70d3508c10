package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/scrypt"
)

const (
	saltLen = 32
	keyLen  = 32
	// DefaultScryptN is 2^20, the recommended cost for key-stretching.
	// Check the doc for other recommended values:
	// https://godoc.org/golang.org/x/crypto/scrypt
	DefaultScryptN = 1 << 20
)

// DefaultCypher is used by the package level Encrypt and Decrypt.
var DefaultCypher = NewCypher(DefaultScryptN)

// Cypher encrypts with AES-256-GCM under a scrypt derived key. The output is
// base64(nonce || ciphertext || salt).
type Cypher struct {
	scryptN int
}

// NewCypher returns a cypher using the given scrypt cost, which must be a
// power of two greater than 1. Invalid values fall back to DefaultScryptN.
func NewCypher(scryptN int) Cypher {
	if scryptN <= 1 || scryptN&(scryptN-1) != 0 {
		scryptN = DefaultScryptN
	}
	return Cypher{scryptN}
}

// EncryptOpts is the struct given to Encrypt method
type EncryptOpts struct {
	PlainText  string
	Passphrase string
}

func (o EncryptOpts) validate() error {
	if len(o.PlainText) <= 0 {
		return ErrNullPlainText
	}
	if len(o.Passphrase) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Encrypt encrypts a plaintext with the provided passphrase
func Encrypt(opts EncryptOpts) (string, error) {
	return DefaultCypher.Encrypt(opts)
}

// Encrypt encrypts a plaintext with the provided passphrase
func (c Cypher) Encrypt(opts EncryptOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	key, salt, err := c.DeriveKey([]byte(opts.Passphrase), nil)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(opts.PlainText), nil)
	ciphertext = append(ciphertext, salt...)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptOpts is the struct given to Decrypt method
type DecryptOpts struct {
	CypherText string
	Passphrase string
}

func (o DecryptOpts) validate() error {
	if len(o.CypherText) <= 0 {
		return ErrNullCypherText
	}
	if _, err := base64.StdEncoding.DecodeString(o.CypherText); err != nil {
		return ErrInvalidCypherText
	}
	if len(o.Passphrase) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Decrypt decrypts a cyphertext with the provided passphrase
func Decrypt(opts DecryptOpts) (string, error) {
	return DefaultCypher.Decrypt(opts)
}

// Decrypt decrypts a cyphertext with the provided passphrase. A wrong
// passphrase or a tampered cyphertext both fail with ErrInvalidPassphrase.
func (c Cypher) Decrypt(opts DecryptOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	data, _ := base64.StdEncoding.DecodeString(opts.CypherText)
	if len(data) <= saltLen {
		return "", ErrInvalidCypherText
	}
	salt, data := data[len(data)-saltLen:], data[:len(data)-saltLen]

	key, _, err := c.DeriveKey([]byte(opts.Passphrase), salt)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", ErrInvalidCypherText
	}
	nonce, text := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, text, nil)
	if err != nil {
		return "", ErrInvalidPassphrase
	}
	return string(plaintext), nil
}

// DeriveKey derives a 32 byte array key from a custom passhprase. A random
// salt is generated if none is given.
func (c Cypher) DeriveKey(passphrase, salt []byte) ([]byte, []byte, error) {
	if salt == nil {
		salt = make([]byte, saltLen)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, err
		}
	}
	key, err := scrypt.Key(passphrase, salt, c.scryptN, 8, 1, keyLen)
	if err != nil {
		return nil, nil, err
	}
	return key, salt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(blockCipher)
}
