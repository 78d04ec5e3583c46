package hashing

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidHash = errors.New("invalid hash format")

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams are sized for short-lived codes, not passwords.
var DefaultParams = Argon2Params{
	Memory:      32 * 1024,
	Iterations:  2,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// HashResult is what gets persisted in place of a raw code.
type HashResult struct {
	Hash string `json:"hash"`
	Salt string `json:"salt"`
}

// Hasher hashes one-time codes with argon2id. The pepper is a deployment
// secret mixed into every hash; an empty pepper is allowed in development.
type Hasher struct {
	params Argon2Params
	pepper string
}

func NewHasher(pepper string) *Hasher {
	return &Hasher{
		params: DefaultParams,
		pepper: pepper,
	}
}

// HashCode hashes a one-time code with a fresh random salt.
func (h *Hasher) HashCode(code string) (*HashResult, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey(
		[]byte(code+h.pepper),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return &HashResult{
		Hash: base64.RawURLEncoding.EncodeToString(hash),
		Salt: base64.RawURLEncoding.EncodeToString(salt),
	}, nil
}

// VerifyCode compares a candidate code against a stored hash in constant time.
func (h *Hasher) VerifyCode(code string, stored *HashResult) (bool, error) {
	salt, err := base64.RawURLEncoding.DecodeString(stored.Salt)
	if err != nil {
		return false, ErrInvalidHash
	}
	expected, err := base64.RawURLEncoding.DecodeString(stored.Hash)
	if err != nil {
		return false, ErrInvalidHash
	}

	computed := argon2.IDKey(
		[]byte(code+h.pepper),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		uint32(len(expected)),
	)

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// HashPassword produces a bcrypt hash for credential storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether a plaintext password matches a stored hash.
// A mismatch is a false return, never an error.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
