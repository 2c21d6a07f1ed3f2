// Package password hashes and verifies user passwords.
package password

import (
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 12

// MaxBytes is bcrypt's input limit, applied to every algorithm. It counts
// bytes, not characters.
const MaxBytes = 72

var argonParams = &argon2id.Params{
	Memory:      64 * 1024, // 64 MiB
	Iterations:  2,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

type Hasher interface {
	Hash(plain string) (string, error)
	// Verify never fails loudly: a wrong password or a malformed hash is false.
	Verify(plain, hash string) bool
}

// policy hashes with one algorithm and verifies any supported encoding,
// so switching PASSWORD_HASHER does not lock existing users out.
type policy struct {
	algorithm  string
	bcryptCost int
}

func New(algorithm string, bcryptCost int) (Hasher, error) {
	if bcryptCost == 0 {
		bcryptCost = DefaultBcryptCost
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
	}
	switch algorithm {
	case "", "bcrypt":
		algorithm = "bcrypt"
	case "argon2id":
	default:
		return nil, fmt.Errorf("unknown password hasher %q", algorithm)
	}
	return &policy{algorithm: algorithm, bcryptCost: bcryptCost}, nil
}

func (p *policy) Hash(plain string) (string, error) {
	if p.algorithm == "argon2id" {
		return argon2id.CreateHash(plain, argonParams)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), p.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (p *policy) Verify(plain, hash string) bool {
	if strings.HasPrefix(hash, "$argon2id$") {
		ok, err := argon2id.ComparePasswordAndHash(plain, hash)
		return err == nil && ok
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
