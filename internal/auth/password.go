package auth

import (
	"crypto/rand"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is built once from random input nobody knows. Comparing against
// it keeps the unknown-email path on the same code path as a real password
// mismatch, so the two failures stay indistinguishable in timing.
var dummyHash = mustDummyHash()

func mustDummyHash() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	hashed, err := bcrypt.GenerateFromPassword(buf, bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hashed
}

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// CompareDummy burns one bcrypt comparison that always fails.
func CompareDummy(plain string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
}
