package util

import (
	"golang.org/x/crypto/bcrypt"
)

// CheckPasswordHash compares a plaintext code against a bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// MaskCode hides most of an access code for log output.
func MaskCode(code string) string {
	if len(code) <= 2 {
		return "******"
	}
	return code[:2] + "****"
}
