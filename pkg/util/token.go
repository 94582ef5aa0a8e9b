package util

import (
	"crypto/rand"
	"encoding/hex"
)

func GenerateVerificationCode() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// VerificationRecord is the TXT value a user publishes to prove domain ownership.
func VerificationRecord(code string) string {
	return "careerloop-verification=" + code
}
