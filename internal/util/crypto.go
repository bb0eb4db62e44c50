package util

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"math/big"
	"strings"
)

const (
	sessionIDBytes = 16
	PINLength      = 6
)

// GenerateSessionID returns 128 bits of randomness encoded as unpadded
// URL-safe base64.
func GenerateSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GeneratePIN returns PINLength independent random digits. Leading zeros are
// kept.
func GeneratePIN() (string, error) {
	var sb strings.Builder
	sb.Grow(PINLength)
	ten := big.NewInt(10)
	for i := 0; i < PINLength; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func MaskPIN(pin string) string {
	if len(pin) <= 2 {
		return "******"
	}
	return pin[:2] + "****"
}
