package identity

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/goliatone/go-errors"
)

const (
	verificationCodeMin  = 100000
	verificationCodeSpan = 900000
	resetTokenBytes      = 32
)

// GenerateVerificationCode returns a uniform random 6 digit numeric code
// in [100000, 999999]. Codes are scoped per user so cross user collisions
// are acceptable, predictability is not.
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(verificationCodeSpan))
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate verification code")
	}
	return strconv.FormatInt(n.Int64()+verificationCodeMin, 10), nil
}

// GenerateResetToken returns a 64 hex character opaque token backed by
// 32 bytes of crypto randomness.
func GenerateResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate reset token")
	}
	return hex.EncodeToString(buf), nil
}
