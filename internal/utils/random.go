package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	letterBytes  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numberBytes  = "0123456789"
	alphanumeric = letterBytes + numberBytes
	// referralAlphabet leaves out 0, O, I and L, which read alike when shared aloud.
	referralAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ123456789"
)

func GenerateRandomString(length int) string {
	return generateRandom(length, alphanumeric)
}

func GenerateRandomNumericString(length int) string {
	return generateRandom(length, numberBytes)
}

func generateRandom(length int, charset string) string {
	result := make([]byte, length)
	charsetLength := big.NewInt(int64(len(charset)))

	for i := range result {
		num, _ := rand.Int(rand.Reader, charsetLength)
		result[i] = charset[num.Int64()]
	}

	return string(result)
}

// GenerateReferralCode returns an upper-case code of the given length.
func GenerateReferralCode(length int) string {
	if length <= 0 {
		length = ReferralCodeLength
	}
	return generateRandom(length, referralAlphabet)
}

// NormalizeReferralCode upper-cases a code typed by a user.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func GenerateShareToken() string {
	return GenerateRandomString(TrackingTokenLength)
}

func GenerateOTP(length int) string {
	if length <= 0 {
		length = OTPLength
	}
	return GenerateRandomNumericString(length)
}

// ShortID is the legacy referral code: the last eight characters of a user id.
func ShortID(userID string) string {
	if len(userID) <= ShortIDLength {
		return userID
	}
	return userID[len(userID)-ShortIDLength:]
}
