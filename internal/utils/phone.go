package utils

import (
	"regexp"
	"strings"
)

var (
	phoneRegex    = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
	phoneStripper = regexp.MustCompile(`[^\d+]`)
)

// NormalizePhone strips formatting characters and ensures a leading +.
func NormalizePhone(phone string) string {
	normalized := phoneStripper.ReplaceAllString(phone, "")
	if !strings.HasPrefix(normalized, "+") {
		normalized = "+" + normalized
	}
	return normalized
}

// IsValidPhone checks E.164 after normalization.
func IsValidPhone(phone string) bool {
	return phoneRegex.MatchString(NormalizePhone(phone))
}

func MaskPhone(phone string) string {
	if len(phone) < 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

func ValidateOTP(otp string, length int) bool {
	if len(otp) != length {
		return false
	}
	for _, char := range otp {
		if char < '0' || char > '9' {
			return false
		}
	}
	return true
}
