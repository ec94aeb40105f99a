package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Card number defaults for generated cards
const (
	DefaultCardPrefix   = "400000"
	DefaultCardLength   = 16
	CardValidityYears   = 3
	maskedVisibleDigits = 4
)

var ten = big.NewInt(10)

// GenerateCardNumber generates a card number with the given prefix and length.
// The last digit is a Luhn check digit.
func GenerateCardNumber(prefix string, length int) (string, error) {
	if length <= len(prefix) || length > 19 {
		return "", fmt.Errorf("invalid card number length: %d", length)
	}
	if !isDigits(prefix) {
		return "", fmt.Errorf("card prefix must be numeric: %q", prefix)
	}

	var builder strings.Builder
	builder.WriteString(prefix)
	for builder.Len() < length-1 {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate random digits: %w", err)
		}
		builder.WriteByte(byte('0' + d.Int64()))
	}
	payload := builder.String()
	return payload + string('0'+luhnCheckDigit(payload)), nil
}

// LuhnValid reports whether number passes the Luhn checksum
func LuhnValid(number string) bool {
	if len(number) < 2 || !isDigits(number) {
		return false
	}
	return luhnCheckDigit(number[:len(number)-1]) == number[len(number)-1]-'0'
}

// luhnCheckDigit computes the digit that makes payload+digit Luhn valid
func luhnCheckDigit(payload string) byte {
	sum := 0
	double := true
	for i := len(payload) - 1; i >= 0; i-- {
		d := int(payload[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return byte((10 - sum%10) % 10)
}

// MaskCardNumber keeps the prefix and the last four digits, e.g. 400000******1234
func MaskCardNumber(number string) string {
	if len(number) <= len(DefaultCardPrefix)+maskedVisibleDigits {
		return strings.Repeat("*", len(number))
	}
	hidden := len(number) - len(DefaultCardPrefix) - maskedVisibleDigits
	return number[:len(DefaultCardPrefix)] + strings.Repeat("*", hidden) + number[len(number)-maskedVisibleDigits:]
}

// DefaultExpiry is the last day of the current month, CardValidityYears ahead
func DefaultExpiry(now time.Time) time.Time {
	firstOfMonth := time.Date(now.Year()+CardValidityYears, now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return firstOfMonth.AddDate(0, 1, -1)
}

// GenerateCVV generates a 3-digit CVV code
func GenerateCVV() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return "", fmt.Errorf("failed to generate CVV: %w", err)
	}
	return fmt.Sprintf("%03d", n.Int64()), nil
}

// HashCVV returns the bcrypt hash stored in place of the CVV
func HashCVV(cvv string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(cvv), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash CVV: %w", err)
	}
	return string(hash), nil
}

// VerifyCVV reports whether cvv matches a hash produced by HashCVV
func VerifyCVV(hash, cvv string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(cvv)) == nil
}

// GenerateHMAC returns the keyed digest of a card number, used to detect duplicates
// without storing the number in clear
func GenerateHMAC(cardNumber, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(cardNumber))
	return hex.EncodeToString(h.Sum(nil))
}

// Encrypt seals data with AES-GCM and returns nonce+ciphertext hex encoded
func Encrypt(data string, key []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("input data is empty")
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(data), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt
func Decrypt(encryptedData string, key []byte) (string, error) {
	if len(encryptedData) == 0 {
		return "", fmt.Errorf("encrypted data is empty")
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	data, err := hex.DecodeString(encryptedData)
	if err != nil {
		return "", fmt.Errorf("failed to decode hex: %w", err)
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("encrypted data too short: %d bytes", len(data))
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
