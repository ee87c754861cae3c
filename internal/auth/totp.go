package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	totpPeriod  = 30
	totpDigits  = 6
	totpSkew    = 1 // one time step of clock drift either side
	qrImageSize = 200
)

// TOTPManager handles TOTP secret generation, encryption at rest, and
// code validation.
type TOTPManager struct {
	encryptionKey []byte // 32-byte AES-256 key
	issuer        string

	now func() time.Time // overridable for tests
}

// NewTOTPManager creates a new TOTP manager.
// encryptionKey must be exactly 32 bytes for AES-256.
func NewTOTPManager(encryptionKey []byte, issuer string) (*TOTPManager, error) {
	if len(encryptionKey) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(encryptionKey))
	}

	return &TOTPManager{
		encryptionKey: encryptionKey,
		issuer:        issuer,
		now:           time.Now,
	}, nil
}

// GenerateKey creates a new TOTP secret for an account and returns the
// base32 secret together with its standard provisioning URI.
func (tm *TOTPManager) GenerateKey(accountEmail string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      tm.issuer,
		AccountName: accountEmail,
		SecretSize:  32, // 256 bits
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	return key.Secret(), key.URL(), nil
}

// RenderQRCode encodes a provisioning URI as a PNG data URL for the
// enrollment screen. Kept separate from GenerateKey so a rendering
// failure after the secret has been persisted is reported as exactly
// that, rather than losing the secret.
func (tm *TOTPManager) RenderQRCode(provisioningURI string) (string, error) {
	qr, err := qrcode.New(provisioningURI, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	qrImage, err := qr.PNG(qrImageSize)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrImage), nil
}

// EncryptSecret encrypts a TOTP secret using AES-256-GCM.
// Returns: (ciphertext, nonce, error)
func (tm *TOTPManager) EncryptSecret(secret string) ([]byte, []byte, error) {
	block, err := aes.NewCipher(tm.encryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(secret), nil)

	return ciphertext, nonce, nil
}

// DecryptSecret decrypts an encrypted TOTP secret. The plaintext must
// only live for the duration of a single verification.
func (tm *TOTPManager) DecryptSecret(ciphertext, nonce []byte) (string, error) {
	block, err := aes.NewCipher(tm.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}

	return string(plaintext), nil
}

// ValidateCode checks a code against the secret for the current time
// step and one step of skew either side. Malformed input simply fails
// validation. On success the matched time step is returned so callers
// can reject replays of the same step; lastUsedStep of nil skips the
// replay check.
func (tm *TOTPManager) ValidateCode(code, secret string, lastUsedStep *int64) (bool, int64) {
	if len(code) != totpDigits {
		return false, 0
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false, 0
		}
	}

	now := tm.now()
	currentStep := now.Unix() / totpPeriod

	opts := totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}

	// Check each candidate step individually so the matched step is
	// known and same-step replays can be rejected.
	for offset := int64(-totpSkew); offset <= totpSkew; offset++ {
		step := currentStep + offset
		at := time.Unix(step*totpPeriod, 0)

		expected, err := totp.GenerateCodeCustom(secret, at, opts)
		if err != nil {
			return false, 0
		}

		if subtle.ConstantTimeCompare([]byte(code), []byte(expected)) == 1 {
			if lastUsedStep != nil && step <= *lastUsedStep {
				return false, 0
			}
			return true, step
		}
	}

	return false, 0
}
