package accounts

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Account is the single source of truth for a user's verified identity.
// Accounts are created on registration or on first identity-provider login
// and are never hard-deleted by this core.
type Account struct {
	ID                string    `json:"id,omitempty"`            // Unique identifier for the account
	Email             string    `json:"email,omitempty"`         // Globally unique, case-sensitive as stored
	PasswordHash      string    `json:"-"`                       // Opaque bcrypt hash - never serialize
	Name              string    `json:"name,omitempty"`          // Display name
	ProfilePictureURL string    `json:"profile_picture_url,omitempty"`
	EmailVerified     bool      `json:"email_verified,omitempty"`
	OTP               string    `json:"-"`                       // Pending one-time code - never serialize
	OTPExpiry         time.Time `json:"-"`                       // Absolute expiry of the pending code
	CreatedAt         time.Time `json:"created_at,omitempty"`
}

// HasPendingOTP reports whether a one-time code is currently bound to the
// account. The OTP fields are either both set or both unset.
func (a *Account) HasPendingOTP() bool {
	return a.OTP != "" && !a.OTPExpiry.IsZero()
}

// SetOTP binds a one-time code to the account, overwriting any pending code.
func (a *Account) SetOTP(code string, expiry time.Time) {
	a.OTP = code
	a.OTPExpiry = expiry
}

// ClearOTP unsets both OTP fields together.
func (a *Account) ClearOTP() {
	a.OTP = ""
	a.OTPExpiry = time.Time{}
}

// ValidatePasswordStrength checks if a password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// UnusablePasswordHash returns a hash of a cryptographically random value
// that is never stored or transmitted, so CheckPasswordHash can never
// succeed against it. Provider-created accounts carry such a hash, which
// deterministically blocks password login for them.
func UnusablePasswordHash() (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("UnusablePasswordHash rand.Read: %w", err)
	}
	return HashPassword(hex.EncodeToString(secret))
}

// NameFromEmail derives a display name from the local part of an email
// address, used when an identity provider asserts no name.
func NameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
