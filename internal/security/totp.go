package security

import (
	"fmt"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// GenerateTOTPSecret creates a new TOTP key for MFA enrollment.
func GenerateTOTPSecret(issuer, account string) (*otp.Key, error) {
	key, errGen := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
	})
	if errGen != nil {
		return nil, fmt.Errorf("security: generate totp secret: %w", errGen)
	}
	return key, nil
}

// ValidateTOTP reports whether the code matches the stored TOTP secret.
func ValidateTOTP(secret, code string) bool {
	secret = strings.TrimSpace(secret)
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}
