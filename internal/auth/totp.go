package auth

import (
	"errors"
	"fmt"

	"github.com/pquerna/otp/totp"
	"github.com/zfogg/clipstream/backend/internal/database"
	"github.com/zfogg/clipstream/backend/internal/models"
)

// TwoFactorSetup holds the provisioning data returned from 2FA setup
type TwoFactorSetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// SetupTwoFactor generates a TOTP secret for the user. The secret is
// stored but 2FA stays disabled until EnableTwoFactor verifies a code.
func (s *Service) SetupTwoFactor(user *models.User) (*TwoFactorSetup, error) {
	if user.TwoFactorEnabled {
		return nil, errors.New("two-factor authentication is already enabled")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "Clipstream",
		AccountName: user.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	secret := key.Secret()
	if err := database.DB.Model(user).UpdateColumn("two_factor_secret", secret).Error; err != nil {
		return nil, fmt.Errorf("failed to store TOTP secret: %w", err)
	}
	user.TwoFactorSecret = &secret

	return &TwoFactorSetup{
		Secret:     secret,
		OTPAuthURL: key.URL(),
	}, nil
}

// EnableTwoFactor turns 2FA on after verifying a code against the
// pending secret
func (s *Service) EnableTwoFactor(user *models.User, code string) error {
	if user.TwoFactorEnabled {
		return errors.New("two-factor authentication is already enabled")
	}
	if user.TwoFactorSecret == nil {
		return errors.New("two-factor setup has not been started")
	}

	if !totp.Validate(code, *user.TwoFactorSecret) {
		return ErrInvalidCredentials
	}

	if err := database.DB.Model(user).UpdateColumn("two_factor_enabled", true).Error; err != nil {
		return fmt.Errorf("failed to enable two-factor: %w", err)
	}
	user.TwoFactorEnabled = true
	return nil
}

// DisableTwoFactor turns 2FA off after verifying a current code
func (s *Service) DisableTwoFactor(user *models.User, code string) error {
	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		return errors.New("two-factor authentication is not enabled")
	}

	if !totp.Validate(code, *user.TwoFactorSecret) {
		return ErrInvalidCredentials
	}

	err := database.DB.Model(user).Updates(map[string]interface{}{
		"two_factor_enabled": false,
		"two_factor_secret":  nil,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to disable two-factor: %w", err)
	}
	user.TwoFactorEnabled = false
	user.TwoFactorSecret = nil
	return nil
}

// VerifyTOTP checks a TOTP code against the user's secret
func (s *Service) VerifyTOTP(user *models.User, code string) bool {
	if user.TwoFactorSecret == nil {
		return false
	}
	return totp.Validate(code, *user.TwoFactorSecret)
}
