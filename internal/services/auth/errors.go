// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Every error returned by the service matches exactly one
// of them with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrDecryption   = errors.New("decryption error")
	ErrNotFound     = errors.New("not found")
	ErrStore        = errors.New("store error")
)

// Error is a categorized error with a translatable message.
type Error struct {
	kind      error
	messageID string
	msg       string
}

func newError(kind error, messageID, msg string) *Error {
	return &Error{kind: kind, messageID: messageID, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Unwrap returns the category.
func (e *Error) Unwrap() error { return e.kind }

// MessageID returns the i18n message ID.
func (e *Error) MessageID() string { return e.messageID }

// TemplateData returns data for the translated message.
func (e *Error) TemplateData() map[string]any { return nil }

var (
	ErrInvalidCredentials  = newError(ErrUnauthorized, "error_invalid_credentials", "invalid credentials")
	ErrIncorrectCode       = newError(ErrUnauthorized, "error_incorrect_code", "incorrect code")
	ErrInvalidRecoveryCode = newError(ErrUnauthorized, "error_invalid_recovery_code", "invalid or already-used code")
	ErrInvalidToken        = newError(ErrUnauthorized, "error_token_invalid", "invalid or expired token")
	ErrTokenMissing        = newError(ErrUnauthorized, "error_token_missing", "authentication token required")
	ErrStepUpUsed          = newError(ErrUnauthorized, "error_step_up_used", "step-up token already used")

	ErrEmailTaken              = newError(ErrConflict, "error_email_taken", "email already registered")
	ErrTwoFactorAlreadyEnabled = newError(ErrConflict, "error_two_factor_already_enabled", "two-factor authentication already enabled")

	ErrUserNotFound = newError(ErrNotFound, "error_user_not_found", "user not found")

	ErrInvalidEmail        = newError(ErrValidation, "error_invalid_email", "invalid email format")
	ErrPasswordTooLong     = newError(ErrValidation, "error_password_too_long", "password is too long")
	ErrAddressRequired     = newError(ErrValidation, "error_address_required", "address is required")
	ErrInvalidSecret       = newError(ErrValidation, "error_invalid_secret", "invalid two-factor secret")
	ErrTwoFactorNotEnabled = newError(ErrValidation, "error_two_factor_not_enabled", "two-factor authentication not enabled")

	ErrSecretUnreadable = newError(ErrDecryption, "error_decryption", "stored secret could not be decrypted")
)

// MissingFieldsError lists required input fields that were empty.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Unwrap returns ErrValidation.
func (e *MissingFieldsError) Unwrap() error { return ErrValidation }

// MessageID returns the i18n message ID.
func (e *MissingFieldsError) MessageID() string { return "error_missing_fields" }

// TemplateData returns the missing field names for the translated message.
func (e *MissingFieldsError) TemplateData() map[string]any {
	return map[string]any{"Fields": strings.Join(e.Fields, ", ")}
}

// requireFields returns a MissingFieldsError for every empty value, in order.
func requireFields(fields ...[2]string) error {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}

// storeError wraps a persistence failure.
func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// decryptError wraps a failure to read a stored secret.
func decryptError(err error) error {
	return fmt.Errorf("%w: %w", ErrSecretUnreadable, err)
}
