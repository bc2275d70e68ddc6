package authcore

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

const (
	usernameMinLength = 3
	usernameMaxLength = 50
	passwordMinLength = 8
	passwordMaxLength = 128
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const passwordSpecialChars = `!@#$%^&*(),.?":{}|<>`

func validateUsername(username string) error {
	if len(username) < usernameMinLength || len(username) > usernameMaxLength {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrInvalidRegistration, usernameMinLength, usernameMaxLength)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username may contain letters, digits, '_' and '-' only", ErrInvalidRegistration)
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email address", ErrInvalidRegistration)
	}
	return nil
}

// ValidatePassword applies the password policy: 8 to 128 characters with at
// least one upper-case letter, lower-case letter, digit and special
// character.
func ValidatePassword(plain string) error {
	if len(plain) < passwordMinLength || len(plain) > passwordMaxLength {
		return fmt.Errorf("%w: password must be %d-%d characters", ErrPasswordPolicy, passwordMinLength, passwordMaxLength)
	}

	var upper, lower, digit, special bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecialChars, r):
			special = true
		}
	}

	switch {
	case !upper:
		return fmt.Errorf("%w: password needs an upper-case letter", ErrPasswordPolicy)
	case !lower:
		return fmt.Errorf("%w: password needs a lower-case letter", ErrPasswordPolicy)
	case !digit:
		return fmt.Errorf("%w: password needs a digit", ErrPasswordPolicy)
	case !special:
		return fmt.Errorf("%w: password needs a special character", ErrPasswordPolicy)
	}
	return nil
}
