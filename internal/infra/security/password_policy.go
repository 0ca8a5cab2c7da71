package security

import (
	"fmt"
	"strings"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	passwordMinLength = 8
	passwordMaxLength = 160

	passwordDigits  = "1234567890"
	passwordLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	passwordSymbols = "-_/\\(){}[]|!@#$%^&*)+=\"';:<>,.?"
)

// PolicyError represents a single password policy violation.
type PolicyError struct {
	Code    string
	Message string
}

// Error implements error for PolicyError.
func (e *PolicyError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

var (
	// ErrPasswordTooShort is returned when the password is under the minimum length.
	ErrPasswordTooShort = &PolicyError{Code: "too_short", Message: fmt.Sprintf("password must be at least %d characters long", passwordMinLength)}
	// ErrPasswordTooLong is returned when the password exceeds the maximum length.
	ErrPasswordTooLong = &PolicyError{Code: "too_long", Message: fmt.Sprintf("password must be at most %d characters long", passwordMaxLength)}
	// ErrPasswordNoSymbol is returned when no special symbol is present.
	ErrPasswordNoSymbol = &PolicyError{Code: "symbols", Message: "password must include at least one special character"}
	// ErrPasswordNoDigit is returned when no digit is present.
	ErrPasswordNoDigit = &PolicyError{Code: "digits", Message: "password must include at least one digit"}
	// ErrPasswordNoLetter is returned when no letter is present.
	ErrPasswordNoLetter = &PolicyError{Code: "letters", Message: "password must include at least one letter"}
	// ErrPasswordWeak is returned when the optional strength rule rejects the password.
	ErrPasswordWeak = &PolicyError{Code: "weak", Message: "password is too weak; choose a more complex value"}
)

// ValidatePassword applies the password policy rules in fixed order and
// returns the first violation. It is a pure function: no I/O, deterministic.
func ValidatePassword(password string) error {
	if len(password) < passwordMinLength {
		return ErrPasswordTooShort
	}
	if len(password) > passwordMaxLength {
		return ErrPasswordTooLong
	}
	if countFrom(password, passwordSymbols) < 1 {
		return ErrPasswordNoSymbol
	}
	if countFrom(password, passwordDigits) < 1 {
		return ErrPasswordNoDigit
	}
	if countFrom(password, passwordLetters) < 1 {
		return ErrPasswordNoLetter
	}
	return nil
}

// ValidatePasswordStrength runs the fixed policy first and then rejects
// passwords below the required zxcvbn score. userInputs (email, display name)
// are penalized as guessable material.
func ValidatePasswordStrength(password string, minScore int, userInputs ...string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if minScore <= 0 {
		return nil
	}
	if minScore > 4 {
		minScore = 4
	}
	if zxcvbn.PasswordStrength(password, userInputs).Score < minScore {
		return ErrPasswordWeak
	}
	return nil
}

func countFrom(password, allowed string) int {
	n := 0
	for _, r := range password {
		if strings.ContainsRune(allowed, r) {
			n++
		}
	}
	return n
}
