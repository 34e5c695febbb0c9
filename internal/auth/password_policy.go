package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/charlesng35/hireflow/internal/models"
)

// ErrWeakPassword is wrapped by every policy violation.
var ErrWeakPassword = errors.New("password does not meet requirements")

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// PasswordPolicy describes the complexity rules a new password must satisfy.
type PasswordPolicy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

var (
	// BasicPasswordPolicy applies to applicant accounts.
	BasicPasswordPolicy = PasswordPolicy{MinLength: 8}

	// StrictPasswordPolicy applies to admin accounts.
	StrictPasswordPolicy = PasswordPolicy{
		MinLength:     8,
		RequireUpper:  true,
		RequireLower:  true,
		RequireDigit:  true,
		RequireSymbol: true,
	}
)

// PolicyFor returns the password policy for an account role.
func PolicyFor(role models.Role) PasswordPolicy {
	if role == models.RoleAdmin {
		return StrictPasswordPolicy
	}
	return BasicPasswordPolicy
}

// Validate checks password against the policy and reports every unmet rule.
func (p PasswordPolicy) Validate(password string) error {
	var missing []string

	if len([]rune(password)) < p.MinLength {
		missing = append(missing, fmt.Sprintf("at least %d characters", p.MinLength))
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: must be at most %d bytes", ErrWeakPassword, maxPasswordBytes)
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	if p.RequireUpper && !upper {
		missing = append(missing, "an uppercase letter")
	}
	if p.RequireLower && !lower {
		missing = append(missing, "a lowercase letter")
	}
	if p.RequireDigit && !digit {
		missing = append(missing, "a number")
	}
	if p.RequireSymbol && !symbol {
		missing = append(missing, "a special character")
	}

	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: must contain %s", ErrWeakPassword, strings.Join(missing, ", "))
}
