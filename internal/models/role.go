package models

import "strings"

// Role is the closed set of account classes.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleApplicant Role = "applicant"
)

// ParseRole maps stored values onto a Role. Empty or unknown values fall back
// to RoleApplicant, the least privileged class.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleApplicant
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleApplicant
}

func (r Role) String() string {
	return string(r)
}
