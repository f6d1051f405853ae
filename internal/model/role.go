package model

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles.  Values outside the set cannot be
// produced by ParseRole, so a zero Role never grants anything.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole converts a stored or claimed role string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// CanAdminister reports whether the role may use catalog management and
// reporting endpoints.
func (r Role) CanAdminister() bool { return r == RoleAdmin }

func (r Role) String() string { return string(r) }
