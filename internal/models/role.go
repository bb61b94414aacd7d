package models

// Role is the closed set of user roles the review rule distinguishes.
type Role int

const (
	RoleOther Role = iota
	RolePlainUser
	RoleDoctor
	RoleCustomerService
)

// Stored role names.
const (
	RoleNamePlainUser       = "user"
	RoleNameDoctor          = "doctor"
	RoleNameCustomerService = "customer service"
)

// ParseRole maps a stored role name onto Role. Anything unrecognised is RoleOther.
func ParseRole(name string) Role {
	switch name {
	case RoleNamePlainUser:
		return RolePlainUser
	case RoleNameDoctor:
		return RoleDoctor
	case RoleNameCustomerService:
		return RoleCustomerService
	default:
		return RoleOther
	}
}

// IsStaff reports whether the role can be reviewed.
func (r Role) IsStaff() bool {
	return r == RoleDoctor || r == RoleCustomerService
}

// DeriveReviewParties picks reviewer and reviewee for the review seeded when a
// channel is archived. Only a plain user paired with a staff member yields a
// pair; every other combination returns nil, nil.
func DeriveReviewParties(idA int, roleA Role, idB int, roleB Role) (reviewer, reviewee *int) {
	switch {
	case roleA == RolePlainUser && roleB.IsStaff():
		return intPtr(idA), intPtr(idB)
	case roleB == RolePlainUser && roleA.IsStaff():
		return intPtr(idB), intPtr(idA)
	default:
		return nil, nil
	}
}

func intPtr(v int) *int {
	return &v
}
