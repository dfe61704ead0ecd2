package model

// RoleAdmin is the only role that bypasses ownership checks and the
// cancellation and refund cutoffs.
const RoleAdmin = "ADMIN"

// RoleGuest is the default role of end users.
const RoleGuest = "GUEST"

// Actor identifies who is performing an operation.
type Actor struct {
	UserID uint64
	Role   string
}

// IsAdmin reports whether the actor carries the ADMIN role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Owns reports whether the actor may act on a record owned by userID.
func (a Actor) Owns(userID uint64) bool { return a.IsAdmin() || a.UserID == userID }
