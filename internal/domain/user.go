package domain

import "time"

// User is an authenticated person: reporter, technician or admin. The role
// key resolves to permission grants through the RBAC cache.
type User struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	Role         string
	UnitID       *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RoleConfig is a role key with its permission grants, loaded from storage.
// Grants support wildcards: "*" allows everything, "subject.*" allows every
// action on a subject.
type RoleConfig struct {
	RoleKey     string
	Permissions []string
	Description string
}

// OrgUnit is the department/agency owning tickets, a working calendar and
// an SLA policy table.
type OrgUnit struct {
	ID        string
	Code      string
	Name      string
	CreatedAt time.Time
}
