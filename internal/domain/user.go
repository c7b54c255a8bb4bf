package domain

import "time"

// UserStatus holds the account flags of a user.
type UserStatus struct {
	EmailVerified bool `json:"email_verified"`
	Active        bool `json:"active"`
	MFA           bool `json:"mfa"`
}

// User represents an identity that can authenticate within one organization.
type User struct {
	ID             ID
	EntityType     string
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	Phone          string
	Status         UserStatus
	PrimaryAssetID *ID
	OrganizationID *ID
	RoleIDs        []ID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BelongsTo reports whether the user's back-reference points at orgID.
func (u User) BelongsTo(orgID ID) bool {
	return u.OrganizationID != nil && *u.OrganizationID == orgID
}
