package domain

import "time"

// Defaults applied to new organizations.
const (
	OrganizationEntityType   = "organization"
	DefaultDataRetentionDays = 7
)

// Consent records one accepted legal document.
type Consent struct {
	Consent   bool       `json:"consent"`
	Version   string     `json:"version,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	User      *ID        `json:"user,omitempty"`
}

// ESign groups the three independent consent blocks of an organization.
type ESign struct {
	PlatformTermsAndConditions Consent `json:"platform_terms_and_conditions"`
	WebsiteTermsOfService      Consent `json:"website_terms_of_service"`
	PrivacyPolicy              Consent `json:"privacy_policy"`
}

// Organization is the tenant boundary. It owns the membership list.
type Organization struct {
	ID            ID
	Name          string
	EntityType    string
	ESign         ESign
	SaveData      bool
	DataRetention int
	Active        bool
	MemberIDs     []ID
	ClientID      *ID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasMember reports whether userID is in the membership list.
func (o Organization) HasMember(userID ID) bool {
	for _, id := range o.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}
