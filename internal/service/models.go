package service

import (
	"time"

	"github.com/smallbiznis/valora-identity/internal/domain"
)

// Identity is the authenticated caller extracted from a verified access token.
type Identity struct {
	UserID         domain.ID
	OrganizationID domain.ID
	TokenID        string
	ExpiresAt      time.Time
}

// LoginRequest carries login credentials. Username is the user's email.
type LoginRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Organization string `json:"organization"`
}

// LoginResult bundles the issued token with user profile metadata.
type LoginResult struct {
	Token string      `json:"token"`
	User  UserSummary `json:"user"`
}

// UserSummary represents lightweight user profile data returned to clients.
type UserSummary struct {
	ID        domain.ID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

// CreateUserRequest is the payload of POST /user/new.
type CreateUserRequest struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationName string `json:"organization_name"`
}

// UpdateUserRequest carries profile edits. Empty fields keep the stored value.
type UpdateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// UserAssociation mirrors the user's organization back-reference.
type UserAssociation struct {
	Organization *domain.ID `json:"organization"`
}

// UserView is the full user record without the password digest.
type UserView struct {
	ID           domain.ID         `json:"id"`
	EntityType   string            `json:"entitytype"`
	Email        string            `json:"email"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	Phone        string            `json:"phone"`
	Status       domain.UserStatus `json:"status"`
	PrimaryAsset *domain.ID        `json:"primaryasset"`
	Association  UserAssociation   `json:"association"`
	UserRoles    []domain.ID       `json:"userroles"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// OrganizationSummary is the compact organization projection.
type OrganizationSummary struct {
	ID   domain.ID `json:"id"`
	Name string    `json:"name"`
}

// OrganizationRequest is the payload of organization create and update.
type OrganizationRequest struct {
	Name string `json:"name"`
}

// MemberView is an expanded entry of an organization's member list.
type MemberView struct {
	ID        domain.ID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
}

// OrganizationStatus mirrors the organization's status block.
type OrganizationStatus struct {
	Active bool `json:"active"`
}

// OrganizationAssociation holds the expanded members and the optional client reference.
type OrganizationAssociation struct {
	Users  []MemberView `json:"users"`
	Client *domain.ID   `json:"client"`
}

// OrganizationView is the organization with its members expanded.
type OrganizationView struct {
	ID            domain.ID               `json:"id"`
	Name          string                  `json:"name"`
	EntityType    string                  `json:"entitytype"`
	ESign         domain.ESign            `json:"esign"`
	SaveData      bool                    `json:"save_data"`
	DataRetention int                     `json:"data_retention"`
	Status        OrganizationStatus      `json:"status"`
	Association   OrganizationAssociation `json:"association"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

func newUserSummary(user domain.User) UserSummary {
	return UserSummary{ID: user.ID, Email: user.Email, FirstName: user.FirstName, LastName: user.LastName}
}

func newUserView(user domain.User) UserView {
	roles := user.RoleIDs
	if roles == nil {
		roles = []domain.ID{}
	}
	return UserView{
		ID:           user.ID,
		EntityType:   user.EntityType,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Phone:        user.Phone,
		Status:       user.Status,
		PrimaryAsset: user.PrimaryAssetID,
		Association:  UserAssociation{Organization: user.OrganizationID},
		UserRoles:    roles,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func newOrganizationView(org domain.Organization, members []domain.User) OrganizationView {
	expanded := make([]MemberView, 0, len(members))
	for _, member := range members {
		expanded = append(expanded, MemberView{
			ID:        member.ID,
			FirstName: member.FirstName,
			LastName:  member.LastName,
			Email:     member.Email,
		})
	}
	return OrganizationView{
		ID:            org.ID,
		Name:          org.Name,
		EntityType:    org.EntityType,
		ESign:         org.ESign,
		SaveData:      org.SaveData,
		DataRetention: org.DataRetention,
		Status:        OrganizationStatus{Active: org.Active},
		Association:   OrganizationAssociation{Users: expanded, Client: org.ClientID},
		CreatedAt:     org.CreatedAt,
		UpdatedAt:     org.UpdatedAt,
	}
}
