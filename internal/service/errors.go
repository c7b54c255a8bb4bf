package service

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies service failures for transport mapping.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
)

// InternalErrorMessage is the only message exposed for unexpected failures.
const InternalErrorMessage = "An internal server error occurred."

// Error is a failure whose message is safe to return to clients.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the kind onto an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// Client-visible messages.
const (
	msgLoginFieldsRequired  = "Username, password, and organization are required."
	msgOrganizationNotFound = "Organization not found."
	msgLoginUnknownUser     = "Authentication failed. User not found in this organization."
	msgLoginInvalidPassword = "Authentication failed. Invalid credentials."

	msgOrganizationNameRequired = "Organization name is required."
	msgOrganizationNameTaken    = "An organization with this name already exists."
	msgCreatingUserNotFound     = "Creating user not found."
	msgOrganizationForbidden    = "Forbidden: You do not have access to this organization."

	msgUserFieldsRequired = "Email, password, and organization name are required."
	msgUserExistsInOrg    = "User with this email already exists in this organization."
	msgUserExists         = "User with this email already exists."
	msgInvalidUserID      = "Invalid user ID format."
	msgUserNotFound       = "User not found."
	msgUserForbidden      = "Forbidden: You do not have access to this user."
	msgUpdateOwnProfile   = "Forbidden: You can only update your own profile."
	msgDeleteOwnProfile   = "Forbidden: You can only delete your own profile."

	msgTokenInvalid = "Token is not valid."
	msgTokenExpired = "Token has expired."
)
