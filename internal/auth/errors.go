// Package auth holds the authentication and session lifecycle: password
// hashing, token issuance and verification, and the login, logout and
// password-change flows.
//
// The sentinel errors below are the failure vocabulary shared by the auth
// and account services.  Handlers translate them into HTTP responses; callers
// should always compare with errors.Is because most of them arrive wrapped.
package auth

import (
	"errors"
	"fmt"

	"github.com/iliyamo/user-account-service/internal/model"
)

var (
	// ErrNotFound means no user record matched the lookup key.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidCredentials means a submitted password did not verify.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized means the caller has no resolvable identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the caller is authenticated but may not act on the target.
	ErrForbidden = errors.New("forbidden")
	// ErrMismatch means a password and its confirmation differ.
	ErrMismatch = errors.New("passwords do not match")
	// ErrPolicyViolation means an input failed a length or format rule.
	ErrPolicyViolation = errors.New("policy violation")
	// ErrEmailTaken means registration hit an existing email.
	ErrEmailTaken = errors.New("email already registered")

	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenInvalid   = errors.New("token invalid")

	// ErrStorage wraps every fault reported by the user store, the object
	// store or a timeout while waiting on them.
	ErrStorage = errors.New("storage failure")
	// ErrMalformedHash means the stored credential is not a usable hash.
	ErrMalformedHash = errors.New("malformed password hash")
)

// StorageFailure wraps err so that it matches ErrStorage while keeping the
// original cause reachable for logging.
func StorageFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// PolicyError reports a rule violation with a client-safe reason.
func PolicyError(reason string) error {
	return fmt.Errorf("%w: %s", ErrPolicyViolation, reason)
}

// Actor is the authenticated caller of an operation, taken from verified
// access token claims.
type Actor struct {
	ID   string
	Role model.Role
}

// CanManage reports whether the actor may modify the account userID:
// its owner or an admin.
func (a Actor) CanManage(userID string) bool {
	return a.ID != "" && (a.ID == userID || a.Role == model.RoleAdmin)
}
