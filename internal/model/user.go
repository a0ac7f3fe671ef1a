package model

import "time"

// Role is the authorization level of a user.  It is stored as the
// users.role column and copied into the "role" claim of every token.
type Role string

const (
    RoleAdmin   Role = "admin"
    RoleStaff   Role = "staff"
    RoleRegular Role = "regular"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
    switch r {
    case RoleAdmin, RoleStaff, RoleRegular:
        return true
    }
    return false
}

// User represents an application user record as stored in the
// `users` table.  The db tags are consumed by sqlx; the struct is never
// serialized directly to clients because it carries the password hash and
// the current refresh token.  Handlers expose a Profile instead.
//
// Fields:
//  ID           – opaque UUID string.
//  Name         – display name.
//  Email        – unique email address, case-sensitive as stored.
//  PasswordHash – bcrypt hashed password.
//  Role         – authorization level (admin, staff or regular).
//  RefreshToken – the single live refresh token; NULL when no session.
//  ImageURL     – public URL of the profile photo, empty when unset.
type User struct {
    ID           string    `db:"id"`
    Name         string    `db:"name"`
    Email        string    `db:"email"`
    PasswordHash string    `db:"password_hash"`
    Role         Role      `db:"role"`
    RefreshToken *string   `db:"refresh_token"`
    ImageURL     string    `db:"image_url"`
    CreatedAt    time.Time `db:"created_at"`
    UpdatedAt    time.Time `db:"updated_at"`
}

// Profile is the client-facing view of a user.
type Profile struct {
    ID       string `json:"id"`
    Name     string `json:"name"`
    Email    string `json:"email"`
    Role     Role   `json:"role"`
    ImageURL string `json:"image_url"`
}

// Profile strips credentials and session state from u.
func (u User) Profile() Profile {
    return Profile{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, ImageURL: u.ImageURL}
}
