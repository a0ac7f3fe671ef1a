// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as the
// services to distinguish between different failure scenarios without
// depending on the SQL driver.
package repository

import "errors"

// ErrNotFound is returned when no row matches the lookup key.  It replaces
// sql.ErrNoRows at the repository boundary.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert violates the unique email
// index (MySQL error 1062).
var ErrEmailExists = errors.New("email already exists")
