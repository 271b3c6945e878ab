package auth

import "errors"

// ErrInvalidCredentials covers unknown username and wrong password alike;
// callers must not distinguish the two.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrDuplicateUsername indicates the username is already registered.
var ErrDuplicateUsername = errors.New("username already exists")

// ErrDuplicateEmail indicates the email is already registered.
var ErrDuplicateEmail = errors.New("email already exists")

// ErrNoSession indicates a missing, expired, or deactivated session.
var ErrNoSession = errors.New("not authenticated")

// ErrUserNotFound indicates no user exists for the given identifier.
var ErrUserNotFound = errors.New("user not found")

// ErrSessionNotFound indicates no session with the given id belongs to the
// user.
var ErrSessionNotFound = errors.New("session not found")
