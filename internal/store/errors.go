package store

import "errors"

// Error is a validation or lookup failure with a stable code string.
//
// Codes are part of the contract with callers (the UI layer keys its
// presentation off them), so they never change once shipped. Check with
// errors.Is against the package sentinels:
//
//	if errors.Is(err, store.ErrWrongPassword) {
//	    // prompt again
//	}
type Error struct {
	// Code is the stable machine-readable identifier.
	Code string

	msg string
}

func (e *Error) Error() string { return e.msg }

var (
	// ErrMissingFields is returned when a required field is empty.
	ErrMissingFields = &Error{Code: "missing-fields", msg: "required field is missing"}

	// ErrEmailInUse is returned when registering with an email that
	// already belongs to another user.
	ErrEmailInUse = &Error{Code: "email-already-in-use", msg: "email already in use"}

	// ErrUsernameInUse is returned when registering with a taken username.
	ErrUsernameInUse = &Error{Code: "username-already-in-use", msg: "username already in use"}

	// ErrUserNotFound is returned when no user matches the lookup key.
	ErrUserNotFound = &Error{Code: "user-not-found", msg: "user not found"}

	// ErrWrongPassword is returned by login when the password digest
	// does not match. The session is left untouched.
	ErrWrongPassword = &Error{Code: "wrong-password", msg: "wrong password"}

	// ErrAuthorNotFound is returned when creating a post for a user id
	// that does not exist locally.
	ErrAuthorNotFound = &Error{Code: "author-not-found", msg: "post author not found"}

	// ErrOriginalNotFound is returned when reposting a post id that does
	// not exist locally.
	ErrOriginalNotFound = &Error{Code: "original-not-found", msg: "original post not found"}

	// ErrPostNotFound is returned when no post matches the given id.
	ErrPostNotFound = &Error{Code: "post-not-found", msg: "post not found"}
)

// CodeOf returns the stable code string for err, or "" if err carries none.
// Wrapped errors are unwrapped first.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
