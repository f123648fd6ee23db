package slateauth

import "errors"

var (
	// ErrAccountNotFound is returned when no account exists for a username.
	ErrAccountNotFound = errors.New("account not found")
	// ErrWrongPassword is returned when a password does not match the stored hash.
	ErrWrongPassword = errors.New("wrong password")
	// ErrAccountExists is returned when a username or nickname is already taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrNotLoggedIn is returned by session operations when no profile is attached.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable is returned when a conditional write cannot reach the store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNoSessionSlot is returned when the context carries no session slot.
	ErrNoSessionSlot = errors.New("no session slot in context")
	// ErrRateLimited is returned by sign-in while a username is throttled.
	ErrRateLimited = errors.New("too many failed sign-ins")
	// ErrEngineNotReady is returned by operations on a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not ready")
)
