package slateauth

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/slatekit/slateauth/password"
	"github.com/slatekit/slateauth/store"
)

// ErrorKind is the closed set of expected failure outcomes reported by [Auth].
type ErrorKind string

const (
	NoAccount     ErrorKind = "NO_ACCOUNT"
	WrongPassword ErrorKind = "WRONG_PASSWORD"
	NotLoggedIn   ErrorKind = "NOT_LOGGED_IN"
	AlreadyExists ErrorKind = "ALREADY_EXISTS"
	InvalidInput  ErrorKind = "INVALID_INPUT"
	Unavailable   ErrorKind = "UNAVAILABLE"
	// RateLimited only occurs when the sign-in throttle is enabled.
	RateLimited ErrorKind = "RATE_LIMITED"
)

// KindOf maps err onto an [ErrorKind]. Errors outside the known set are
// reported as [Unavailable]. KindOf(nil) returns "".
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccountNotFound):
		return NoAccount
	case errors.Is(err, ErrWrongPassword):
		return WrongPassword
	case errors.Is(err, ErrNotLoggedIn):
		return NotLoggedIn
	case errors.Is(err, ErrAccountExists):
		return AlreadyExists
	case errors.Is(err, ErrRateLimited):
		return RateLimited
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, password.ErrEmptyPassword),
		errors.Is(err, password.ErrPasswordTooLong),
		errors.Is(err, store.ErrInvalidNamespace):
		return InvalidInput
	default:
		return Unavailable
	}
}

// Result is the tagged outcome of an [Auth] operation. Exactly one of Data
// (on success) or Error (on failure) is meaningful.
type Result[T any] struct {
	Success bool
	Data    T
	Error   ErrorKind
}

// Ok wraps a successful value.
func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail wraps an error kind.
func Fail[T any](kind ErrorKind) Result[T] {
	return Result[T]{Error: kind}
}

// MarshalJSON renders {"success":true,"data":D} or
// {"success":false,"data":"<KIND>"}.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.Success {
		return json.Marshal(struct {
			Success bool `json:"success"`
			Data    T    `json:"data"`
		}{true, r.Data})
	}
	return json.Marshal(struct {
		Success bool      `json:"success"`
		Data    ErrorKind `json:"data"`
	}{false, r.Error})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Result[T]) UnmarshalJSON(raw []byte) error {
	var head struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return err
	}
	*r = Result[T]{Success: head.Success}
	if len(head.Data) == 0 {
		return nil
	}
	if head.Success {
		return json.Unmarshal(head.Data, &r.Data)
	}
	return json.Unmarshal(head.Data, &r.Error)
}

// resultOf converts a (value, error) pair, logging errors that fall outside
// the expected kinds.
func resultOf[T any](logger *slog.Logger, op string, data T, err error) Result[T] {
	if err == nil {
		return Ok(data)
	}
	kind := KindOf(err)
	if kind == Unavailable {
		logger.Error("auth operation failed", slog.String("op", op), slog.Any("error", err))
	}
	return Fail[T](kind)
}
