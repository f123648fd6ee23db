package slateauth

import (
	"context"
	"time"

	"github.com/slatekit/slateauth/permission"
)

// UserData is the free-form JSON object owned by an account.
type UserData = map[string]any

// Account is the public view of a stored account. The password hash never
// leaves the engine and has no field here.
type Account struct {
	ID           string           `json:"id"`
	Username     string           `json:"username"`
	Nickname     string           `json:"nickname"`
	Flags        permission.Flags `json:"flags"`
	ProfileImage string           `json:"profileImage,omitempty"`
	UserData     UserData         `json:"userData"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// Profile is the projection kept in a session.
type Profile struct {
	ID       string           `json:"id"`
	Username string           `json:"username"`
	Nickname string           `json:"nickname"`
	Flags    permission.Flags `json:"flags"`
}

// UserView is what CurrentUser returns: the profile plus the image ref.
type UserView struct {
	Profile
	ProfileImage string `json:"profileImage,omitempty"`
}

// Profile projects a.
func (a *Account) Profile() Profile {
	return Profile{
		ID:       a.ID,
		Username: a.Username,
		Nickname: a.Nickname,
		Flags:    a.Flags,
	}
}

// SignUpRequest carries sign-up input. Nickname defaults to Username.
// Flags are ORed with [permission.User] and the configured defaults.
type SignUpRequest struct {
	Username string
	Password string
	Nickname string
	Flags    permission.Flags
	UserData UserData
}

// TokenSigner is the token capability the engine depends on.
// [jwt.Manager] satisfies it.
type TokenSigner interface {
	Sign(subject string, data any) (string, error)
	Verify(token string) bool
}

// SessionSlot is the per-connection storage a host provides for the
// session projection. Read returns (nil, nil) when the slot is empty.
type SessionSlot interface {
	Read(ctx context.Context) (*Profile, error)
	Write(ctx context.Context, profile Profile) error
	Destroy(ctx context.Context) error
}

// accountRecord is the storage form in the accounts namespace.
type accountRecord struct {
	ID           string           `json:"id"`
	PasswordHash string           `json:"password"`
	Nickname     string           `json:"nickname"`
	Flags        permission.Flags `json:"flags"`
	ProfileImage string           `json:"profileImage,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

func (r *accountRecord) account(username string, data UserData) *Account {
	if data == nil {
		data = UserData{}
	}
	return &Account{
		ID:           r.ID,
		Username:     username,
		Nickname:     r.Nickname,
		Flags:        r.Flags,
		ProfileImage: r.ProfileImage,
		UserData:     data,
		CreatedAt:    r.CreatedAt,
	}
}
