package slateauth

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/slatekit/slateauth/permission"
)

// Auth is the session-bound layer over an [Engine]. The session slot of
// the calling connection travels in the context (see [WithSession]); Auth
// itself holds no per-connection state and is safe for concurrent use.
//
// Every operation reports a [Result]. Expected failures map onto the
// closed [ErrorKind] set; anything else is logged and reported as
// [Unavailable].
type Auth struct {
	engine *Engine
	logger *slog.Logger
}

// NewAuth wraps engine.
func NewAuth(engine *Engine) *Auth {
	logger := slog.Default()
	if engine != nil && engine.logger != nil {
		logger = engine.logger
	}
	return &Auth{engine: engine, logger: logger}
}

// Engine returns the wrapped engine.
func (a *Auth) Engine() *Engine {
	return a.engine
}

// session returns the attached slot and the profile in it. A missing slot
// or an empty one is [ErrNotLoggedIn].
func (a *Auth) session(ctx context.Context) (SessionSlot, *Profile, error) {
	slot, ok := SessionFromContext(ctx)
	if !ok {
		return nil, nil, ErrNotLoggedIn
	}
	profile, err := slot.Read(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read session: %w", err)
	}
	if profile == nil {
		return nil, nil, ErrNotLoggedIn
	}
	return slot, profile, nil
}

func (a *Auth) bind(ctx context.Context, slot SessionSlot, acc *Account) (Profile, error) {
	profile := acc.Profile()
	if err := slot.Write(ctx, profile); err != nil {
		return Profile{}, fmt.Errorf("write session: %w", err)
	}
	return profile, nil
}

// refresh reloads the session's account and rewrites the projection.
func (a *Auth) refresh(ctx context.Context, slot SessionSlot, username string) (*Account, error) {
	acc, err := a.engine.Account(ctx, username)
	if err != nil {
		return nil, err
	}
	if _, err := a.bind(ctx, slot, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

/*
====================================
SIGN IN / SIGN UP / SIGN OUT
====================================
*/

// SignIn checks credentials and writes the profile into the session slot.
func (a *Auth) SignIn(ctx context.Context, username, plaintext string) Result[Profile] {
	profile, err := a.signIn(ctx, username, plaintext)
	return resultOf(a.logger, "sign_in", profile, err)
}

func (a *Auth) signIn(ctx context.Context, username, plaintext string) (Profile, error) {
	slot, ok := SessionFromContext(ctx)
	if !ok {
		return Profile{}, ErrNoSessionSlot
	}
	acc, err := a.engine.SignIn(ctx, username, plaintext)
	if err != nil {
		return Profile{}, err
	}
	return a.bind(ctx, slot, acc)
}

// SignUp creates an account and signs it in.
func (a *Auth) SignUp(ctx context.Context, req SignUpRequest) Result[Profile] {
	profile, err := a.signUp(ctx, req)
	return resultOf(a.logger, "sign_up", profile, err)
}

func (a *Auth) signUp(ctx context.Context, req SignUpRequest) (Profile, error) {
	slot, ok := SessionFromContext(ctx)
	if !ok {
		return Profile{}, ErrNoSessionSlot
	}
	acc, err := a.engine.SignUp(ctx, req)
	if err != nil {
		return Profile{}, err
	}
	return a.bind(ctx, slot, acc)
}

// SignOut destroys the session projection.
func (a *Auth) SignOut(ctx context.Context) Result[bool] {
	err := func() error {
		slot, _, err := a.session(ctx)
		if err != nil {
			return err
		}
		return slot.Destroy(ctx)
	}()
	if err == nil {
		a.engine.Metrics().Inc(MetricSignOut)
	}
	return resultOf(a.logger, "sign_out", err == nil, err)
}

/*
====================================
CURRENT ACCOUNT
====================================
*/

// CurrentUser returns the session's account with its profile image. The
// projection is refreshed from the store.
func (a *Auth) CurrentUser(ctx context.Context) Result[UserView] {
	view, err := func() (UserView, error) {
		slot, profile, err := a.session(ctx)
		if err != nil {
			return UserView{}, err
		}
		acc, err := a.refresh(ctx, slot, profile.Username)
		if err != nil {
			return UserView{}, err
		}
		return UserView{Profile: acc.Profile(), ProfileImage: acc.ProfileImage}, nil
	}()
	return resultOf(a.logger, "current_user", view, err)
}

// DeleteUser removes the session's account, then destroys the session.
func (a *Auth) DeleteUser(ctx context.Context) Result[bool] {
	err := func() error {
		slot, profile, err := a.session(ctx)
		if err != nil {
			return err
		}
		if err := a.engine.RemoveUser(ctx, profile.Username); err != nil {
			return err
		}
		return slot.Destroy(ctx)
	}()
	return resultOf(a.logger, "delete_user", err == nil, err)
}

// IssueToken signs a token for the session's account.
func (a *Auth) IssueToken(ctx context.Context) Result[string] {
	token, err := func() (string, error) {
		_, profile, err := a.session(ctx)
		if err != nil {
			return "", err
		}
		return a.engine.GetUserToken(ctx, profile.Username)
	}()
	return resultOf(a.logger, "issue_token", token, err)
}

/*
====================================
USER DATA
====================================
*/

// GetUserData returns the session account's user data.
func (a *Auth) GetUserData(ctx context.Context) Result[UserData] {
	data, err := func() (UserData, error) {
		_, profile, err := a.session(ctx)
		if err != nil {
			return nil, err
		}
		return a.engine.UserData(ctx, profile.Username)
	}()
	return resultOf(a.logger, "get_user_data", data, err)
}

// MergeUserData shallow-merges newData over the stored object, keys in
// newData winning. With replace set, newData replaces it wholesale.
func (a *Auth) MergeUserData(ctx context.Context, newData UserData, replace bool) Result[UserData] {
	data, err := a.updateData(ctx, func(current UserData) UserData {
		if replace {
			return maps.Clone(newData)
		}
		maps.Copy(current, newData)
		return current
	})
	return resultOf(a.logger, "merge_user_data", data, err)
}

// ClearUserData resets the user data to an empty object.
func (a *Auth) ClearUserData(ctx context.Context) Result[UserData] {
	data, err := a.updateData(ctx, func(UserData) UserData { return UserData{} })
	return resultOf(a.logger, "clear_user_data", data, err)
}

func (a *Auth) updateData(ctx context.Context, fn func(UserData) UserData) (UserData, error) {
	slot, profile, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	data, err := a.engine.UpdateUserData(ctx, profile.Username, fn)
	if err != nil {
		return nil, err
	}
	if _, err := a.refresh(ctx, slot, profile.Username); err != nil {
		return nil, err
	}
	return data, nil
}

/*
====================================
PROFILE
====================================
*/

// UpdateNickname claims nickname for the session's account.
func (a *Auth) UpdateNickname(ctx context.Context, nickname string) Result[Profile] {
	profile, err := a.mutateAccount(ctx, func(username string) (*Account, error) {
		return a.engine.UpdateNickname(ctx, username, nickname)
	})
	return resultOf(a.logger, "update_nickname", profile, err)
}

// UpdateProfileImage stores ref as the session account's profile image.
func (a *Auth) UpdateProfileImage(ctx context.Context, ref string) Result[UserView] {
	var image string
	profile, err := a.mutateAccount(ctx, func(username string) (*Account, error) {
		acc, err := a.engine.UpdateProfileImage(ctx, username, ref)
		if acc != nil {
			image = acc.ProfileImage
		}
		return acc, err
	})
	return resultOf(a.logger, "update_profile_image", UserView{Profile: profile, ProfileImage: image}, err)
}

// mutateAccount runs fn for the session's username and rebinds the slot to
// the account it returns.
func (a *Auth) mutateAccount(ctx context.Context, fn func(username string) (*Account, error)) (Profile, error) {
	slot, profile, err := a.session(ctx)
	if err != nil {
		return Profile{}, err
	}
	acc, err := fn(profile.Username)
	if err != nil {
		return Profile{}, err
	}
	return a.bind(ctx, slot, acc)
}

/*
====================================
PASSWORD
====================================
*/

// UpdatePassword replaces the session account's password after checking
// current.
func (a *Auth) UpdatePassword(ctx context.Context, current, next string) Result[bool] {
	err := a.passwordOp(ctx, func(username string) error {
		return a.engine.ChangePassword(ctx, username, current, next)
	})
	return resultOf(a.logger, "update_password", err == nil, err)
}

// SetPassword replaces the session account's password without checking
// the old one.
func (a *Auth) SetPassword(ctx context.Context, next string) Result[bool] {
	err := a.passwordOp(ctx, func(username string) error {
		return a.engine.SetPassword(ctx, username, next)
	})
	return resultOf(a.logger, "set_password", err == nil, err)
}

func (a *Auth) passwordOp(ctx context.Context, fn func(username string) error) error {
	slot, profile, err := a.session(ctx)
	if err != nil {
		return err
	}
	if err := fn(profile.Username); err != nil {
		return err
	}
	_, err = a.refresh(ctx, slot, profile.Username)
	return err
}

/*
====================================
FLAGS
====================================
*/

// AddFlags sets every bit of flags on the session's account.
func (a *Auth) AddFlags(ctx context.Context, flags ...permission.Flags) Result[Profile] {
	profile, err := a.updateFlags(ctx, func(f permission.Flags) permission.Flags { return f.Add(flags...) })
	return resultOf(a.logger, "add_flags", profile, err)
}

// RemoveFlags clears every bit of flags on the session's account.
func (a *Auth) RemoveFlags(ctx context.Context, flags ...permission.Flags) Result[Profile] {
	profile, err := a.updateFlags(ctx, func(f permission.Flags) permission.Flags { return f.Remove(flags...) })
	return resultOf(a.logger, "remove_flags", profile, err)
}

// SetFlags replaces the session account's flags.
func (a *Auth) SetFlags(ctx context.Context, flags permission.Flags) Result[Profile] {
	profile, err := a.updateFlags(ctx, func(permission.Flags) permission.Flags { return flags })
	return resultOf(a.logger, "set_flags", profile, err)
}

func (a *Auth) updateFlags(ctx context.Context, fn func(permission.Flags) permission.Flags) (Profile, error) {
	return a.mutateAccount(ctx, func(username string) (*Account, error) {
		return a.engine.UpdateFlags(ctx, username, fn)
	})
}
