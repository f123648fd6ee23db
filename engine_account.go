package slateauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/slatekit/slateauth/permission"
)

func (e *Engine) loadRecord(ctx context.Context, username string) (*accountRecord, bool, error) {
	var rec accountRecord
	found, err := e.store.GetJSON(ctx, e.config.Namespaces.Accounts, username, &rec)
	if err != nil {
		return nil, false, storeErr("load account", err)
	}
	if !found {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (e *Engine) loadData(ctx context.Context, username string) (UserData, error) {
	var data UserData
	if _, err := e.store.GetJSON(ctx, e.config.Namespaces.Data, username, &data); err != nil {
		return nil, storeErr("load user data", err)
	}
	if data == nil {
		data = UserData{}
	}
	return data, nil
}

// lockAccount locks username, its current nickname and any extra keys in
// one call, retrying when the nickname moved between the read and the lock.
// The returned record is read under the lock.
func (e *Engine) lockAccount(ctx context.Context, username string, extra ...string) (*accountRecord, bool, func(), error) {
	for {
		rec, found, err := e.loadRecord(ctx, username)
		if err != nil {
			return nil, false, nil, err
		}
		keys := append([]string{userKey(username)}, extra...)
		if found {
			keys = append(keys, nickKey(rec.Nickname))
		}
		unlock := e.locks.Lock(keys...)

		current, stillFound, err := e.loadRecord(ctx, username)
		if err != nil {
			unlock()
			return nil, false, nil, err
		}
		if stillFound == found && (!found || current.Nickname == rec.Nickname) {
			return current, found, unlock, nil
		}
		unlock()
		if err := ctx.Err(); err != nil {
			return nil, false, nil, err
		}
	}
}

// mutate applies fn to the stored record under the account lock and
// persists the result.
func (e *Engine) mutate(ctx context.Context, username string, fn func(*accountRecord) error) (*Account, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if err := requireUsername(username); err != nil {
		return nil, err
	}
	rec, found, unlock, err := e.lockAccount(ctx, username)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if !found {
		return nil, ErrAccountNotFound
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	if err := e.store.SetJSON(ctx, e.config.Namespaces.Accounts, username, rec); err != nil {
		return nil, storeErr("save account", err)
	}
	data, err := e.loadData(ctx, username)
	if err != nil {
		return nil, err
	}
	return rec.account(username, data), nil
}

// Account loads the public view of username.
func (e *Engine) Account(ctx context.Context, username string) (*Account, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if err := requireUsername(username); err != nil {
		return nil, err
	}
	rec, found, err := e.loadRecord(ctx, username)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrAccountNotFound
	}
	data, err := e.loadData(ctx, username)
	if err != nil {
		return nil, err
	}
	return rec.account(username, data), nil
}

/*
====================================
USER DATA
====================================
*/

// UserData returns the stored user data of username, or [ErrAccountNotFound].
func (e *Engine) UserData(ctx context.Context, username string) (UserData, error) {
	acc, err := e.Account(ctx, username)
	if err != nil {
		return nil, err
	}
	return acc.UserData, nil
}

// UpdateUserData replaces the user data of username with fn(current).
// A nil result stores an empty object. The returned data is what
// [Engine.UserData] reads back.
func (e *Engine) UpdateUserData(ctx context.Context, username string, fn func(UserData) UserData) (UserData, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if err := requireUsername(username); err != nil {
		return nil, err
	}
	_, found, unlock, err := e.lockAccount(ctx, username)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if !found {
		return nil, ErrAccountNotFound
	}

	current, err := e.loadData(ctx, username)
	if err != nil {
		return nil, err
	}
	next, err := normalizeData(fn(current))
	if err != nil {
		return nil, err
	}
	if err := e.store.SetJSON(ctx, e.config.Namespaces.Data, username, next); err != nil {
		return nil, storeErr("save user data", err)
	}
	e.metrics.Inc(MetricUserDataUpdated)
	return next, nil
}

// normalizeData returns data as a later read will see it: numbers become
// float64 and nested values plain maps and slices. Values JSON cannot
// encode are invalid input.
func normalizeData(data UserData) (UserData, error) {
	if len(data) == 0 {
		return UserData{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: user data: %v", ErrInvalidInput, err)
	}
	out := UserData{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: user data: %v", ErrInvalidInput, err)
	}
	return out, nil
}

// SaveUserData replaces the user data of username wholesale.
func (e *Engine) SaveUserData(ctx context.Context, username string, data UserData) error {
	_, err := e.UpdateUserData(ctx, username, func(UserData) UserData { return data })
	return err
}

/*
====================================
PROFILE
====================================
*/

// UpdateNickname moves username to nickname. The new nickname must be free;
// the old claim is released.
func (e *Engine) UpdateNickname(ctx context.Context, username, nickname string) (*Account, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if err := requireUsername(username); err != nil {
		return nil, err
	}
	if err := e.validateNickname(nickname); err != nil {
		return nil, err
	}

	rec, found, unlock, err := e.lockAccount(ctx, username, nickKey(nickname))
	if err != nil {
		return nil, err
	}
	defer unlock()
	if !found {
		return nil, ErrAccountNotFound
	}

	ns := e.config.Namespaces
	old := rec.Nickname
	if old != nickname {
		claimed, err := e.store.SetJSONIfAbsent(ctx, ns.Nicknames, nickname, username)
		if err != nil {
			return nil, storeErr("claim nickname", err)
		}
		if !claimed {
			return nil, fmt.Errorf("%w: nickname %q", ErrAccountExists, nickname)
		}
		rec.Nickname = nickname
		if err := e.store.SetJSON(ctx, ns.Accounts, username, rec); err != nil {
			e.rollback(ctx, ns.Nicknames, nickname)
			return nil, storeErr("save account", err)
		}
		if err := e.releaseNickname(ctx, old, username); err != nil {
			return nil, err
		}
		e.metrics.Inc(MetricNicknameUpdated)
		e.emitAudit(ctx, auditNicknameUpdate, username, nil, map[string]string{
			"from": old,
			"to":   nickname,
		})
	}

	data, err := e.loadData(ctx, username)
	if err != nil {
		return nil, err
	}
	return rec.account(username, data), nil
}

// UpdateProfileImage stores ref as the profile image of username. An empty
// ref clears it.
func (e *Engine) UpdateProfileImage(ctx context.Context, username, ref string) (*Account, error) {
	return e.mutate(ctx, username, func(rec *accountRecord) error {
		rec.ProfileImage = ref
		return nil
	})
}

/*
====================================
PASSWORD
====================================
*/

// ChangePassword replaces the password of username after verifying
// current. It returns [ErrWrongPassword] when current does not match.
func (e *Engine) ChangePassword(ctx context.Context, username, current, next string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := e.validatePassword(next); err != nil {
		return err
	}
	_, err := e.mutate(ctx, username, func(rec *accountRecord) error {
		if !e.hasher.Verify(current, rec.PasswordHash) {
			return ErrWrongPassword
		}
		hash, err := e.hasher.Hash(next)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		rec.PasswordHash = hash
		return nil
	})
	switch {
	case err == nil:
		e.metrics.Inc(MetricPasswordChangeSuccess)
		e.throttleReset(ctx, username)
	case errors.Is(err, ErrWrongPassword):
		e.metrics.Inc(MetricPasswordChangeInvalidOld)
	}
	e.emitAudit(ctx, auditPasswordChange, username, err, nil)
	return err
}

// SetPassword replaces the password of username without checking the old
// one. It is the administrative override path.
func (e *Engine) SetPassword(ctx context.Context, username, next string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := e.validatePassword(next); err != nil {
		return err
	}
	_, err := e.mutate(ctx, username, func(rec *accountRecord) error {
		hash, err := e.hasher.Hash(next)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		rec.PasswordHash = hash
		return nil
	})
	if err == nil {
		e.metrics.Inc(MetricPasswordSet)
		e.throttleReset(ctx, username)
	}
	e.emitAudit(ctx, auditPasswordSet, username, err, nil)
	return err
}

/*
====================================
FLAGS
====================================
*/

// UpdateFlags replaces the flags of username with fn(current).
func (e *Engine) UpdateFlags(ctx context.Context, username string, fn func(permission.Flags) permission.Flags) (*Account, error) {
	var before permission.Flags
	acc, err := e.mutate(ctx, username, func(rec *accountRecord) error {
		before = rec.Flags
		rec.Flags = fn(rec.Flags)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricFlagsUpdated)
	e.emitAudit(ctx, auditFlagsUpdate, username, nil, map[string]string{
		"from": before.String(),
		"to":   acc.Flags.String(),
	})
	return acc, nil
}
