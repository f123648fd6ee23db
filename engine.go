package slateauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/slatekit/slateauth/internal/audit"
	"github.com/slatekit/slateauth/internal/keylock"
	"github.com/slatekit/slateauth/internal/rate"
	"github.com/slatekit/slateauth/password"
	"github.com/slatekit/slateauth/permission"
	"github.com/slatekit/slateauth/store"
)

// Engine orchestrates accounts over three capabilities: a [store.Store], a
// [password.Hasher] and a [TokenSigner].
//
// Engine instances are built once by [Builder] and are safe for concurrent use.
type Engine struct {
	config  Config
	store   *store.Store
	hasher  password.Hasher
	tokens  TokenSigner
	flags   *permission.Registry
	logger  *slog.Logger
	metrics *Metrics
	audit   *audit.Dispatcher
	locks   keylock.Locker
	// throttle is nil unless Config.Throttle is enabled.
	throttle *rate.Limiter
}

func userKey(username string) string { return "u:" + username }
func nickKey(nickname string) string { return "n:" + nickname }

// storeErr tags store failures so [KindOf] reports them as Unavailable.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrInvalidNamespace) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

/*
====================================
SIGN UP
====================================
*/

// SignUp creates an account. It returns [ErrAccountExists] when the username
// or the nickname is already taken. Concurrent sign-ups for one username
// create at most one account: claims are serialised per key in process and
// land through SetIfAbsent, which holds across processes sharing a backend.
func (e *Engine) SignUp(ctx context.Context, req SignUpRequest) (*Account, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	acc, err := e.signUp(ctx, req)
	switch {
	case err == nil:
		e.metrics.Inc(MetricSignUpSuccess)
		e.logger.Info("account created", slog.String("username", acc.Username))
	case errors.Is(err, ErrAccountExists):
		e.metrics.Inc(MetricSignUpDuplicate)
	case errors.Is(err, ErrInvalidInput):
		e.metrics.Inc(MetricSignUpInvalid)
	}
	e.emitAudit(ctx, auditSignUp, req.Username, err, nil)
	return acc, err
}

func (e *Engine) signUp(ctx context.Context, req SignUpRequest) (*Account, error) {
	if err := e.validateSignUp(&req); err != nil {
		return nil, err
	}
	if !e.config.Account.SignUpEnabled {
		return nil, fmt.Errorf("%w: sign-up is disabled", ErrInvalidInput)
	}
	if req.Nickname == "" {
		req.Nickname = req.Username
		if err := e.validateNickname(req.Nickname); err != nil {
			return nil, err
		}
	}

	ns := e.config.Namespaces
	username, nickname := req.Username, req.Nickname

	unlock := e.locks.Lock(userKey(username), nickKey(nickname))
	defer unlock()

	exists, err := e.store.Has(ctx, ns.Accounts, username)
	if err != nil {
		return nil, storeErr("sign up", err)
	}
	if exists {
		return nil, ErrAccountExists
	}
	taken, err := e.store.Has(ctx, ns.Nicknames, nickname)
	if err != nil {
		return nil, storeErr("sign up", err)
	}
	if taken {
		return nil, fmt.Errorf("%w: nickname %q", ErrAccountExists, nickname)
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	rec := accountRecord{
		ID:           uuid.NewString(),
		PasswordHash: hash,
		Nickname:     nickname,
		Flags:        req.Flags.Add(permission.User, e.config.Account.DefaultFlags),
		CreatedAt:    time.Now().UTC(),
	}

	claimed, err := e.store.SetJSONIfAbsent(ctx, ns.Nicknames, nickname, username)
	if err != nil {
		return nil, storeErr("claim nickname", err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: nickname %q", ErrAccountExists, nickname)
	}

	created, err := e.store.SetJSONIfAbsent(ctx, ns.Accounts, username, rec)
	if err != nil || !created {
		e.rollback(ctx, ns.Nicknames, nickname)
		if err != nil {
			return nil, storeErr("create account", err)
		}
		return nil, ErrAccountExists
	}

	data := req.UserData
	if data == nil {
		data = UserData{}
	}
	if err := e.store.SetJSON(ctx, ns.Data, username, data); err != nil {
		e.rollback(ctx, ns.Data, username)
		e.rollback(ctx, ns.Accounts, username)
		e.rollback(ctx, ns.Nicknames, nickname)
		return nil, storeErr("write user data", err)
	}

	return rec.account(username, data), nil
}

func (e *Engine) rollback(ctx context.Context, namespace, key string) {
	if err := e.store.Delete(ctx, namespace, key); err != nil {
		e.logger.Error("sign-up rollback failed",
			slog.String("namespace", namespace),
			slog.Any("error", err),
		)
	}
}

/*
====================================
SIGN IN
====================================
*/

// SignIn checks username and password. It returns [ErrAccountNotFound] or
// [ErrWrongPassword] and never mutates stored state.
func (e *Engine) SignIn(ctx context.Context, username, plaintext string) (*Account, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer func() { e.metrics.Observe(MetricSignInLatency, time.Since(start)) }()

	acc, err := e.signIn(ctx, username, plaintext)
	switch {
	case err == nil:
		e.metrics.Inc(MetricSignInSuccess)
	case errors.Is(err, ErrAccountNotFound):
		e.metrics.Inc(MetricSignInNoAccount)
	case errors.Is(err, ErrWrongPassword):
		e.metrics.Inc(MetricSignInWrongPassword)
	case errors.Is(err, ErrRateLimited):
		e.metrics.Inc(MetricSignInRateLimited)
	}
	e.emitAudit(ctx, auditSignIn, username, err, nil)
	return acc, err
}

func (e *Engine) signIn(ctx context.Context, username, plaintext string) (*Account, error) {
	if err := requireUsername(username); err != nil {
		return nil, err
	}
	if err := e.throttleCheck(ctx, username); err != nil {
		return nil, err
	}

	acc, err := e.verifyCredentials(ctx, username, plaintext)
	switch {
	case err == nil:
		e.throttleReset(ctx, username)
	case errors.Is(err, ErrWrongPassword), errors.Is(err, ErrAccountNotFound):
		e.throttleFail(ctx, username)
	}
	return acc, err
}

func (e *Engine) verifyCredentials(ctx context.Context, username, plaintext string) (*Account, error) {
	rec, found, err := e.loadRecord(ctx, username)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrAccountNotFound
	}
	if !e.hasher.Verify(plaintext, rec.PasswordHash) {
		return nil, ErrWrongPassword
	}
	data, err := e.loadData(ctx, username)
	if err != nil {
		return nil, err
	}
	return rec.account(username, data), nil
}

/*
====================================
REMOVE USER
====================================
*/

// RemoveUser deletes the account, its user data and its nickname claim.
// Removing an unknown user is a no-op.
func (e *Engine) RemoveUser(ctx context.Context, username string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := requireUsername(username); err != nil {
		return err
	}

	rec, found, unlock, err := e.lockAccount(ctx, username)
	if err != nil {
		return err
	}
	defer unlock()

	ns := e.config.Namespaces
	if err := e.store.Delete(ctx, ns.Accounts, username); err != nil {
		return storeErr("remove user", err)
	}
	if err := e.store.Delete(ctx, ns.Data, username); err != nil {
		return storeErr("remove user", err)
	}
	if found {
		if err := e.releaseNickname(ctx, rec.Nickname, username); err != nil {
			return err
		}
		e.metrics.Inc(MetricUserRemoved)
		e.emitAudit(ctx, auditRemoveUser, username, nil, nil)
	}
	return nil
}

// releaseNickname frees nickname only while it still points at username.
func (e *Engine) releaseNickname(ctx context.Context, nickname, username string) error {
	ns := e.config.Namespaces.Nicknames
	var owner string
	found, err := e.store.GetJSON(ctx, ns, nickname, &owner)
	if err != nil {
		return storeErr("release nickname", err)
	}
	if !found || owner != username {
		return nil
	}
	return storeErr("release nickname", e.store.Delete(ctx, ns, nickname))
}

/*
====================================
TOKENS
====================================
*/

// GetUserToken signs a token binding username to its stored user data.
// It returns [ErrAccountNotFound] when no user data is stored.
func (e *Engine) GetUserToken(ctx context.Context, username string) (string, error) {
	if e == nil || e.store == nil {
		return "", ErrEngineNotReady
	}
	if err := requireUsername(username); err != nil {
		return "", err
	}
	var data UserData
	found, err := e.store.GetJSON(ctx, e.config.Namespaces.Data, username, &data)
	if err != nil {
		return "", storeErr("get user token", err)
	}
	if !found {
		return "", ErrAccountNotFound
	}
	if data == nil {
		data = UserData{}
	}
	token, err := e.tokens.Sign(username, data)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	e.metrics.Inc(MetricTokenIssued)
	return token, nil
}

// VerifyUserToken reports whether token was issued by this engine's signer
// and is still valid.
func (e *Engine) VerifyUserToken(token string) bool {
	if e == nil || e.tokens == nil {
		return false
	}
	if !e.tokens.Verify(token) {
		e.metrics.Inc(MetricTokenRejected)
		return false
	}
	return true
}

/*
====================================
ACCESSORS
====================================
*/

// Store returns the engine's store.
func (e *Engine) Store() *store.Store {
	if e == nil {
		return nil
	}
	return e.store
}

// Flags returns the flag-name registry.
func (e *Engine) Flags() *permission.Registry {
	if e == nil {
		return nil
	}
	return e.flags
}

// Metrics returns the engine counters. The result may be disabled or nil;
// both ignore every call.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot copies the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Close drains the audit dispatcher, then flushes and closes the store.
func (e *Engine) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}
	e.audit.Close()
	if e.store == nil {
		return nil
	}
	return e.store.Close(ctx)
}
