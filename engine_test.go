package slateauth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/slatekit/slateauth/jwt"
	"github.com/slatekit/slateauth/permission"
)

func TestSignUpThenSignIn(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	acc := mustSignUp(t, e, "alice", "pw123", UserData{"email": "a@x.com"})
	if acc.ID == "" {
		t.Fatal("expected account id")
	}
	if acc.Nickname != "alice" {
		t.Fatalf("expected nickname to default to username, got %q", acc.Nickname)
	}
	if !acc.Flags.Has(permission.User) {
		t.Fatalf("expected User flag, got %s", acc.Flags)
	}

	got, err := e.SignIn(ctx, "alice", "pw123")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if got.ID != acc.ID || got.UserData["email"] != "a@x.com" {
		t.Fatalf("unexpected account: %+v", got)
	}
	if e.Metrics().Value(MetricSignUpSuccess) != 1 || e.Metrics().Value(MetricSignInSuccess) != 1 {
		t.Fatal("expected success counters to be 1")
	}
}

func TestSignUpDuplicateRejected(t *testing.T) {
	e := newTestEngine(t)
	mustSignUp(t, e, "bob", "pw", nil)

	_, err := e.SignUp(context.Background(), SignUpRequest{Username: "bob", Password: "other"})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if _, err := e.SignIn(context.Background(), "bob", "pw"); err != nil {
		t.Fatalf("original password must still work: %v", err)
	}
	if got := e.Metrics().Value(MetricSignUpDuplicate); got != 1 {
		t.Fatalf("expected 1 duplicate, got %d", got)
	}
}

func TestSignUpConcurrentCreatesExactlyOnce(t *testing.T) {
	e := newTestEngine(t)

	const workers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		exists  int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := e.SignUp(context.Background(), SignUpRequest{Username: "race", Password: "pw"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrAccountExists):
				exists++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 || exists != workers-1 {
		t.Fatalf("expected 1 created and %d exists, got %d and %d", workers-1, created, exists)
	}
}

func TestSignUpNicknameMustBeUnique(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.SignUp(ctx, SignUpRequest{Username: "carol", Password: "pw", Nickname: "cc"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	_, err := e.SignUp(ctx, SignUpRequest{Username: "dave", Password: "pw", Nickname: "cc"})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if _, err := e.Account(ctx, "dave"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("dave must not exist, got %v", err)
	}
}

func TestSignUpInvalidInput(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	cases := []SignUpRequest{
		{Username: "", Password: "pw"},
		{Username: "x", Password: ""},
		{Username: strings.Repeat("u", 65), Password: "pw"},
		{Username: "x", Password: "pw", Nickname: strings.Repeat("n", 65)},
		{Username: "x", Password: strings.Repeat("p", 1025)},
	}
	for _, req := range cases {
		if _, err := e.SignUp(ctx, req); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", req, err)
		}
	}
	if got := e.Metrics().Value(MetricSignUpInvalid); got != uint64(len(cases)) {
		t.Fatalf("expected %d invalid, got %d", len(cases), got)
	}
}

func TestSignUpDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Account.SignUpEnabled = false
	e := newTestEngine(t, func(b *Builder) { b.WithConfig(cfg) })

	_, err := e.SignUp(context.Background(), SignUpRequest{Username: "x", Password: "pw"})
	if KindOf(err) != InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestSignUpAppliesDefaultAndRequestedFlags(t *testing.T) {
	cfg := testConfig()
	cfg.Account.DefaultFlags = permission.Bit(5)
	e := newTestEngine(t, func(b *Builder) { b.WithConfig(cfg) })

	acc, err := e.SignUp(context.Background(), SignUpRequest{
		Username: "root",
		Password: "pw",
		Flags:    permission.Admin,
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	want := permission.Combine(permission.User, permission.Admin, permission.Bit(5))
	if acc.Flags != want {
		t.Fatalf("expected %s, got %s", want, acc.Flags)
	}
}

func TestSignInWrongPasswordDistinctAndNoMutation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mustSignUp(t, e, "alice", "pw123", nil)

	before, _, err := e.Store().Get(ctx, e.config.Namespaces.Accounts, "alice")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if _, err := e.SignIn(ctx, "alice", "pw124"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if _, err := e.SignIn(ctx, "nobody", "pw123"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	after, _, err := e.Store().Get(ctx, e.config.Namespaces.Accounts, "alice")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("failed sign-in mutated the stored account")
	}
}

func TestRemoveUser(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mustSignUp(t, e, "erin", "pw", UserData{"k": "v"})

	if err := e.RemoveUser(ctx, "erin"); err != nil {
		t.Fatalf("RemoveUser failed: %v", err)
	}
	if _, err := e.SignIn(ctx, "erin", "pw"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := e.GetUserToken(ctx, "erin"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected user data removed, got %v", err)
	}
	if err := e.RemoveUser(ctx, "erin"); err != nil {
		t.Fatalf("second RemoveUser must be a no-op, got %v", err)
	}
	if err := e.RemoveUser(ctx, "never"); err != nil {
		t.Fatalf("RemoveUser of unknown user must be a no-op, got %v", err)
	}

	// The nickname is free again.
	mustSignUp(t, e, "erin", "pw2", nil)
}

func TestRemoveUserKeepsForeignNicknameClaim(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mustSignUp(t, e, "frank", "pw", nil)
	if _, err := e.UpdateNickname(ctx, "frank", "ff"); err != nil {
		t.Fatalf("UpdateNickname failed: %v", err)
	}
	if _, err := e.SignUp(ctx, SignUpRequest{Username: "gina", Password: "pw", Nickname: "frank"}); err != nil {
		t.Fatalf("old nickname should be free: %v", err)
	}

	if err := e.RemoveUser(ctx, "frank"); err != nil {
		t.Fatalf("RemoveUser failed: %v", err)
	}
	var owner string
	found, err := e.Store().GetJSON(ctx, e.config.Namespaces.Nicknames, "frank", &owner)
	if err != nil || !found || owner != "gina" {
		t.Fatalf("gina's nickname claim must survive, found=%v owner=%q err=%v", found, owner, err)
	}
}

func TestGetUserTokenBindsSubjectAndData(t *testing.T) {
	tokens, err := jwt.NewManager(jwt.Config{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	e := newTestEngine(t, func(b *Builder) { b.WithTokens(tokens) })
	ctx := context.Background()
	mustSignUp(t, e, "alice", "pw123", UserData{"email": "a@x.com"})

	token, err := e.GetUserToken(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserToken failed: %v", err)
	}
	if !e.VerifyUserToken(token) {
		t.Fatal("token must verify")
	}

	claims, err := tokens.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("expected subject alice, got %q", claims.Subject)
	}
	var data UserData
	if err := json.Unmarshal(claims.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["email"] != "a@x.com" {
		t.Fatalf("unexpected data: %v", data)
	}

	if _, err := e.GetUserToken(ctx, "nobody"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestVerifyUserTokenRejectsGarbage(t *testing.T) {
	e := newTestEngine(t)

	for _, token := range []string{"", "a.b.c", "not a token"} {
		if e.VerifyUserToken(token) {
			t.Fatalf("token %q must not verify", token)
		}
	}
	if got := e.Metrics().Value(MetricTokenRejected); got != 3 {
		t.Fatalf("expected 3 rejections, got %d", got)
	}
}

func TestEngineStoreUnavailable(t *testing.T) {
	e := newTestEngine(t, func(b *Builder) { b.WithBackend(downBackend{}) })
	ctx := context.Background()

	_, err := e.SignUp(ctx, SignUpRequest{Username: "x", Password: "pw"})
	if !errors.Is(err, ErrStoreUnavailable) || KindOf(err) != Unavailable {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := e.SignIn(ctx, "x", "pw"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("unavailable store must read as empty, got %v", err)
	}
	if err := e.RemoveUser(ctx, "x"); err != nil {
		t.Fatalf("RemoveUser must degrade silently, got %v", err)
	}
	if e.Metrics().Value(MetricStoreDegraded) == 0 {
		t.Fatal("expected degraded counter to move")
	}
}

func TestAccountNeverExposesHash(t *testing.T) {
	e := newTestEngine(t)
	acc := mustSignUp(t, e, "henry", "secret-pw", nil)

	raw, err := json.Marshal(acc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(raw), "argon2id") || strings.Contains(string(raw), "password") {
		t.Fatalf("account JSON leaks the hash: %s", raw)
	}
	raw, _ = json.Marshal(acc.Profile())
	if strings.Contains(string(raw), "argon2id") {
		t.Fatalf("profile JSON leaks the hash: %s", raw)
	}
}

func TestEngineNilNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.SignUp(context.Background(), SignUpRequest{}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if e.VerifyUserToken("x") {
		t.Fatal("nil engine must not verify tokens")
	}
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close on nil: %v", err)
	}
}
