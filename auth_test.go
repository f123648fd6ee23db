package slateauth

import (
	"context"
	"reflect"
	"testing"

	"github.com/slatekit/slateauth/permission"
)

func newTestAuth(t *testing.T) (*Auth, context.Context, *MemorySlot) {
	t.Helper()
	slot := NewMemorySlot()
	return NewAuth(newTestEngine(t)), WithSession(context.Background(), slot), slot
}

func signedInAuth(t *testing.T, data UserData) (*Auth, context.Context, *MemorySlot) {
	t.Helper()
	a, ctx, slot := newTestAuth(t)
	res := a.SignUp(ctx, SignUpRequest{Username: "alice", Password: "pw123", UserData: data})
	if !res.Success {
		t.Fatalf("SignUp failed: %s", res.Error)
	}
	return a, ctx, slot
}

func TestAuthSignUpWritesSession(t *testing.T) {
	a, ctx, slot := signedInAuth(t, nil)

	p, _ := slot.Read(ctx)
	if p == nil || p.Username != "alice" || !p.Flags.Has(permission.User) {
		t.Fatalf("unexpected session profile: %+v", p)
	}

	res := a.SignUp(ctx, SignUpRequest{Username: "alice", Password: "x"})
	if res.Success || res.Error != AlreadyExists {
		t.Fatalf("expected ALREADY_EXISTS, got %+v", res)
	}
}

func TestAuthSignInOutcomes(t *testing.T) {
	a, _, _ := signedInAuth(t, nil)
	other := WithSession(context.Background(), NewMemorySlot())

	if res := a.SignIn(other, "alice", "pw124"); res.Error != WrongPassword {
		t.Fatalf("expected WRONG_PASSWORD, got %+v", res)
	}
	if res := a.SignIn(other, "nobody", "pw123"); res.Error != NoAccount {
		t.Fatalf("expected NO_ACCOUNT, got %+v", res)
	}
	res := a.SignIn(other, "alice", "pw123")
	if !res.Success || res.Data.Username != "alice" {
		t.Fatalf("expected success, got %+v", res)
	}

	if res := a.SignIn(context.Background(), "alice", "pw123"); res.Error != Unavailable {
		t.Fatalf("sign-in without a slot must fail, got %+v", res)
	}
}

func TestAuthNotLoggedIn(t *testing.T) {
	a, ctx, _ := newTestAuth(t)

	checks := map[string]ErrorKind{
		"current_user": a.CurrentUser(ctx).Error,
		"get_data":     a.GetUserData(ctx).Error,
		"merge":        a.MergeUserData(ctx, UserData{"a": 1}, false).Error,
		"clear":        a.ClearUserData(ctx).Error,
		"nickname":     a.UpdateNickname(ctx, "n").Error,
		"image":        a.UpdateProfileImage(ctx, "img").Error,
		"update_pw":    a.UpdatePassword(ctx, "a", "b").Error,
		"set_pw":       a.SetPassword(ctx, "b").Error,
		"add_flags":    a.AddFlags(ctx, permission.Admin).Error,
		"remove_flags": a.RemoveFlags(ctx, permission.Admin).Error,
		"set_flags":    a.SetFlags(ctx, permission.User).Error,
		"token":        a.IssueToken(ctx).Error,
		"delete":       a.DeleteUser(ctx).Error,
		"sign_out":     a.SignOut(ctx).Error,
	}
	for op, kind := range checks {
		if kind != NotLoggedIn {
			t.Fatalf("%s: expected NOT_LOGGED_IN, got %q", op, kind)
		}
	}

	if res := a.GetUserData(context.Background()); res.Error != NotLoggedIn {
		t.Fatalf("no slot must be NOT_LOGGED_IN, got %+v", res)
	}
}

func TestAuthStaleSessionNoAccount(t *testing.T) {
	a, ctx, _ := signedInAuth(t, nil)

	if err := a.Engine().RemoveUser(context.Background(), "alice"); err != nil {
		t.Fatalf("RemoveUser failed: %v", err)
	}
	if res := a.MergeUserData(ctx, UserData{"a": 1}, false); res.Error != NoAccount {
		t.Fatalf("expected NO_ACCOUNT, got %+v", res)
	}
	if res := a.AddFlags(ctx, permission.Admin); res.Error != NoAccount {
		t.Fatalf("expected NO_ACCOUNT, got %+v", res)
	}
	if res := a.CurrentUser(ctx); res.Error != NoAccount {
		t.Fatalf("expected NO_ACCOUNT, got %+v", res)
	}
}

func TestAuthMergeUserData(t *testing.T) {
	a, ctx, _ := signedInAuth(t, nil)

	// Stored values round-trip through JSON, so numbers come back as float64.
	res := a.MergeUserData(ctx, UserData{"a": 1}, false)
	if !res.Success || !reflect.DeepEqual(res.Data, UserData{"a": float64(1)}) {
		t.Fatalf("expected {a:1}, got %+v", res)
	}
	res = a.MergeUserData(ctx, UserData{"b": 2}, false)
	if !res.Success || !reflect.DeepEqual(res.Data, UserData{"a": float64(1), "b": float64(2)}) {
		t.Fatalf("expected {a:1,b:2}, got %+v", res)
	}
	if got := a.GetUserData(ctx); !reflect.DeepEqual(got.Data, res.Data) {
		t.Fatalf("merge result %+v differs from stored %+v", res.Data, got.Data)
	}

	res = a.MergeUserData(ctx, UserData{"a": 9}, true)
	if !res.Success || !reflect.DeepEqual(res.Data, UserData{"a": float64(9)}) {
		t.Fatalf("expected {a:9}, got %+v", res)
	}

	stored := a.GetUserData(ctx)
	if !stored.Success || !reflect.DeepEqual(stored.Data, UserData{"a": float64(9)}) {
		t.Fatalf("expected stored {a:9}, got %+v", stored)
	}

	cleared := a.ClearUserData(ctx)
	if !cleared.Success || len(cleared.Data) != 0 {
		t.Fatalf("expected empty data, got %+v", cleared)
	}
	if got := a.GetUserData(ctx); !got.Success || len(got.Data) != 0 {
		t.Fatalf("expected stored data cleared, got %+v", got)
	}
}

func TestAuthMergeUserDataRejectsUnencodable(t *testing.T) {
	a, ctx, _ := signedInAuth(t, UserData{"keep": "me"})

	res := a.MergeUserData(ctx, UserData{"ch": make(chan int)}, false)
	if res.Error != InvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %+v", res)
	}
	if got := a.GetUserData(ctx); !reflect.DeepEqual(got.Data, UserData{"keep": "me"}) {
		t.Fatalf("stored data must be untouched, got %+v", got.Data)
	}
}

func TestAuthFlagsRefreshSession(t *testing.T) {
	a, ctx, slot := signedInAuth(t, nil)
	custom := permission.Bit(4)

	res := a.AddFlags(ctx, permission.Admin, custom)
	want := permission.Combine(permission.User, permission.Admin, custom)
	if !res.Success || res.Data.Flags != want {
		t.Fatalf("expected %s, got %+v", want, res)
	}
	if p, _ := slot.Read(ctx); p.Flags != want {
		t.Fatalf("session not refreshed: %s", p.Flags)
	}

	res = a.RemoveFlags(ctx, custom)
	if res.Data.Flags != permission.Combine(permission.User, permission.Admin) {
		t.Fatalf("unexpected flags after remove: %s", res.Data.Flags)
	}

	res = a.SetFlags(ctx, permission.User)
	if res.Data.Flags != permission.User {
		t.Fatalf("unexpected flags after set: %s", res.Data.Flags)
	}

	acc, err := a.Engine().Account(context.Background(), "alice")
	if err != nil || acc.Flags != permission.User {
		t.Fatalf("flags not persisted: %+v %v", acc, err)
	}
}

func TestAuthPasswordUpdates(t *testing.T) {
	a, ctx, _ := signedInAuth(t, nil)
	e := a.Engine()

	if res := a.UpdatePassword(ctx, "wrong", "new-pw"); res.Error != WrongPassword {
		t.Fatalf("expected WRONG_PASSWORD, got %+v", res)
	}
	if res := a.UpdatePassword(ctx, "pw123", ""); res.Error != InvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %+v", res)
	}
	if res := a.UpdatePassword(ctx, "pw123", "new-pw"); !res.Success {
		t.Fatalf("UpdatePassword failed: %+v", res)
	}
	if _, err := e.SignIn(context.Background(), "alice", "new-pw"); err != nil {
		t.Fatalf("new password must work: %v", err)
	}

	if res := a.SetPassword(ctx, "admin-set"); !res.Success {
		t.Fatalf("SetPassword failed: %+v", res)
	}
	if _, err := e.SignIn(context.Background(), "alice", "admin-set"); err != nil {
		t.Fatalf("override password must work: %v", err)
	}
	if got := e.Metrics().Value(MetricPasswordChangeInvalidOld); got != 1 {
		t.Fatalf("expected 1 invalid-old, got %d", got)
	}
}

func TestAuthProfileUpdates(t *testing.T) {
	a, ctx, slot := signedInAuth(t, nil)

	res := a.UpdateNickname(ctx, "ally")
	if !res.Success || res.Data.Nickname != "ally" {
		t.Fatalf("UpdateNickname failed: %+v", res)
	}
	if p, _ := slot.Read(ctx); p.Nickname != "ally" {
		t.Fatalf("session not refreshed: %+v", p)
	}

	other := WithSession(context.Background(), NewMemorySlot())
	a.SignUp(other, SignUpRequest{Username: "bob", Password: "pw"})
	if res := a.UpdateNickname(other, "ally"); res.Error != AlreadyExists {
		t.Fatalf("expected ALREADY_EXISTS, got %+v", res)
	}
	if res := a.UpdateNickname(other, "alice"); !res.Success {
		t.Fatalf("released nickname must be claimable: %+v", res)
	}

	img := a.UpdateProfileImage(ctx, "img/alice.png")
	if !img.Success || img.Data.ProfileImage != "img/alice.png" {
		t.Fatalf("UpdateProfileImage failed: %+v", img)
	}
	cur := a.CurrentUser(ctx)
	if !cur.Success || cur.Data.ProfileImage != "img/alice.png" || cur.Data.Nickname != "ally" {
		t.Fatalf("unexpected current user: %+v", cur)
	}
}

func TestAuthIssueTokenAndDelete(t *testing.T) {
	a, ctx, slot := signedInAuth(t, UserData{"email": "a@x.com"})

	tok := a.IssueToken(ctx)
	if !tok.Success || !a.Engine().VerifyUserToken(tok.Data) {
		t.Fatalf("IssueToken failed: %+v", tok)
	}

	if res := a.DeleteUser(ctx); !res.Success {
		t.Fatalf("DeleteUser failed: %+v", res)
	}
	if p, _ := slot.Read(ctx); p != nil {
		t.Fatalf("session must be destroyed, got %+v", p)
	}
	if res := a.SignIn(ctx, "alice", "pw123"); res.Error != NoAccount {
		t.Fatalf("expected NO_ACCOUNT, got %+v", res)
	}
}

func TestAuthSignOut(t *testing.T) {
	a, ctx, slot := signedInAuth(t, nil)

	if res := a.SignOut(ctx); !res.Success {
		t.Fatalf("SignOut failed: %+v", res)
	}
	if p, _ := slot.Read(ctx); p != nil {
		t.Fatal("session must be empty")
	}
	if res := a.SignOut(ctx); res.Error != NotLoggedIn {
		t.Fatalf("expected NOT_LOGGED_IN, got %+v", res)
	}
}

func TestAuthSlotFailureIsUnavailable(t *testing.T) {
	a, _, _ := newTestAuth(t)
	ctx := WithSession(context.Background(), failingSlot{})

	if res := a.CurrentUser(ctx); res.Error != Unavailable {
		t.Fatalf("expected UNAVAILABLE, got %+v", res)
	}
	if res := a.SignUp(ctx, SignUpRequest{Username: "z", Password: "pw"}); res.Error != Unavailable {
		t.Fatalf("expected UNAVAILABLE, got %+v", res)
	}
}

func TestAuthOverNilEngine(t *testing.T) {
	a := NewAuth(nil)
	slot := NewMemorySlot()
	ctx := WithSession(context.Background(), slot)

	if res := a.SignUp(ctx, SignUpRequest{Username: "alice", Password: "pw"}); res.Error != Unavailable {
		t.Fatalf("expected UNAVAILABLE, got %+v", res)
	}
	if err := slot.Write(ctx, Profile{Username: "alice", Flags: permission.User}); err != nil {
		t.Fatalf("slot write: %v", err)
	}
	if res := a.CurrentUser(ctx); res.Error != Unavailable {
		t.Fatalf("expected UNAVAILABLE, got %+v", res)
	}
	if got := a.Authorize(ctx, permission.User); got != GateAllowed {
		t.Fatalf("expected allowed from the session alone, got %s", got)
	}
	if res := a.SignOut(ctx); !res.Success {
		t.Fatalf("SignOut must not need the engine: %+v", res)
	}
}
