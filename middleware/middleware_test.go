package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slatekit/slateauth"
	"github.com/slatekit/slateauth/permission"
)

func newTestAuth(t *testing.T) *slateauth.Auth {
	t.Helper()
	cfg := slateauth.DefaultConfig()
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	engine, err := slateauth.New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close(context.Background()) })
	return slateauth.NewAuth(engine)
}

// slots resolves a slot from the X-Session header.
type slots map[string]*slateauth.MemorySlot

func (s slots) resolve(r *http.Request) slateauth.SessionSlot {
	slot, ok := s[r.Header.Get("X-Session")]
	if !ok {
		return nil
	}
	return slot
}

func serve(h http.Handler, session string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if session != "" {
		req.Header.Set("X-Session", session)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireFlags(t *testing.T) {
	auth := newTestAuth(t)
	store := slots{"user": slateauth.NewMemorySlot(), "admin": slateauth.NewMemorySlot(), "empty": slateauth.NewMemorySlot()}

	ctx := slateauth.WithSession(context.Background(), store["user"])
	if res := auth.SignUp(ctx, slateauth.SignUpRequest{Username: "u", Password: "pw"}); !res.Success {
		t.Fatalf("SignUp: %s", res.Error)
	}
	ctx = slateauth.WithSession(context.Background(), store["admin"])
	if res := auth.SignUp(ctx, slateauth.SignUpRequest{Username: "a", Password: "pw", Flags: permission.Admin}); !res.Success {
		t.Fatalf("SignUp: %s", res.Error)
	}

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Attach(store.resolve)(RequireFlags(auth, permission.Admin)(ok))

	cases := map[string]int{
		"":      http.StatusUnauthorized,
		"empty": http.StatusUnauthorized,
		"user":  http.StatusForbidden,
		"admin": http.StatusOK,
	}
	for session, want := range cases {
		if got := serve(h, session); got != want {
			t.Fatalf("session %q: expected %d, got %d", session, want, got)
		}
	}

	open := Attach(store.resolve)(RequireFlags(auth)(ok))
	if got := serve(open, ""); got != http.StatusOK {
		t.Fatalf("empty requirement must pass, got %d", got)
	}
}

func TestRequireFlagsNilAuth(t *testing.T) {
	h := RequireFlags(nil, permission.User)(http.NotFoundHandler())
	if got := serve(h, ""); got != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", got)
	}
}

func TestAttachNilResolver(t *testing.T) {
	var saw bool
	h := Attach(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, saw = slateauth.SessionFromContext(r.Context())
	}))
	serve(h, "")
	if saw {
		t.Fatal("no slot must be attached")
	}
}

func TestRequireToken(t *testing.T) {
	auth := newTestAuth(t)
	engine := auth.Engine()
	if _, err := engine.SignUp(context.Background(), slateauth.SignUpRequest{Username: "svc", Password: "pw"}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	token, err := engine.GetUserToken(context.Background(), "svc")
	if err != nil {
		t.Fatalf("GetUserToken: %v", err)
	}

	h := RequireToken(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := map[string]int{
		"":                   http.StatusUnauthorized,
		"Bearer ":            http.StatusUnauthorized,
		"Basic abc":          http.StatusUnauthorized,
		"Bearer not.a.token": http.StatusUnauthorized,
		"Bearer " + token:    http.StatusNoContent,
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("header %q: expected %d, got %d", header, want, rec.Code)
		}
	}
}
