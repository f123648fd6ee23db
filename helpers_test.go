package slateauth

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/slatekit/slateauth/store"
)

// testConfig keeps Argon2 at its floor so tests stay fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, configure ...func(*Builder)) *Engine {
	t.Helper()

	b := New().WithConfig(testConfig())
	for _, fn := range configure {
		fn(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close(context.Background()) })
	return engine
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func mustSignUp(t *testing.T, e *Engine, username, pw string, data UserData) *Account {
	t.Helper()

	acc, err := e.SignUp(context.Background(), SignUpRequest{
		Username: username,
		Password: pw,
		UserData: data,
	})
	if err != nil {
		t.Fatalf("SignUp(%q) failed: %v", username, err)
	}
	return acc
}

// downBackend never connects.
type downBackend struct {
	store.Backend
}

func (downBackend) Connect(context.Context, bool) error {
	return store.ErrUnavailable
}

func (downBackend) Close(context.Context) error {
	return nil
}

// failingSlot fails every call.
type failingSlot struct{}

var errSlot = errors.New("slot broken")

func (failingSlot) Read(context.Context) (*Profile, error) { return nil, errSlot }
func (failingSlot) Write(context.Context, Profile) error   { return errSlot }
func (failingSlot) Destroy(context.Context) error          { return errSlot }
