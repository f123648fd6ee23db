package slateauth

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/slatekit/slateauth/permission"
	"github.com/slatekit/slateauth/store/redisstore"
)

func newBenchmarkEngine(b *testing.B, configure ...func(*Builder)) *Engine {
	b.Helper()

	builder := New().WithConfig(testConfig())
	for _, fn := range configure {
		fn(builder)
	}
	engine, err := builder.Build()
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}
	b.Cleanup(func() { _ = engine.Close(context.Background()) })

	if _, err := engine.SignUp(context.Background(), SignUpRequest{Username: "alice", Password: "correct-password-123"}); err != nil {
		b.Fatalf("SignUp failed: %v", err)
	}
	return engine
}

func BenchmarkSignIn(b *testing.B) {
	engine := newBenchmarkEngine(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.SignIn(context.Background(), "alice", "correct-password-123"); err != nil {
			b.Fatalf("SignIn failed: %v", err)
		}
	}
}

func BenchmarkSignInRedis(b *testing.B) {
	mr, err := miniredis.Run()
	if err != nil {
		b.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	engine := newBenchmarkEngine(b, func(builder *Builder) {
		builder.WithBackend(redisstore.New(client, "bench"))
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.SignIn(context.Background(), "alice", "correct-password-123"); err != nil {
			b.Fatalf("SignIn failed: %v", err)
		}
	}
}

func BenchmarkVerifyUserToken(b *testing.B) {
	engine := newBenchmarkEngine(b)
	token, err := engine.GetUserToken(context.Background(), "alice")
	if err != nil {
		b.Fatalf("GetUserToken failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !engine.VerifyUserToken(token) {
			b.Fatal("token rejected")
		}
	}
}

func BenchmarkAuthorize(b *testing.B) {
	auth := NewAuth(newBenchmarkEngine(b))
	slot := NewMemorySlot()
	ctx := WithSession(context.Background(), slot)
	if res := auth.SignIn(ctx, "alice", "correct-password-123"); !res.Success {
		b.Fatalf("SignIn failed: %s", res.Error)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if auth.Authorize(ctx, permission.User) != GateAllowed {
			b.Fatal("gate rejected")
		}
	}
}
