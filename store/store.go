package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Store adds the observable store semantics on top of a [Backend]: lazy
// connect, lazy namespace creation, degrade-to-absence and persist policy.
//
// A Store is safe for concurrent use.
type Store struct {
	backend Backend
	config  Config
	logger  *slog.Logger
	onDown  func(op string)

	mu         sync.Mutex
	connected  bool
	namespaces sync.Map
}

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger used for degradation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDegradeHook registers fn to be called each time an operation is
// degraded because the backend is unavailable.
func WithDegradeHook(fn func(op string)) Option {
	return func(s *Store) {
		s.onDown = fn
	}
}

// New wraps backend.
func New(backend Backend, cfg Config, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		config:  cfg,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the wrapped backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// ensure prepares namespace for op. It reports false when the backend is
// unavailable and the operation must degrade.
func (s *Store) ensure(ctx context.Context, op, namespace string) (bool, error) {
	if namespace == "" {
		return false, ErrInvalidNamespace
	}
	if err := s.connect(ctx); err != nil {
		s.degrade(op, namespace, err)
		return false, nil
	}
	if _, ok := s.namespaces.Load(namespace); ok {
		return true, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.namespaces.Load(namespace); ok {
		return true, nil
	}
	if err := s.backend.EnsureNamespace(ctx, namespace); err != nil {
		if errors.Is(err, ErrUnavailable) {
			s.connected = false
			s.degrade(op, namespace, err)
			return false, nil
		}
		return false, fmt.Errorf("ensure namespace %q: %w", namespace, err)
	}
	s.namespaces.Store(namespace, struct{}{})
	return true, nil
}

func (s *Store) connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	if err := s.backend.Connect(ctx, s.config.CreateIfMissing); err != nil {
		return err
	}
	s.connected = true
	return nil
}

func (s *Store) degrade(op, namespace string, err error) {
	s.logger.Warn("store unavailable, operation degraded",
		slog.String("op", op),
		slog.String("namespace", namespace),
		slog.Any("error", err),
	)
	if s.onDown != nil {
		s.onDown(op)
	}
}

// settle converts an ErrUnavailable surfacing mid-operation into a
// degraded outcome and forces a reconnect on the next call.
func (s *Store) settle(op, namespace string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		s.degrade(op, namespace, err)
		return nil
	}
	return fmt.Errorf("%s %q: %w", op, namespace, err)
}

func (s *Store) persist(ctx context.Context, op, namespace string) error {
	if !s.config.EagerPersist {
		return nil
	}
	f, ok := s.backend.(Flusher)
	if !ok {
		return nil
	}
	return s.settle(op, namespace, f.Flush(ctx))
}

// Get returns the value under key. A missing key, or an unavailable
// backend, yields (nil, false, nil).
func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	ok, err := s.ensure(ctx, "get", namespace)
	if !ok {
		return nil, false, err
	}
	value, found, err := s.backend.Get(ctx, namespace, key)
	if err != nil {
		return nil, false, s.settle("get", namespace, err)
	}
	return value, found, nil
}

// Set stores value under key. Skipped when the backend is unavailable.
func (s *Store) Set(ctx context.Context, namespace, key string, value []byte) error {
	ok, err := s.ensure(ctx, "set", namespace)
	if !ok {
		return err
	}
	if err := s.backend.Set(ctx, namespace, key, value); err != nil {
		return s.settle("set", namespace, err)
	}
	return s.persist(ctx, "set", namespace)
}

// SetIfAbsent stores value only when key is absent and reports whether it
// did. Unlike plain writes, an unavailable backend is reported as
// ErrUnavailable: callers branch on the outcome and must not assume it.
// When the eager flush fails the entry is removed again, so an error always
// means nothing was claimed.
func (s *Store) SetIfAbsent(ctx context.Context, namespace, key string, value []byte) (bool, error) {
	ok, err := s.ensure(ctx, "set_if_absent", namespace)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrUnavailable
	}
	stored, err := s.backend.SetIfAbsent(ctx, namespace, key, value)
	if err != nil {
		if settled := s.settle("set_if_absent", namespace, err); settled != nil {
			return false, settled
		}
		return false, ErrUnavailable
	}
	if !stored {
		return false, nil
	}
	if err := s.persist(ctx, "set_if_absent", namespace); err != nil {
		// The claim never reached the medium, so it must not linger in the
		// backend's buffer and land on a later flush.
		if delErr := s.backend.Delete(ctx, namespace, key); delErr != nil {
			s.logger.Error("set_if_absent undo failed",
				slog.String("namespace", namespace),
				slog.Any("error", delErr),
			)
		}
		return false, err
	}
	return true, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	ok, err := s.ensure(ctx, "delete", namespace)
	if !ok {
		return err
	}
	if err := s.backend.Delete(ctx, namespace, key); err != nil {
		return s.settle("delete", namespace, err)
	}
	return s.persist(ctx, "delete", namespace)
}

// Has reports whether key is present.
func (s *Store) Has(ctx context.Context, namespace, key string) (bool, error) {
	ok, err := s.ensure(ctx, "has", namespace)
	if !ok {
		return false, err
	}
	found, err := s.backend.Has(ctx, namespace, key)
	if err != nil {
		return false, s.settle("has", namespace, err)
	}
	return found, nil
}

// Keys lists the keys of namespace in ascending order.
func (s *Store) Keys(ctx context.Context, namespace string) ([]string, error) {
	ok, err := s.ensure(ctx, "keys", namespace)
	if !ok {
		return nil, err
	}
	keys, err := s.backend.Keys(ctx, namespace)
	if err != nil {
		return nil, s.settle("keys", namespace, err)
	}
	return keys, nil
}

// Clear removes namespace entirely. The next access recreates it empty.
func (s *Store) Clear(ctx context.Context, namespace string) error {
	ok, err := s.ensure(ctx, "clear", namespace)
	if !ok {
		return err
	}
	if err := s.backend.Clear(ctx, namespace); err != nil {
		return s.settle("clear", namespace, err)
	}
	s.namespaces.Delete(namespace)
	return s.persist(ctx, "clear", namespace)
}

// Flush persists buffered writes regardless of the persist policy.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		return nil
	}
	f, ok := s.backend.(Flusher)
	if !ok {
		return nil
	}
	return s.settle("flush", "", f.Flush(ctx))
}

// Close flushes and closes the backend.
func (s *Store) Close(ctx context.Context) error {
	flushErr := s.Flush(ctx)
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	s.namespaces.Range(func(k, _ any) bool {
		s.namespaces.Delete(k)
		return true
	})
	return errors.Join(flushErr, s.backend.Close(ctx))
}

// GetJSON decodes the value under key into out. It reports false when the
// key is absent.
func (s *Store) GetJSON(ctx context.Context, namespace, key string, out any) (bool, error) {
	raw, found, err := s.Get(ctx, namespace, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", namespace, key, err)
	}
	return true, nil
}

// SetJSON encodes value and stores it under key.
func (s *Store) SetJSON(ctx context.Context, namespace, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", namespace, key, err)
	}
	return s.Set(ctx, namespace, key, raw)
}

// SetJSONIfAbsent is the JSON form of SetIfAbsent.
func (s *Store) SetJSONIfAbsent(ctx context.Context, namespace, key string, value any) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode %s/%s: %w", namespace, key, err)
	}
	return s.SetIfAbsent(ctx, namespace, key, raw)
}
