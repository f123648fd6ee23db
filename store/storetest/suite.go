// Package storetest holds the behavioural suite every store.Backend must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/slatekit/slateauth/store"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty backend for one subtest.
type Factory func(t *testing.T) store.Backend

// Run exercises backend semantics through a [store.Store].
func Run(t *testing.T, newBackend Factory) {
	t.Helper()

	open := func(t *testing.T) (*store.Store, context.Context) {
		b := newBackend(t)
		s := store.New(b, store.DefaultConfig())
		t.Cleanup(func() { _ = s.Close(context.Background()) })
		return s, context.Background()
	}

	t.Run("GetMissing", func(t *testing.T) {
		s, ctx := open(t)
		v, ok, err := s.Get(ctx, "ns", "missing")
		require.NoError(t, err)
		require.False(t, ok)
		require.Nil(t, v)
	})

	t.Run("SetGetOverwrite", func(t *testing.T) {
		s, ctx := open(t)
		require.NoError(t, s.Set(ctx, "ns", "k", []byte(`{"a":1}`)))
		require.NoError(t, s.Set(ctx, "ns", "k", []byte(`{"a":2}`)))
		v, ok, err := s.Get(ctx, "ns", "k")
		require.NoError(t, err)
		require.True(t, ok)
		require.JSONEq(t, `{"a":2}`, string(v))
	})

	t.Run("NamespacesAreIsolated", func(t *testing.T) {
		s, ctx := open(t)
		require.NoError(t, s.Set(ctx, "one", "k", []byte(`"1"`)))
		has, err := s.Has(ctx, "two", "k")
		require.NoError(t, err)
		require.False(t, has)
	})

	t.Run("SetIfAbsent", func(t *testing.T) {
		s, ctx := open(t)
		stored, err := s.SetIfAbsent(ctx, "ns", "k", []byte(`"first"`))
		require.NoError(t, err)
		require.True(t, stored)

		stored, err = s.SetIfAbsent(ctx, "ns", "k", []byte(`"second"`))
		require.NoError(t, err)
		require.False(t, stored)

		v, _, err := s.Get(ctx, "ns", "k")
		require.NoError(t, err)
		require.JSONEq(t, `"first"`, string(v))
	})

	t.Run("SetIfAbsentConcurrent", func(t *testing.T) {
		s, ctx := open(t)
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				stored, err := s.SetIfAbsent(ctx, "ns", "race", []byte(fmt.Sprintf("%d", i)))
				if err == nil && stored {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()
		require.Equal(t, int32(1), wins.Load())
	})

	t.Run("DeleteHas", func(t *testing.T) {
		s, ctx := open(t)
		require.NoError(t, s.Set(ctx, "ns", "k", []byte(`true`)))
		has, err := s.Has(ctx, "ns", "k")
		require.NoError(t, err)
		require.True(t, has)

		require.NoError(t, s.Delete(ctx, "ns", "k"))
		require.NoError(t, s.Delete(ctx, "ns", "k"))
		has, err = s.Has(ctx, "ns", "k")
		require.NoError(t, err)
		require.False(t, has)
	})

	t.Run("KeysSorted", func(t *testing.T) {
		s, ctx := open(t)
		for _, k := range []string{"c", "a", "b"} {
			require.NoError(t, s.Set(ctx, "ns", k, []byte(`null`)))
		}
		keys, err := s.Keys(ctx, "ns")
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b", "c"}, keys)

		keys, err = s.Keys(ctx, "empty")
		require.NoError(t, err)
		require.Empty(t, keys)
	})

	t.Run("ClearThenReuse", func(t *testing.T) {
		s, ctx := open(t)
		require.NoError(t, s.Set(ctx, "ns", "k", []byte(`1`)))
		require.NoError(t, s.Set(ctx, "other", "k", []byte(`1`)))
		require.NoError(t, s.Clear(ctx, "ns"))

		keys, err := s.Keys(ctx, "ns")
		require.NoError(t, err)
		require.Empty(t, keys)

		has, err := s.Has(ctx, "other", "k")
		require.NoError(t, err)
		require.True(t, has)

		require.NoError(t, s.Set(ctx, "ns", "again", []byte(`2`)))
		has, err = s.Has(ctx, "ns", "again")
		require.NoError(t, err)
		require.True(t, has)
	})

	t.Run("JSONHelpers", func(t *testing.T) {
		s, ctx := open(t)
		type rec struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		}
		require.NoError(t, s.SetJSON(ctx, "ns", "r", rec{Name: "x", Count: 3}))
		var got rec
		ok, err := s.GetJSON(ctx, "ns", "r", &got)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, rec{Name: "x", Count: 3}, got)
	})
}
