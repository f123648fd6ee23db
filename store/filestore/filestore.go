// Package filestore keeps every namespace in one JSON document on disk.
//
// The document is loaded once on Connect and rewritten wholesale on Flush
// through a temporary file and rename, so a crash never leaves a partial
// document behind.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/slatekit/slateauth/store"
)

// Options configures a [Backend].
type Options struct {
	// Indent pretty-prints the document on save.
	Indent bool
}

// Backend is a [store.Backend] over a single JSON file.
type Backend struct {
	path string
	opts Options

	mu     sync.Mutex
	data   map[string]map[string]json.RawMessage
	loaded bool
	dirty  bool
}

var _ store.Backend = (*Backend)(nil)
var _ store.Flusher = (*Backend)(nil)

// New returns a backend for the document at path. Nothing is read until
// Connect.
func New(path string, opts Options) *Backend {
	return &Backend{path: path, opts: opts}
}

// Connect loads the document. A missing file is created when create is
// set; otherwise the backend reports [store.ErrUnavailable].
func (b *Backend) Connect(ctx context.Context, create bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loaded {
		return nil
	}

	raw, err := os.ReadFile(b.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if !create {
			return fmt.Errorf("%w: %s does not exist", store.ErrUnavailable, b.path)
		}
		b.data = make(map[string]map[string]json.RawMessage)
		if err := b.writeLocked(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
	case err != nil:
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	default:
		data := make(map[string]map[string]json.RawMessage)
		if len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, &data); err != nil {
				return fmt.Errorf("%w: decode %s: %v", store.ErrUnavailable, b.path, err)
			}
		}
		b.data = data
	}

	b.loaded = true
	return nil
}

func (b *Backend) EnsureNamespace(ctx context.Context, namespace string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLoaded(); err != nil {
		return err
	}
	if _, ok := b.data[namespace]; !ok {
		b.data[namespace] = make(map[string]json.RawMessage)
		b.dirty = true
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLoaded(); err != nil {
		return nil, false, err
	}
	v, ok := b.data[namespace][key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (b *Backend) Set(ctx context.Context, namespace, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLoaded(); err != nil {
		return err
	}
	return b.putLocked(namespace, key, value)
}

func (b *Backend) SetIfAbsent(ctx context.Context, namespace, key string, value []byte) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLoaded(); err != nil {
		return false, err
	}
	if _, ok := b.data[namespace][key]; ok {
		return false, nil
	}
	if err := b.putLocked(namespace, key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) putLocked(namespace, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %s/%s is not valid JSON", namespace, key)
	}
	ns, ok := b.data[namespace]
	if !ok {
		ns = make(map[string]json.RawMessage)
		b.data[namespace] = ns
	}
	v := make(json.RawMessage, len(value))
	copy(v, value)
	ns[key] = v
	b.dirty = true
	return nil
}

func (b *Backend) Delete(ctx context.Context, namespace, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLoaded(); err != nil {
		return err
	}
	if _, ok := b.data[namespace][key]; ok {
		delete(b.data[namespace], key)
		b.dirty = true
	}
	return nil
}

func (b *Backend) Has(ctx context.Context, namespace, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLoaded(); err != nil {
		return false, err
	}
	_, ok := b.data[namespace][key]
	return ok, nil
}

func (b *Backend) Keys(ctx context.Context, namespace string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLoaded(); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(b.data[namespace]))
	for k := range b.data[namespace] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *Backend) Clear(ctx context.Context, namespace string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLoaded(); err != nil {
		return err
	}
	if _, ok := b.data[namespace]; ok {
		delete(b.data, namespace)
		b.dirty = true
	}
	return nil
}

// Flush rewrites the document if anything changed since the last write.
func (b *Backend) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded || !b.dirty {
		return nil
	}
	return b.writeLocked()
}

// Close flushes pending changes and drops the in-memory copy. A later
// Connect reloads from disk.
func (b *Backend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.loaded && b.dirty {
		err = b.writeLocked()
	}
	b.loaded = false
	b.data = nil
	return err
}

func (b *Backend) checkLoaded() error {
	if !b.loaded {
		return fmt.Errorf("%w: %s not loaded", store.ErrUnavailable, b.path)
	}
	return nil
}

func (b *Backend) writeLocked() error {
	var (
		raw []byte
		err error
	)
	if b.opts.Indent {
		raw, err = json.MarshalIndent(b.data, "", "  ")
	} else {
		raw, err = json.Marshal(b.data)
	}
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace document: %w", err)
	}
	b.dirty = false
	return nil
}
