package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps objects in process. It backs the memory driver and
// lets tests inject upload and delete failures.
type MemoryStore struct {
	mu         sync.Mutex
	objects    map[string]Object
	publicBase string

	PutErr    error
	DeleteErr error
}

var _ BlobStore = (*MemoryStore)(nil)

// Object is a stored blob and the content type it was written with.
type Object struct {
	Body        []byte
	ContentType string
}

func NewMemoryStore(publicBase string) *MemoryStore {
	if publicBase == "" {
		publicBase = "memory://blobs"
	}
	return &MemoryStore{objects: make(map[string]Object), publicBase: publicBase}
}

func (m *MemoryStore) Put(ctx context.Context, key, contentType string, body io.Reader, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	putErr := m.PutErr
	m.mu.Unlock()
	if putErr != nil {
		return putErr
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Body: buf.Bytes(), ContentType: contentType}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0)
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) URL(_ context.Context, key string) (string, error) {
	return FileURL(m.publicBase, key), nil
}

// Get returns a stored object.
func (m *MemoryStore) Get(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// SetPutErr and SetDeleteErr change the injected failures under the lock.
func (m *MemoryStore) SetPutErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutErr = err
}

func (m *MemoryStore) SetDeleteErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteErr = err
}
