package blobstore

import (
	"context"
	"fmt"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore keeps blobs in process memory. It backs local runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]memoryObject
	uploads int
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: baseURL,
		objects: make(map[string]memoryObject),
	}
}

func (m *MemoryStore) Upload(ctx context.Context, path string, data []byte, contentType string) (Object, error) {
	if path == "" {
		return Object{}, fmt.Errorf("object path is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[path] = memoryObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
	}
	m.uploads++

	url, _ := publicURL(m.baseURL, path)
	return Object{Path: path, URL: url, ContentType: contentType, Size: len(data)}, nil
}

func (m *MemoryStore) PublicURL(path string) (string, bool) {
	return publicURL(m.baseURL, path)
}

func (m *MemoryStore) Download(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

// Uploads reports how many uploads the store has accepted.
func (m *MemoryStore) Uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads
}
