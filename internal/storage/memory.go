package storage

import (
	"context"
	"sync"
)

// MemoryStorage keeps objects in memory. It serves STORAGE_DRIVER=memory for local runs.
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: map[string][]byte{}}
}

func (s *MemoryStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (*UploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return &UploadResult{URL: "memory://" + key, ResourceType: "image", Ref: key}, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, ref)
	return nil
}

// Get returns a stored object.
func (s *MemoryStorage) Get(ref string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[ref]
	return data, ok
}
