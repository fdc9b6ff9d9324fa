package objectstore

import (
	"context"
	"sync"
)

type object struct {
	contentType string
	body        []byte
}

// Memory keeps objects in process and serves them under baseURL.
type Memory struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]object
}

func NewMemory(baseURL string) *Memory {
	return &Memory{baseURL: baseURL, objects: make(map[string]object)}
}

func (m *Memory) Put(_ context.Context, key, contentType string, body []byte) (string, error) {
	m.mu.Lock()
	m.objects[key] = object{contentType: contentType, body: append([]byte(nil), body...)}
	m.mu.Unlock()
	return m.baseURL + "/" + key, nil
}

func (m *Memory) Delete(_ context.Context, url string) error {
	key, ok := keyFromURL(m.baseURL, url)
	if !ok {
		return ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

// Get returns a stored object for the artwork route.
func (m *Memory) Get(key string) (body []byte, contentType string, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return o.body, o.contentType, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
