package services

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockEventArchive keeps archived payloads in memory for testing
type MockEventArchive struct {
	mu      sync.RWMutex
	objects map[string][]byte
	writes  int
	err     error
}

func NewMockEventArchive() *MockEventArchive {
	return &MockEventArchive{objects: make(map[string][]byte)}
}

// Archive stores the payload under the same key layout as S3Archive
func (m *MockEventArchive) Archive(_ context.Context, provider, eventID string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	key := archiveKey(provider, eventID, time.Now().UTC())
	m.objects[key] = append([]byte(nil), payload...)
	m.writes++
	return key, nil
}

// Writes counts successful Archive calls, overwrites included
func (m *MockEventArchive) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// FailWith makes every following Archive call return err
func (m *MockEventArchive) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Objects returns a copy of everything archived
func (m *MockEventArchive) Objects() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]byte, len(m.objects))
	for k, v := range m.objects {
		out[k] = v
	}
	return out
}

// Find returns the payload archived for eventID.
func (m *MockEventArchive) Find(eventID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	suffix := "/" + eventID + ".json"
	for k, v := range m.objects {
		if len(k) >= len(suffix) && k[len(k)-len(suffix):] == suffix {
			return v, nil
		}
	}
	return nil, fmt.Errorf("event %s not archived", eventID)
}
