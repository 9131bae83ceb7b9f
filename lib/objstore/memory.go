package objstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
	updated     time.Time
}

// Memory is an in-memory Store for tests.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]map[string]memoryObject
}

func NewMemory() *Memory {
	return &Memory{buckets: map[string]map[string]memoryObject{}}
}

// Put stores an object with an explicit updated time.
func (m *Memory) Put(bucket, name string, data []byte, updated time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = map[string]memoryObject{}
	}
	m.buckets[bucket][name] = memoryObject{data: data, updated: updated}
}

// ContentType returns the stored content type of an object, or "".
func (m *Memory) ContentType(bucket, name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buckets[bucket][name].contentType
}

func (m *Memory) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var infos []ObjectInfo
	for name, obj := range m.buckets[bucket] {
		if strings.HasPrefix(name, prefix) {
			infos = append(infos, ObjectInfo{Name: name, Updated: obj.updated})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (m *Memory) Download(ctx context.Context, bucket, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.buckets[bucket][name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, name)
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *Memory) Upload(ctx context.Context, bucket, name, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.buckets[bucket] == nil {
		m.buckets[bucket] = map[string]memoryObject{}
	}
	m.buckets[bucket][name] = memoryObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		updated:     time.Now(),
	}
	return nil
}
