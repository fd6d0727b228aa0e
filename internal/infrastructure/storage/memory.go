package storage

import (
	"context"
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reelpack/reelpack/pkg/errors"
	"github.com/reelpack/reelpack/pkg/interfaces"
)

type memoryObject struct {
	data         []byte
	contentType  string
	metadata     map[string]string
	lastModified time.Time
	etag         string
}

// MemoryStore is an in-memory ObjectStore used in tests and local
// development. Single-key operations are strongly consistent, matching the
// contract the real store provides.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]*memoryObject

	// FailDelete and FailGet inject per-key failures for fault testing.
	// FailList fails every List call while set.
	FailDelete map[string]error
	FailGet    map[string]error
	FailList   error

	// Counters for observing store traffic in tests.
	GetCalls  map[string]int
	ListCalls int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		bucket:     bucket,
		objects:    make(map[string]*memoryObject),
		FailDelete: make(map[string]error),
		FailGet:    make(map[string]error),
		GetCalls:   make(map[string]int),
	}
}

// Get retrieves an object.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	m.GetCalls[key]++
	failErr := m.FailGet[key]
	obj, ok := m.objects[key]
	m.mu.Unlock()

	if failErr != nil {
		return nil, errors.Transport(fmt.Sprintf("failed to get object %s", key), failErr)
	}
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("object %s not found", key))
	}
	return append([]byte(nil), obj.data...), nil
}

// Put stores an object.
func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = &memoryObject{
		data:         append([]byte(nil), data...),
		contentType:  contentType,
		metadata:     metadata,
		lastModified: time.Now().UTC(),
		etag:         fmt.Sprintf("%x", md5.Sum(data)),
	}
	return nil
}

// Delete removes an object. Deleting a missing key succeeds, matching S3.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailDelete[key]; err != nil {
		return errors.Transport(fmt.Sprintf("failed to delete object %s", key), err)
	}
	delete(m.objects, key)
	return nil
}

// List enumerates objects under a prefix in key order.
func (m *MemoryStore) List(ctx context.Context, prefix string, maxKeys int) ([]interfaces.ObjectInfo, error) {
	m.mu.Lock()
	m.ListCalls++
	if err := m.FailList; err != nil {
		m.mu.Unlock()
		return nil, errors.Transport("failed to list objects", err)
	}
	var infos []interfaces.ObjectInfo
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, interfaces.ObjectInfo{
				Key:          key,
				Size:         int64(len(obj.data)),
				LastModified: obj.lastModified,
				ETag:         obj.etag,
			})
		}
	}
	m.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	if maxKeys > 0 && len(infos) > maxKeys {
		infos = infos[:maxKeys]
	}
	return infos, nil
}

// Exists reports whether an object is present.
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

// PublicURL returns a synthetic URL for a key.
func (m *MemoryStore) PublicURL(key string) string {
	return fmt.Sprintf("memory://%s/%s", m.bucket, key)
}

// Bucket returns the bucket name.
func (m *MemoryStore) Bucket() string {
	return m.bucket
}
