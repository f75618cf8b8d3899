package chat

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"zkchat/go-client/internal/securestore"
	"zkchat/go-client/pkg/message"
)

// Bucket is the per-identity persisted chat state, keyed by the session
// address. Message bodies are not persisted here; the canonical copies live
// with the indexer.
type Bucket struct {
	ActiveChats []message.Chat `json:"activeChats"`
}

// BucketStore persists buckets. Implementations must treat unknown or
// corrupt stored data as empty state rather than failing hard.
type BucketStore interface {
	Load(address string) (Bucket, error)
	Save(address string, bucket Bucket) error
}

type InMemoryBucketStore struct {
	mu      sync.RWMutex
	buckets map[string]Bucket
}

func NewInMemoryBucketStore() *InMemoryBucketStore {
	return &InMemoryBucketStore{buckets: make(map[string]Bucket)}
}

func (s *InMemoryBucketStore) Load(address string) (Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buckets[address], nil
}

func (s *InMemoryBucketStore) Save(address string, bucket Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[address] = bucket
	return nil
}

// FileBucketStore keeps all buckets in one JSON file, optionally sealed
// with a passphrase through the secure store envelope.
type FileBucketStore struct {
	mu     sync.Mutex
	path   string
	secret string
}

func NewFileBucketStore(path string) *FileBucketStore {
	return &FileBucketStore{path: path}
}

func NewEncryptedFileBucketStore(path, passphrase string) *FileBucketStore {
	return &FileBucketStore{path: path, secret: passphrase}
}

func (s *FileBucketStore) Load(address string) (Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.loadAllLocked()
	return all[address], nil
}

func (s *FileBucketStore) Save(address string, bucket Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.loadAllLocked()
	all[address] = bucket
	return s.writeAllLocked(all)
}

func (s *FileBucketStore) loadAllLocked() map[string]Bucket {
	result := make(map[string]Bucket)
	data, err := os.ReadFile(s.path)
	if err != nil || len(data) == 0 {
		return result
	}

	decoded := data
	if s.secret != "" {
		plain, err := securestore.Decrypt(s.secret, data)
		if err != nil {
			if errors.Is(err, securestore.ErrLegacyData) {
				decoded = data
			} else {
				return result
			}
		} else {
			decoded = plain
		}
	}

	if err := json.Unmarshal(decoded, &result); err != nil {
		// Corrupt state degrades to empty, never blocks identity import.
		return make(map[string]Bucket)
	}
	return result
}

func (s *FileBucketStore) writeAllLocked(all map[string]Bucket) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(all)
	if err != nil {
		return err
	}
	if s.secret != "" {
		data, err = securestore.Encrypt(s.secret, data)
		if err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0o600)
}
