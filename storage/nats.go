package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// bucketPrefix namespaces skitrip KV buckets on a shared NATS server.
const bucketPrefix = "SKITRIP_"

// NATSStore is a DocumentStore backed by JetStream KV, one bucket per
// collection. KV revisions are used directly as record revisions.
type NATSStore struct {
	nc *nats.Conn
	js jetstream.JetStream

	mu      sync.Mutex
	buckets map[string]jetstream.KeyValue
}

// ConnectNATS dials url and returns a NATSStore that owns the connection.
func ConnectNATS(url string, opts ...nats.Option) (*NATSStore, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	s := NewNATSStore(js)
	s.nc = nc
	return s, nil
}

// NewNATSStore creates a NATSStore on an existing JetStream context.
// Buckets are created lazily on first use.
func NewNATSStore(js jetstream.JetStream) *NATSStore {
	return &NATSStore{
		js:      js,
		buckets: make(map[string]jetstream.KeyValue),
	}
}

// BucketName returns the KV bucket used for a collection.
func BucketName(collection string) string {
	return bucketPrefix + strings.ToUpper(collection)
}

func (s *NATSStore) bucket(ctx context.Context, collection string) (jetstream.KeyValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kv, ok := s.buckets[collection]; ok {
		return kv, nil
	}
	kv, err := getOrCreateBucket(ctx, s.js, BucketName(collection))
	if err != nil {
		return nil, fmt.Errorf("open %s bucket: %w", collection, err)
	}
	s.buckets[collection] = kv
	return kv, nil
}

// getOrCreateBucket gets an existing KV bucket or creates it if it doesn't exist.
func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("skitrip %s storage", strings.ToLower(strings.TrimPrefix(name, bucketPrefix))),
		History:     5,
	})
}

// Get returns the latest value for id.
func (s *NATSStore) Get(ctx context.Context, collection, id string) (*Record, error) {
	if err := checkKey(collection, id); err != nil {
		return nil, err
	}
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return nil, err
	}

	entry, err := kv.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return &Record{Data: entry.Value(), Revision: entry.Revision()}, nil
}

// Put writes the value unconditionally.
func (s *NATSStore) Put(ctx context.Context, collection, id string, data []byte) (uint64, error) {
	if err := checkKey(collection, id); err != nil {
		return 0, err
	}
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return 0, err
	}

	rev, err := kv.Put(ctx, id, data)
	if err != nil {
		return 0, fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return rev, nil
}

// Create writes the value only if the key is absent.
func (s *NATSStore) Create(ctx context.Context, collection, id string, data []byte) (uint64, error) {
	if err := checkKey(collection, id); err != nil {
		return 0, err
	}
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return 0, err
	}

	rev, err := kv.Create(ctx, id, data)
	if err != nil {
		if isWrongRevision(err) {
			return 0, ErrRevisionMismatch
		}
		return 0, fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	return rev, nil
}

// Update writes the value only if the key is still at revision.
func (s *NATSStore) Update(ctx context.Context, collection, id string, data []byte, revision uint64) (uint64, error) {
	if err := checkKey(collection, id); err != nil {
		return 0, err
	}
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return 0, err
	}

	rev, err := kv.Update(ctx, id, data, revision)
	if err != nil {
		if isWrongRevision(err) {
			return 0, ErrRevisionMismatch
		}
		return 0, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return rev, nil
}

// Delete places a delete marker for id.
func (s *NATSStore) Delete(ctx context.Context, collection, id string) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return err
	}

	if err := kv.Delete(ctx, id); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Close drains the connection if the store owns it.
func (s *NATSStore) Close(context.Context) error {
	if s.nc == nil {
		return nil
	}
	return s.nc.Drain()
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}

// isWrongRevision reports a failed compare-and-set on a KV key.
func isWrongRevision(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
