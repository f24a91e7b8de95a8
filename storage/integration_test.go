//go:build integration

package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestNATSStore_Contract(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}

	s, err := ConnectNATS(url)
	if err != nil {
		t.Fatalf("ConnectNATS: %v", err)
	}
	defer s.Close(context.Background())

	exerciseDocumentStore(t, s, "it_"+uuid.NewString()[:8])
}

func TestMongoStore_Contract(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := ConnectMongo(ctx, uri, "skitrip_test")
	if err != nil {
		t.Fatalf("ConnectMongo: %v", err)
	}
	defer s.Close(context.Background())

	exerciseDocumentStore(t, s, "it_"+uuid.NewString()[:8])
}

func TestRedisLocker_Exclusive(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	l := NewRedisLocker(client, 5*time.Second, WithRetryInterval(10*time.Millisecond))
	planID := "it-" + uuid.NewString()

	unlock, err := l.Lock(context.Background(), planID)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, planID); err == nil {
		t.Fatal("second Lock succeeded while held")
	}

	unlock()

	unlock2, err := l.Lock(context.Background(), planID)
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	unlock2()
}
