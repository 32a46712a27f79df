package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMarker_Claim(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer s.Close()

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Fatalf("close redis: %v", err)
		}
	})

	m := NewMarker(rdb, time.Minute)
	ctx := context.Background()

	first, err := m.Claim(ctx, "record:42:2024-01-16")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !first {
		t.Fatalf("expected first claim to succeed")
	}

	second, err := m.Claim(ctx, "record:42:2024-01-16")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second {
		t.Fatalf("expected second claim to be rejected")
	}
}

func TestMarker_Release(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer s.Close()

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m := NewMarker(rdb, time.Minute)
	ctx := context.Background()

	if _, err := m.Claim(ctx, "record:7"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := m.Release(ctx, "record:7"); err != nil {
		t.Fatalf("release: %v", err)
	}

	again, err := m.Claim(ctx, "record:7")
	if err != nil {
		t.Fatalf("claim after release: %v", err)
	}
	if !again {
		t.Fatalf("expected claim to succeed after release")
	}
}
