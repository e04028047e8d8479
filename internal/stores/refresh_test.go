package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRefreshStore(t *testing.T) (*RefreshStore, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRefreshStore(rdb, "refresh"), mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestRefreshStoreRotationOverwrites(t *testing.T) {
	s, mr, done := newTestRefreshStore(t)
	defer done()
	ctx := context.Background()

	if err := s.Save(ctx, "m1", "first", time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, "m1", "second", time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ok, err := s.Matches(ctx, "m1", "first")
	if err != nil || ok {
		t.Fatalf("old value should not match: ok=%v err=%v", ok, err)
	}
	ok, err = s.Matches(ctx, "m1", "second")
	if err != nil || !ok {
		t.Fatalf("current value should match: ok=%v err=%v", ok, err)
	}
	if ttl := mr.TTL("refresh:m1"); ttl != time.Hour {
		t.Fatalf("expected ttl 1h, got %v", ttl)
	}
}

func TestRefreshStoreMissingAndDelete(t *testing.T) {
	s, _, done := newTestRefreshStore(t)
	defer done()
	ctx := context.Background()

	if _, err := s.Get(ctx, "m1"); !errors.Is(err, ErrRefreshRecordNotFound) {
		t.Fatalf("expected ErrRefreshRecordNotFound, got %v", err)
	}
	if ok, _ := s.Matches(ctx, "m1", ""); ok {
		t.Fatal("empty presented value must never match")
	}

	if err := s.Save(ctx, "m1", "v", time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Delete(ctx, "m1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "m1"); err != nil {
		t.Fatalf("Delete of absent key failed: %v", err)
	}
	if _, err := s.Get(ctx, "m1"); !errors.Is(err, ErrRefreshRecordNotFound) {
		t.Fatalf("expected record gone, got %v", err)
	}
}

func TestRefreshStoreExpires(t *testing.T) {
	s, mr, done := newTestRefreshStore(t)
	defer done()
	ctx := context.Background()

	if err := s.Save(ctx, "m1", "v", time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := s.Get(ctx, "m1"); !errors.Is(err, ErrRefreshRecordNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}
