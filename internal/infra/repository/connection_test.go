package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/chatrelay/internal/domain"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestConnectionRepositoryLifecycle(t *testing.T) {
	_, rdb := newTestRedis(t)
	repo := NewConnectionRepository(rdb)
	ctx := context.Background()

	if err := repo.Put(ctx, domain.Connection{ConnectionID: "c1", Email: "alice@a.com"}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := repo.Put(ctx, domain.Connection{ConnectionID: "c1", Email: "alice@a.com", ChannelID: "C1"}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := repo.Put(ctx, domain.Connection{ConnectionID: "c2", Email: "bob@b.com"}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	conn, err := repo.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if conn.ChannelID != "C1" || conn.Email != "alice@a.com" {
		t.Fatalf("unexpected connection: %+v", conn)
	}

	conns, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(conns) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(conns))
	}

	if err := repo.Delete(ctx, "c1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, "c1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	// deleting twice is fine
	if err := repo.Delete(ctx, "c1"); err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
}

func TestConnectionRepositorySkipsCorruptRecords(t *testing.T) {
	mr, rdb := newTestRedis(t)
	repo := NewConnectionRepository(rdb)
	ctx := context.Background()

	mr.HSet(connectionsKey, "broken", "{not json")
	if err := repo.Put(ctx, domain.Connection{ConnectionID: "c1", Email: "alice@a.com"}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	conns, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(conns) != 1 || conns[0].ConnectionID != "c1" {
		t.Fatalf("unexpected connections: %+v", conns)
	}
}
