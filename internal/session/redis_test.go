package session

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"tunarag/internal/config"
	"tunarag/internal/models"
	"tunarag/internal/redis"
)

func newRedisManager(t *testing.T) (*Manager, *redis.Client, func()) {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed session tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	cfg := &config.Config{
		Redis: config.RedisConfig{Host: host, Port: port, DB: db},
	}
	client, err := redis.NewClient(cfg)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	if raw := client.Raw(); raw != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := raw.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush db: %v", err)
		}
	}
	m, err := NewManager(client, "session", time.Hour, 3)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, client, func() { client.Close() }
}

func TestRedisSessionLifecycle(t *testing.T) {
	m, client, cleanup := newRedisManager(t)
	defer cleanup()
	ctx := context.Background()

	id, err := m.CreateSession(ctx)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if ttl, err := client.TTL(ctx, id); err != nil {
		t.Fatalf("ttl before first append: %v", err)
	} else if ttl > 0 {
		t.Fatalf("session key must not exist before the first append, ttl %v", ttl)
	}

	turn := models.Turn{Query: "How do I comment on a post?", Response: "Open the post and press Comment."}
	if err := m.AppendTurn(ctx, id, turn); err != nil {
		t.Fatalf("append turn: %v", err)
	}

	ttlBefore, err := client.TTL(ctx, id)
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttlBefore <= 0 {
		t.Fatalf("first append must arm the session ttl, got %v", ttlBefore)
	}

	if err := m.AppendTurn(ctx, id, models.Turn{Query: "Q2", Response: "A2"}); err != nil {
		t.Fatalf("append second turn: %v", err)
	}
	ttlAfter, err := client.TTL(ctx, id)
	if err != nil {
		t.Fatalf("ttl after append: %v", err)
	}
	if ttlAfter > ttlBefore {
		t.Fatalf("append must not extend the ttl: before %v after %v", ttlBefore, ttlAfter)
	}

	history, err := m.GetHistory(ctx, id)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("want 2 turns, got %d", len(history))
	}
	if history[0] != turn {
		t.Fatalf("history order mismatch: %+v", history[0])
	}
}
