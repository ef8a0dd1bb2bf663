// Package memory implements the execution.MemoryAdapter long-term memory
// backend nodes and tools read and write through.
package memory

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/duragraph/duragraph/internal/domain/execution"
	pkguuid "github.com/duragraph/duragraph/internal/pkg/uuid"
)

const keyPrefix = "duragraph:memory:"

// RedisAdapter stores memory entries in a per-session Redis sorted set,
// scored by write time so Query can cheaply return the most recent entries.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(addr, password string, db int) (*RedisAdapter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisAdapter{client: client}, nil
}

func (r *RedisAdapter) Store(entry execution.MemoryEntry) error {
	if entry.ID == "" {
		entry.ID = pkguuid.New()
	}
	sessionID, _ := entry.Metadata["sessionId"].(string)

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	score := float64(time.Now().UnixNano())
	return r.client.ZAdd(ctx, sessionKey(sessionID), redis.Z{Score: score, Member: data}).Err()
}

func (r *RedisAdapter) Query(q execution.MemoryQuery) ([]execution.MemoryEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw, err := r.client.ZRevRange(ctx, sessionKey(q.SessionID), 0, int64(limit*4)-1).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	entries := make([]execution.MemoryEntry, 0, limit)
	for _, s := range raw {
		var entry execution.MemoryEntry
		if err := json.Unmarshal([]byte(s), &entry); err != nil {
			continue
		}
		if q.Text != "" && !strings.Contains(strings.ToLower(entry.Content), strings.ToLower(q.Text)) {
			continue
		}
		if !matchesFilter(entry.Metadata, q.Filter) {
			continue
		}
		entries = append(entries, entry)
		if len(entries) >= limit {
			break
		}
	}

	return entries, nil
}

func (r *RedisAdapter) Close() error { return r.client.Close() }

func sessionKey(sessionID string) string {
	if sessionID == "" {
		sessionID = "_global"
	}
	return keyPrefix + sessionID
}

func matchesFilter(metadata, filter map[string]interface{}) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}
