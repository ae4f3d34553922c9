// Package cache decorates the session gateway with a Redis lookaside cache
// for the active-session query, which the dashboard polls far more often
// than sessions start or stop. The cache is best-effort: Redis failures are
// logged and the call falls through to the inner gateway.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"dainage/internal/domain"
	"dainage/internal/ports"
)

// noneMarker is cached when the user has no running entry, so "none" also
// avoids the database.
const noneMarker = "none"

// SessionCache wraps an inner gateway with per-user active-session caching.
type SessionCache struct {
	inner ports.SessionGateway
	rdb   *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

func NewSessionCache(inner ports.SessionGateway, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *SessionCache {
	return &SessionCache{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

func key(userID string) string { return "dainage:active:" + userID }

func (c *SessionCache) GetActiveSession(ctx context.Context, userID string) (*domain.TimeEntry, error) {
	val, err := c.rdb.Get(ctx, key(userID)).Result()
	switch {
	case err == nil:
		if val == noneMarker {
			return nil, nil
		}
		var entry domain.TimeEntry
		if err := json.Unmarshal([]byte(val), &entry); err == nil {
			return &entry, nil
		}
		// Corrupt payload: drop it and fall through.
		c.rdb.Del(ctx, key(userID))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("session cache read failed", "error", err.Error())
	}

	entry, err := c.inner.GetActiveSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, userID, entry)
	return entry, nil
}

func (c *SessionCache) StartSession(ctx context.Context, req ports.StartRequest) (*domain.TimeEntry, error) {
	entry, err := c.inner.StartSession(ctx, req)
	if err != nil {
		return nil, err
	}
	c.store(ctx, req.UserID, entry)
	return entry, nil
}

func (c *SessionCache) StopSession(ctx context.Context, userID, entryID string) (*domain.TimeEntry, error) {
	entry, err := c.inner.StopSession(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Del(ctx, key(userID)).Err(); err != nil {
		c.log.Warn("session cache invalidate failed", "error", err.Error())
	}
	return entry, nil
}

func (c *SessionCache) store(ctx context.Context, userID string, entry *domain.TimeEntry) {
	var payload string
	if entry == nil {
		payload = noneMarker
	} else {
		b, err := json.Marshal(entry)
		if err != nil {
			return
		}
		payload = string(b)
	}
	if err := c.rdb.Set(ctx, key(userID), payload, c.ttl).Err(); err != nil {
		c.log.Warn("session cache write failed", "error", err.Error())
	}
}
