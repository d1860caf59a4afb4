// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package replay makes step-up tokens single use by remembering spent token IDs
// until they expire.
package replay

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"codeberg.org/oliverandrich/storefront/internal/repository"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces spent token IDs in redis.
const keyPrefix = "stepup:"

// SQLGuard stores spent token IDs in the step_up_tokens table.
type SQLGuard struct {
	repo *repository.Repository
}

// NewSQLGuard creates a guard backed by the database.
func NewSQLGuard(repo *repository.Repository) *SQLGuard {
	return &SQLGuard{repo: repo}
}

// Consume marks jti as spent. It returns false if it was spent before.
func (g *SQLGuard) Consume(ctx context.Context, jti string, userID int64, expiresAt time.Time) (bool, error) {
	return g.repo.ConsumeStepUpToken(ctx, jti, userID, expiresAt)
}

// RedisGuard stores spent token IDs as redis keys that expire with the token.
type RedisGuard struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisGuard creates a guard on an existing client.
func NewRedisGuard(client redis.UniversalClient) *RedisGuard {
	return &RedisGuard{client: client, now: time.Now}
}

// Dial connects to the redis server at url and verifies the connection.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Consume marks jti as spent. It returns false if it was spent before or
// the token has already expired.
func (g *RedisGuard) Consume(ctx context.Context, jti string, userID int64, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(g.now())
	if ttl <= 0 {
		return false, nil
	}
	ok, err := g.client.SetNX(ctx, keyPrefix+jti, strconv.FormatInt(userID, 10), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("store step-up token: %w", err)
	}
	return ok, nil
}
