package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
)

const (
	refreshTokenKeyPrefix      = "refresh_token:"
	userRefreshTokensKeyPrefix = "user_refresh_tokens:"
)

// RedisRefreshTokenStore keeps refresh tokens under a TTL equal to their
// remaining lifetime and indexes them per user for logout-all.
type RedisRefreshTokenStore struct {
	client *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewRedisRefreshTokenStore(client *redis.Client) (*RedisRefreshTokenStore, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	return &RedisRefreshTokenStore{client: client, logger: slog.Default(), now: time.Now}, nil
}

func refreshTokenKey(tokenID string) string {
	return refreshTokenKeyPrefix + tokenID
}

func userRefreshTokensKey(userID int64) string {
	return userRefreshTokensKeyPrefix + strconv.FormatInt(userID, 10)
}

func (s *RedisRefreshTokenStore) Create(ctx context.Context, token *models.RefreshToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = s.now().UTC()
	}
	ttl := token.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("refresh token already expired")
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh token: %w", err)
	}

	userKey := userRefreshTokensKey(token.UserID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshTokenKey(token.ID), payload, ttl)
	pipe.SAdd(ctx, userKey, token.ID)
	pipe.Expire(ctx, userKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// Consume relies on GETDEL so only one caller ever receives a given token.
func (s *RedisRefreshTokenStore) Consume(ctx context.Context, tokenID string) (*models.RefreshToken, error) {
	payload, err := s.client.GetDel(ctx, refreshTokenKey(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("failed to consume refresh token: %w", err)
	}

	var token models.RefreshToken
	if err := json.Unmarshal(payload, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal refresh token: %w", err)
	}
	// consumption already succeeded, so an index failure is logged, not returned
	if err := s.client.SRem(ctx, userRefreshTokensKey(token.UserID), token.ID).Err(); err != nil {
		s.logger.Warn("failed to unindex refresh token", "user_id", token.UserID, "error", err)
	}
	return &token, nil
}

func (s *RedisRefreshTokenStore) Delete(ctx context.Context, tokenID string) error {
	_, err := s.Consume(ctx, tokenID)
	if err != nil && !errors.Is(err, ErrRefreshTokenNotFound) {
		return err
	}
	return nil
}

func (s *RedisRefreshTokenStore) DeleteByUserID(ctx context.Context, userID int64) error {
	userKey := userRefreshTokensKey(userID)
	tokenIDs, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list refresh tokens: %w", err)
	}

	keys := make([]string, 0, len(tokenIDs)+1)
	for _, id := range tokenIDs {
		keys = append(keys, refreshTokenKey(id))
	}
	keys = append(keys, userKey)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete refresh tokens: %w", err)
	}
	return nil
}
