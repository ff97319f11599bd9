// Package redisrepo is a Redis-backed refresh token ledger. Token records
// live in hashes keyed by the opaque token string with a TTL at the record
// expiry, plus a per-account set used for chain revocation.
package redisrepo

import (
	"context"
	"strconv"
	"time"

	"github.com/clockwrk/authcore/token/refresh"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix   = "refresh:token:"
	accountKeyPrefix = "refresh:account:"
)

var _ refresh.Repo = (*RedisRefreshTokenRepo)(nil)

type RedisRefreshTokenRepo struct {
	client *redis.Client
}

func New(client *redis.Client) *RedisRefreshTokenRepo {
	return &RedisRefreshTokenRepo{client: client}
}

func tokenKey(token string) string {
	return tokenKeyPrefix + token
}

func accountKey(accountID string) string {
	return accountKeyPrefix + accountID
}

func (r *RedisRefreshTokenRepo) Save(ctx context.Context, record *refresh.Record) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, tokenKey(record.Token), map[string]any{
		"id":         record.ID,
		"account_id": record.AccountID,
		"expires_at": record.ExpiresAt.Unix(),
		"revoked":    boolField(record.Revoked),
	})
	pipe.ExpireAt(ctx, tokenKey(record.Token), record.ExpiresAt)
	pipe.SAdd(ctx, accountKey(record.AccountID), record.Token)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "[RedisRefreshTokenRepo.Save] pipeline")
	}
	return nil
}

func (r *RedisRefreshTokenRepo) Get(ctx context.Context, token string) (*refresh.Record, error) {
	fields, err := r.client.HGetAll(ctx, tokenKey(token)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[RedisRefreshTokenRepo.Get] HGetAll")
	}
	if len(fields) == 0 {
		return nil, refresh.ErrNotFound
	}

	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "[RedisRefreshTokenRepo.Get] parse expires_at")
	}

	return &refresh.Record{
		ID:        fields["id"],
		AccountID: fields["account_id"],
		Token:     token,
		ExpiresAt: time.Unix(expiresAt, 0),
		Revoked:   fields["revoked"] == "1",
	}, nil
}

func (r *RedisRefreshTokenRepo) RevokeAllForAccount(ctx context.Context, accountID string) error {
	tokens, err := r.client.SMembers(ctx, accountKey(accountID)).Result()
	if err != nil {
		return errors.Wrap(err, "[RedisRefreshTokenRepo.RevokeAllForAccount] SMembers")
	}

	for _, token := range tokens {
		// HSet on a missing key would resurrect an already-expired record
		// without a TTL, so flip the flag only where the record still exists.
		exists, err := r.client.Exists(ctx, tokenKey(token)).Result()
		if err != nil {
			return errors.Wrap(err, "[RedisRefreshTokenRepo.RevokeAllForAccount] Exists")
		}
		if exists == 0 {
			if err := r.client.SRem(ctx, accountKey(accountID), token).Err(); err != nil {
				return errors.Wrap(err, "[RedisRefreshTokenRepo.RevokeAllForAccount] SRem")
			}
			continue
		}
		if err := r.client.HSet(ctx, tokenKey(token), "revoked", "1").Err(); err != nil {
			return errors.Wrap(err, "[RedisRefreshTokenRepo.RevokeAllForAccount] HSet")
		}
	}
	return nil
}

func (r *RedisRefreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	// Redis drops expired token keys on its own; the sweep deletes revoked
	// records and prunes dangling set members.
	var deleted int64

	iter := r.client.Scan(ctx, 0, tokenKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return deleted, errors.Wrap(err, "[RedisRefreshTokenRepo.DeleteExpired] HGetAll")
		}
		if len(fields) == 0 {
			continue
		}

		expiresAt, _ := strconv.ParseInt(fields["expires_at"], 10, 64)
		expired := !now.Before(time.Unix(expiresAt, 0))
		if !expired && fields["revoked"] != "1" {
			continue
		}

		token := key[len(tokenKeyPrefix):]
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, key)
		pipe.SRem(ctx, accountKey(fields["account_id"]), token)
		if _, err := pipe.Exec(ctx); err != nil {
			return deleted, errors.Wrap(err, "[RedisRefreshTokenRepo.DeleteExpired] pipeline")
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, errors.Wrap(err, "[RedisRefreshTokenRepo.DeleteExpired] scan")
	}
	return deleted, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
