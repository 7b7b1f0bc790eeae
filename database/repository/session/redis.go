package sessionRepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"harambee/models"
	"harambee/utils"

	"github.com/go-redis/redis/v8"
)

// saveIfPendingScript sets KEYS[1] to ARGV[1] unless the stored session left ARGV[2].
var saveIfPendingScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local doc = cjson.decode(cur)
  if doc['status'] ~= ARGV[2] then
    return 0
  end
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

func sessionKey(id string) string { return utils.SessionCachePrefix + id }
func intentKey(key string) string { return utils.IntentCachePrefix + key }
func resultKey(id string) string  { return utils.ResultCachePrefix + id }

// Save writes the session snapshot and refreshes its TTL.
func (r *redisSessionRepo) Save(ctx context.Context, session *models.PaymentSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal payment session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(session.ID), string(data), r.sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache payment session %s: %w", session.ID, err)
	}
	return nil
}

func (r *redisSessionRepo) SaveIfPending(ctx context.Context, session *models.PaymentSession) (bool, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return false, fmt.Errorf("failed to marshal payment session: %w", err)
	}
	n, err := saveIfPendingScript.Run(ctx, r.client,
		[]string{sessionKey(session.ID)},
		string(data), string(models.PaymentPending), r.sessionTTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to cache payment session %s: %w", session.ID, err)
	}
	return n == 1, nil
}

// Get loads a session snapshot.
func (r *redisSessionRepo) Get(ctx context.Context, id string) (*models.PaymentSession, error) {
	raw, err := r.client.Get(ctx, sessionKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read payment session %s: %w", id, err)
	}

	var session models.PaymentSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to parse payment session %s: %w", id, err)
	}
	return &session, nil
}

func (r *redisSessionRepo) AcquireIntent(ctx context.Context, key, holder string) (bool, error) {
	ok, err := r.client.SetNX(ctx, intentKey(key), holder, r.intentTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to lock payment intent %s: %w", key, err)
	}
	return ok, nil
}

func (r *redisSessionRepo) IntentHolder(ctx context.Context, key string) (string, error) {
	holder, err := r.client.Get(ctx, intentKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return holder, err
}

func (r *redisSessionRepo) BindIntent(ctx context.Context, key, holder string) error {
	return r.client.Set(ctx, intentKey(key), holder, r.intentTTL).Err()
}

func (r *redisSessionRepo) TouchIntent(ctx context.Context, key string) error {
	return r.client.Expire(ctx, intentKey(key), r.intentTTL).Err()
}

func (r *redisSessionRepo) ReleaseIntent(ctx context.Context, key string) error {
	return r.client.Del(ctx, intentKey(key)).Err()
}

// SaveResult stores the callback outcome for the status checker.
func (r *redisSessionRepo) SaveResult(ctx context.Context, result models.GatewayResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway result: %w", err)
	}
	return r.client.Set(ctx, resultKey(result.CheckoutRequestID), string(data), r.sessionTTL).Err()
}

func (r *redisSessionRepo) GetResult(ctx context.Context, checkoutRequestID string) (*models.GatewayResult, error) {
	raw, err := r.client.Get(ctx, resultKey(checkoutRequestID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read gateway result %s: %w", checkoutRequestID, err)
	}

	var result models.GatewayResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to parse gateway result %s: %w", checkoutRequestID, err)
	}
	return &result, nil
}
