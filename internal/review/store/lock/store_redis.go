package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"attest/internal/review"
	"attest/internal/review/ports"
	id "attest/pkg/domain"
)

const leaseKeyPrefix = "lease:target:"

// Acquire return codes from the Lua script.
const (
	luaContended = 0
	luaAcquired  = 1
	luaRenewed   = 2
)

// acquireScript is the compare-and-swap core. Redis executes scripts
// atomically, so the get / compare / set window cannot interleave with
// another acquirer. Expiry is Redis key TTL; a lapsed lease is simply an
// absent key, which gives lazy reclamation for free.
var acquireScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	return {1, ARGV[1]}
end
local cur = cjson.decode(raw)
if cur.holder == ARGV[3] then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
	return {2, raw}
end
return {0, raw}
`)

// releaseScript deletes the lease only when the caller still holds it.
// Returns 1 on release, 0 when the key is gone (already released), -1 on a
// holder mismatch.
var releaseScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return {0, ''}
end
local cur = cjson.decode(raw)
if cur.holder ~= ARGV[1] then
	return {-1, raw}
end
redis.call('DEL', KEYS[1])
return {1, raw}
`)

// leaseValue is the JSON document stored under the lease key.
type leaseValue struct {
	Holder     string    `json:"holder"`
	LockID     uuid.UUID `json:"lock_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// RedisStore is the distributed lease store for multi-node deployments.
type RedisStore struct {
	client *redis.Client
	clock  ports.Clock
}

// NewRedis constructs a Redis-backed lock store.
func NewRedis(client *redis.Client, clock ports.Clock) *RedisStore {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &RedisStore{client: client, clock: clock}
}

func leaseKey(targetID id.TargetID) string {
	return leaseKeyPrefix + string(targetID)
}

func (s *RedisStore) Acquire(ctx context.Context, targetID id.TargetID, holder id.ReviewerID, ttl time.Duration) (*review.Lock, error) {
	now := s.clock.Now()
	candidate := leaseValue{Holder: string(holder), LockID: uuid.New(), AcquiredAt: now}
	candidateJSON, err := json.Marshal(candidate)
	if err != nil {
		return nil, fmt.Errorf("marshal lease: %w", err)
	}

	result, err := acquireScript.Run(ctx, s.client,
		[]string{leaseKey(targetID)},
		string(candidateJSON), ttl.Milliseconds(), string(holder),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("acquire lease on %s: %w", targetID, err)
	}

	code, raw, err := parseScriptResult(result)
	if err != nil {
		return nil, fmt.Errorf("acquire lease on %s: %w", targetID, err)
	}

	stored, err := parseLease(raw)
	if err != nil {
		return nil, fmt.Errorf("acquire lease on %s: %w", targetID, err)
	}

	switch code {
	case luaAcquired, luaRenewed:
		return &review.Lock{
			TargetID:   targetID,
			Holder:     id.ReviewerID(stored.Holder),
			LockID:     stored.LockID,
			AcquiredAt: stored.AcquiredAt,
			ExpiresAt:  now.Add(ttl),
		}, nil
	default:
		return nil, &review.LockHeldError{TargetID: targetID, Holder: id.ReviewerID(stored.Holder)}
	}
}

func (s *RedisStore) Release(ctx context.Context, targetID id.TargetID, holder id.ReviewerID) error {
	result, err := releaseScript.Run(ctx, s.client,
		[]string{leaseKey(targetID)}, string(holder),
	).Slice()
	if err != nil {
		return fmt.Errorf("release lease on %s: %w", targetID, err)
	}

	code, raw, err := parseScriptResult(result)
	if err != nil {
		return fmt.Errorf("release lease on %s: %w", targetID, err)
	}

	switch code {
	case 1:
		return nil
	case -1:
		stored, parseErr := parseLease(raw)
		if parseErr != nil {
			return fmt.Errorf("release lease on %s: %w", targetID, parseErr)
		}
		return fmt.Errorf("release lock on %s held by %s: %w", targetID, stored.Holder, review.ErrLockOwnership)
	default:
		// Key TTL already reclaimed the lease; release is idempotent.
		return nil
	}
}

func (s *RedisStore) Get(ctx context.Context, targetID id.TargetID) (*review.Lock, error) {
	return s.load(ctx, leaseKey(targetID))
}

func (s *RedisStore) ActiveLocks(ctx context.Context) ([]review.Lock, error) {
	locks := make([]review.Lock, 0)
	iter := s.client.Scan(ctx, 0, leaseKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		lock, err := s.load(ctx, iter.Val())
		if err != nil {
			return nil, err
		}
		if lock != nil {
			locks = append(locks, *lock)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan leases: %w", err)
	}
	return locks, nil
}

func (s *RedisStore) load(ctx context.Context, key string) (*review.Lock, error) {
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load lease %s: %w", key, err)
	}

	stored, err := parseLease(getCmd.Val())
	if err != nil {
		return nil, fmt.Errorf("load lease %s: %w", key, err)
	}

	remaining := ttlCmd.Val()
	if remaining <= 0 {
		return nil, nil
	}
	return &review.Lock{
		TargetID:   id.TargetID(key[len(leaseKeyPrefix):]),
		Holder:     id.ReviewerID(stored.Holder),
		LockID:     stored.LockID,
		AcquiredAt: stored.AcquiredAt,
		ExpiresAt:  s.clock.Now().Add(remaining),
	}, nil
}

func parseScriptResult(result []any) (int64, string, error) {
	if len(result) != 2 {
		return 0, "", fmt.Errorf("unexpected script reply of %d elements", len(result))
	}
	code, ok := result[0].(int64)
	if !ok {
		return 0, "", fmt.Errorf("unexpected script status %T", result[0])
	}
	raw, ok := result[1].(string)
	if !ok {
		return 0, "", fmt.Errorf("unexpected script value %T", result[1])
	}
	return code, raw, nil
}

func parseLease(raw string) (*leaseValue, error) {
	var stored leaseValue
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("decode lease: %w", err)
	}
	return &stored, nil
}
