//go:build integration

package lock_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attest/internal/review"
	"attest/internal/review/store/lock"
	id "attest/pkg/domain"
	"attest/pkg/testutil/containers"
)

type RedisLockSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *lock.RedisStore
}

func TestRedisLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = lock.NewRedis(s.redis.Client, nil)
}

func (s *RedisLockSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockSuite) TestAcquireAndGet() {
	ctx := context.Background()

	acquired, err := s.store.Acquire(ctx, "MAP-001", "alice", 30*time.Minute)
	s.Require().NoError(err)
	s.Equal(id.ReviewerID("alice"), acquired.Holder)

	got, err := s.store.Get(ctx, "MAP-001")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(acquired.LockID, got.LockID)
	s.Equal(id.ReviewerID("alice"), got.Holder)
}

func (s *RedisLockSuite) TestContention() {
	ctx := context.Background()

	_, err := s.store.Acquire(ctx, "MAP-001", "alice", 30*time.Minute)
	s.Require().NoError(err)

	_, err = s.store.Acquire(ctx, "MAP-001", "bob", 30*time.Minute)
	s.Require().Error(err)
	s.True(errors.Is(err, review.ErrLockHeld))

	var held *review.LockHeldError
	s.Require().True(errors.As(err, &held))
	s.Equal(id.ReviewerID("alice"), held.Holder)
}

func (s *RedisLockSuite) TestRenewalKeepsLockID() {
	ctx := context.Background()

	first, err := s.store.Acquire(ctx, "MAP-001", "alice", 30*time.Minute)
	s.Require().NoError(err)

	renewed, err := s.store.Acquire(ctx, "MAP-001", "alice", 30*time.Minute)
	s.Require().NoError(err)
	s.Equal(first.LockID, renewed.LockID, "renewal must not mint a new lease")
}

func (s *RedisLockSuite) TestExpiryReclaimedByNextAcquirer() {
	ctx := context.Background()

	first, err := s.store.Acquire(ctx, "MAP-001", "alice", 200*time.Millisecond)
	s.Require().NoError(err)

	time.Sleep(300 * time.Millisecond)

	second, err := s.store.Acquire(ctx, "MAP-001", "bob", 30*time.Minute)
	s.Require().NoError(err, "expired lease must not block a new acquirer")
	s.Equal(id.ReviewerID("bob"), second.Holder)
	s.NotEqual(first.LockID, second.LockID)
}

func (s *RedisLockSuite) TestReleaseOwnerOnly() {
	ctx := context.Background()

	_, err := s.store.Acquire(ctx, "MAP-001", "alice", 30*time.Minute)
	s.Require().NoError(err)

	err = s.store.Release(ctx, "MAP-001", "bob")
	s.True(errors.Is(err, review.ErrLockOwnership))

	s.Require().NoError(s.store.Release(ctx, "MAP-001", "alice"))

	s.NoError(s.store.Release(ctx, "MAP-001", "alice"),
		"double release is idempotent, the lease is already gone")
}

func (s *RedisLockSuite) TestConcurrentAcquireExactlyOneWinner() {
	ctx := context.Background()
	const contenders = 50

	var wg sync.WaitGroup
	var wins atomic.Int32
	var contentionErrs atomic.Int32

	for i := range contenders {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			holder := id.ReviewerID(fmt.Sprintf("reviewer-%02d", n))
			_, err := s.store.Acquire(ctx, "MAP-001", holder, 30*time.Minute)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, review.ErrLockHeld):
				contentionErrs.Add(1)
			default:
				s.Failf("unexpected acquire error", "%v", err)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load(), "exactly one acquirer must win")
	s.Equal(int32(contenders-1), contentionErrs.Load())
}

func (s *RedisLockSuite) TestActiveLocks() {
	ctx := context.Background()

	_, err := s.store.Acquire(ctx, "MAP-001", "alice", 30*time.Minute)
	s.Require().NoError(err)
	_, err = s.store.Acquire(ctx, "MAP-002", "bob", 30*time.Minute)
	s.Require().NoError(err)

	active, err := s.store.ActiveLocks(ctx)
	s.Require().NoError(err)
	s.Len(active, 2)
}
