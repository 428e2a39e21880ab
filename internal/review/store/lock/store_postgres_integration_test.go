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
	"attest/internal/review/store"
	"attest/internal/review/store/lock"
	id "attest/pkg/domain"
	"attest/pkg/testutil/containers"
)

// settableClock drives lease expiry without sleeping.
type settableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *settableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *settableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type PostgresLockSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	clock    *settableClock
	store    *lock.PostgresStore
}

func TestPostgresLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLockSuite))
}

func (s *PostgresLockSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(s.postgres.ApplySchema(context.Background(), store.SchemaDDL))
	s.clock = &settableClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	s.store = lock.NewPostgres(s.postgres.DB, s.clock)
}

func (s *PostgresLockSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "review_locks"))
}

func (s *PostgresLockSuite) TestAcquireAndGet() {
	ctx := context.Background()

	acquired, err := s.store.Acquire(ctx, "MAP-001", "alice", 30*time.Minute)
	s.Require().NoError(err)
	s.Equal(id.ReviewerID("alice"), acquired.Holder)

	got, err := s.store.Get(ctx, "MAP-001")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(acquired.LockID, got.LockID)
	s.True(got.ExpiresAt.Equal(acquired.ExpiresAt))
}

func (s *PostgresLockSuite) TestContention() {
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

func (s *PostgresLockSuite) TestRenewalKeepsLockID() {
	ctx := context.Background()

	first, err := s.store.Acquire(ctx, "MAP-001", "alice", 30*time.Minute)
	s.Require().NoError(err)

	s.clock.Advance(10 * time.Minute)
	renewed, err := s.store.Acquire(ctx, "MAP-001", "alice", 30*time.Minute)
	s.Require().NoError(err)
	s.Equal(first.LockID, renewed.LockID, "renewal must not mint a new lease")
	s.True(renewed.ExpiresAt.After(first.ExpiresAt))
	s.True(renewed.AcquiredAt.Equal(first.AcquiredAt))
}

func (s *PostgresLockSuite) TestExpiryReclaimedByNextAcquirer() {
	ctx := context.Background()

	first, err := s.store.Acquire(ctx, "MAP-001", "alice", 30*time.Minute)
	s.Require().NoError(err)

	s.clock.Advance(31 * time.Minute)

	got, err := s.store.Get(ctx, "MAP-001")
	s.Require().NoError(err)
	s.Nil(got, "a lapsed lease reads as free")

	second, err := s.store.Acquire(ctx, "MAP-001", "bob", 30*time.Minute)
	s.Require().NoError(err, "expired lease must not block a new acquirer")
	s.Equal(id.ReviewerID("bob"), second.Holder)
	s.NotEqual(first.LockID, second.LockID)
}

func (s *PostgresLockSuite) TestReleaseOwnerOnly() {
	ctx := context.Background()

	_, err := s.store.Acquire(ctx, "MAP-001", "alice", 30*time.Minute)
	s.Require().NoError(err)

	err = s.store.Release(ctx, "MAP-001", "bob")
	s.True(errors.Is(err, review.ErrLockOwnership))

	s.Require().NoError(s.store.Release(ctx, "MAP-001", "alice"))

	s.NoError(s.store.Release(ctx, "MAP-001", "alice"),
		"double release is idempotent, the lease is already gone")
}

func (s *PostgresLockSuite) TestReleaseExpiredLeaseIsNoOp() {
	ctx := context.Background()

	_, err := s.store.Acquire(ctx, "MAP-001", "alice", 30*time.Minute)
	s.Require().NoError(err)

	s.clock.Advance(31 * time.Minute)
	s.NoError(s.store.Release(ctx, "MAP-001", "alice"),
		"a lapsed lease is treated as already released")
}

func (s *PostgresLockSuite) TestConcurrentAcquireExactlyOneWinner() {
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

func (s *PostgresLockSuite) TestActiveLocksSweepsExpired() {
	ctx := context.Background()

	_, err := s.store.Acquire(ctx, "MAP-001", "alice", 5*time.Minute)
	s.Require().NoError(err)
	_, err = s.store.Acquire(ctx, "MAP-002", "bob", time.Hour)
	s.Require().NoError(err)

	s.clock.Advance(10 * time.Minute)

	active, err := s.store.ActiveLocks(ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(id.TargetID("MAP-002"), active[0].TargetID)
}
