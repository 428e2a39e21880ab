package review

import (
	"errors"
	"fmt"

	id "attest/pkg/domain"
)

// The closed error set for ledger operations. Lock contention is a normal,
// expected outcome under multi-reviewer contention; retry policy belongs to
// the caller.
var (
	ErrLockHeld          = errors.New("review lock held")
	ErrLockOwnership     = errors.New("review lock owned by another reviewer")
	ErrLockExpired       = errors.New("review lock expired")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStaleTarget       = errors.New("target changed since review started")
	ErrChainIntegrity    = errors.New("audit chain integrity violation")
)

// LockHeldError reports contention on a target's review lock, carrying the
// current holder so callers can surface who is reviewing.
type LockHeldError struct {
	TargetID id.TargetID
	Holder   id.ReviewerID
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("target %s locked by %s", e.TargetID, e.Holder)
}

// Is lets errors.Is(err, ErrLockHeld) match a LockHeldError.
func (e *LockHeldError) Is(target error) bool {
	return target == ErrLockHeld
}

// InvalidTransitionError reports a rejected state machine transition.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// Is lets errors.Is(err, ErrInvalidTransition) match an InvalidTransitionError.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
