package orders

import (
	"time"

	pkgerrors "github.com/tindahan/marketplace-backend/pkg/errors"
)

// DefaultLockWindow is how long after creation an order stays editable.
const DefaultLockWindow = 24 * time.Hour

// LockPolicy decides whether an order's status fields may still be written.
type LockPolicy struct {
	window time.Duration
}

func NewLockPolicy(window time.Duration) LockPolicy {
	if window <= 0 {
		window = DefaultLockWindow
	}
	return LockPolicy{window: window}
}

func (p LockPolicy) Window() time.Duration {
	if p.window <= 0 {
		return DefaultLockWindow
	}
	return p.window
}

// Locked is true once strictly more than the window has elapsed since createdAt.
// Exactly at the boundary the order is still open.
func (p LockPolicy) Locked(createdAt, now time.Time) bool {
	return now.Sub(createdAt) > p.Window()
}

// LockState is the read-side view of the lock so clients can mirror it for display.
type LockState struct {
	Locked           bool      `json:"locked"`
	LockedAt         time.Time `json:"lockedAt"`
	RemainingSeconds int64     `json:"remainingSeconds"`
}

func (p LockPolicy) State(createdAt, now time.Time) LockState {
	lockedAt := createdAt.Add(p.Window())
	state := LockState{
		Locked:   p.Locked(createdAt, now),
		LockedAt: lockedAt.UTC(),
	}
	if !state.Locked {
		if remaining := lockedAt.Sub(now); remaining > 0 {
			state.RemainingSeconds = int64(remaining / time.Second)
		}
	}
	return state
}

// Guard returns ORDER_LOCKED when the window has passed.
func (p LockPolicy) Guard(createdAt, now time.Time) error {
	if !p.Locked(createdAt, now) {
		return nil
	}
	lockedAt := createdAt.Add(p.Window())
	return pkgerrors.New(pkgerrors.CodeLocked, "order can no longer be modified").
		WithDetails(map[string]any{
			"lockedAt":         lockedAt.UTC(),
			"lockedForSeconds": int64(now.Sub(lockedAt) / time.Second),
			"window":           p.Window().String(),
		})
}
