package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/linkguard/linkguard/automod/threat"

	"github.com/puzpuzpuz/xsync/v3"
)

var (
	// a compare-and-set failed twice in a row
	ErrStateConflict = errors.New("moderation state conflict")
	// the Store could not be reached
	ErrPersistenceUnavailable = errors.New("moderation persistence unavailable")
)

type userLock struct {
	mu   sync.Mutex
	refs int
}

// Applies the moderation Policy against persisted Records.
//
// Transitions for one user are serialized in-process by a per-user lock, and across processes by compare-and-set on the record version. Transitions for different users never contend.
type Moderator struct {
	Store  Store
	Policy Policy
	Logger *slog.Logger
	// for tests; defaults to time.Now
	Now func() time.Time

	locks *xsync.MapOf[string, *userLock]
}

// Result of moderating a single assessment
type Outcome struct {
	Action Action   `json:"action"`
	Notes  []string `json:"notes,omitempty"`
	// state after the transition; nil if the user has no record or the store was unavailable
	Record *Record `json:"record,omitempty"`
}

func NewModerator(store Store, policy Policy, logger *slog.Logger) *Moderator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Moderator{
		Store:  store,
		Policy: policy,
		Logger: logger.With("component", "moderation"),
		locks:  xsync.NewMapOf[string, *userLock](),
	}
}

func (m *Moderator) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Acquires the per-user lock, returning the release function. Lock entries are reference counted, and removed once nobody holds or waits on them.
func (m *Moderator) lockUser(userID string) func() {
	l, _ := m.locks.Compute(userID, func(old *userLock, loaded bool) (*userLock, bool) {
		if !loaded {
			old = &userLock{}
		}
		old.refs++
		return old, false
	})
	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locks.Compute(userID, func(old *userLock, loaded bool) (*userLock, bool) {
			if !loaded {
				return old, true
			}
			old.refs--
			return old, old.refs <= 0
		})
	}
}

func (m *Moderator) load(ctx context.Context, userID string) (*Record, bool, error) {
	rec, err := m.Store.GetRecord(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return NewRecord(userID), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}
	return rec, true, nil
}

// Runs the transition function for a user and an assessment, and persists any change.
//
// Errors are returned alongside a usable Outcome: ErrPersistenceUnavailable with the fallback action, or ErrStateConflict with ActionAllow.
func (m *Moderator) Moderate(ctx context.Context, userID string, a *threat.Assessment) (*Outcome, error) {
	release := m.lockUser(userID)
	defer release()

	for attempt := 0; attempt < 2; attempt++ {
		cur, exists, err := m.load(ctx, userID)
		if err != nil {
			return m.fallback(userID, a, err)
		}
		next, dec := m.Policy.Apply(cur, a, m.now())
		if !dec.Changed {
			out := &Outcome{Action: dec.Action, Notes: dec.Notes}
			if exists {
				out.Record = next
			}
			moderationActions.WithLabelValues(string(dec.Action)).Inc()
			return out, nil
		}

		next.Version = cur.Version + 1
		err = m.Store.CompareAndSet(ctx, cur.Version, next)
		if errors.Is(err, ErrConflict) {
			stateConflicts.Inc()
			m.Logger.Warn("moderation record conflict, retrying", "user", userID, "version", cur.Version, "attempt", attempt)
			continue
		}
		if err != nil {
			return m.fallback(userID, a, fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err))
		}
		if dec.Action != ActionAllow {
			m.Logger.Info("moderation action", "user", userID, "action", dec.Action, "warnings", next.Warnings, "url", a.URL, "tier", a.Tier)
		}
		moderationActions.WithLabelValues(string(dec.Action)).Inc()
		return &Outcome{Action: dec.Action, Notes: dec.Notes, Record: next}, nil
	}

	m.Logger.Error("moderation offense not recorded after repeated conflicts", "user", userID, "url", a.URL, "tier", a.Tier)
	moderationActions.WithLabelValues(string(ActionAllow)).Inc()
	return &Outcome{Action: ActionAllow}, fmt.Errorf("%w: user %s", ErrStateConflict, userID)
}

func (m *Moderator) fallback(userID string, a *threat.Assessment, err error) (*Outcome, error) {
	persistenceFailures.Inc()
	act := FallbackAction(a.Tier)
	m.Logger.Error("moderation store unavailable", "user", userID, "tier", a.Tier, "fallback", act, "err", err)
	moderationActions.WithLabelValues(string(act)).Inc()
	return &Outcome{Action: act}, err
}

// Clears any mute on a user's record. Warning count is unchanged. Returns ErrNotFound if the user has no record.
func (m *Moderator) Unmute(ctx context.Context, userID string) (*Record, error) {
	release := m.lockUser(userID)
	defer release()

	for attempt := 0; attempt < 2; attempt++ {
		cur, err := m.Store.GetRecord(ctx, userID)
		if err != nil {
			return nil, err
		}
		if cur.MuteUntil == nil {
			return cur, nil
		}
		next := cur.Clone()
		next.MuteUntil = nil
		next.UpdatedAt = m.now()
		next.Version = cur.Version + 1
		err = m.Store.CompareAndSet(ctx, cur.Version, next)
		if errors.Is(err, ErrConflict) {
			stateConflicts.Inc()
			continue
		}
		if err != nil {
			return nil, err
		}
		m.Logger.Info("user unmuted", "user", userID, "warnings", next.Warnings)
		return next, nil
	}
	return nil, fmt.Errorf("%w: user %s", ErrStateConflict, userID)
}

// Fetches a user's record, returning ErrNotFound if there is none.
func (m *Moderator) Record(ctx context.Context, userID string) (*Record, error) {
	return m.Store.GetRecord(ctx, userID)
}
