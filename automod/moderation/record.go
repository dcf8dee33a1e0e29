package moderation

import (
	"fmt"
	"time"
)

type State string

const (
	StateClean  State = "clean"
	StateWarned State = "warned"
	StateMuted  State = "muted"
	StateBanned State = "banned"
)

// Persistent strike state for a single user. Created lazily on the first offense, and never deleted.
type Record struct {
	UserID    string     `json:"user_id"`
	Warnings  int        `json:"warnings"`
	MuteUntil *time.Time `json:"mute_until,omitempty"`
	Banned    bool       `json:"banned"`
	UpdatedAt time.Time  `json:"updated_at"`
	// incremented on every write; used for compare-and-set
	Version int64 `json:"version"`
}

func NewRecord(userID string) *Record {
	return &Record{UserID: userID}
}

// Whether an (unexpired) mute is in effect at the given time
func (r *Record) Muted(now time.Time) bool {
	return r.MuteUntil != nil && now.Before(*r.MuteUntil)
}

func (r *Record) State(now time.Time) State {
	switch {
	case r.Banned:
		return StateBanned
	case r.Muted(now):
		return StateMuted
	case r.Warnings > 0:
		return StateWarned
	default:
		return StateClean
	}
}

func (r *Record) Clone() *Record {
	out := *r
	if r.MuteUntil != nil {
		t := *r.MuteUntil
		out.MuteUntil = &t
	}
	return &out
}

func (r *Record) String() string {
	return fmt.Sprintf("user=%s state=%s warnings=%d version=%d", r.UserID, r.State(time.Now()), r.Warnings, r.Version)
}
