package moderation

import (
	"fmt"
	"time"

	"github.com/linkguard/linkguard/automod/threat"
)

type Action string

const (
	ActionAllow         Action = "allow"
	ActionPublicWarning Action = "public-warning"
	ActionRemoveAndWarn Action = "remove-and-warn"
	ActionRemoveAndMute Action = "remove-and-mute"
	ActionRemoveAndBan  Action = "remove-and-ban"
)

var actionSeverity = map[Action]int{
	ActionAllow:         0,
	ActionPublicWarning: 1,
	ActionRemoveAndWarn: 2,
	ActionRemoveAndMute: 3,
	ActionRemoveAndBan:  4,
}

// Returns true if the action is more severe than the other
func (a Action) MoreSevere(other Action) bool {
	return actionSeverity[a] > actionSeverity[other]
}

// Whether the gateway should delete the offending message
func (a Action) RemovesMessage() bool {
	return a == ActionRemoveAndWarn || a == ActionRemoveAndMute || a == ActionRemoveAndBan
}

const NoteCaution = "link may be unsafe, proceed with caution"

// Escalation thresholds for Danger-tier offenses
type Policy struct {
	// mute when a user's warning count reaches this, and they are not already muted
	MuteThreshold int           `yaml:"mute_threshold"`
	MuteDuration  time.Duration `yaml:"mute_duration"`
	// ban when a user's lifetime warning count exceeds this
	BanThreshold int `yaml:"ban_threshold"`
}

func DefaultPolicy() Policy {
	return Policy{
		MuteThreshold: 3,
		MuteDuration:  15 * 24 * time.Hour,
		BanThreshold:  5,
	}
}

func (p Policy) Validate() error {
	if p.MuteThreshold < 1 || p.BanThreshold < 1 {
		return fmt.Errorf("moderation thresholds must be positive: %+v", p)
	}
	if p.MuteDuration <= 0 {
		return fmt.Errorf("mute duration must be positive: %s", p.MuteDuration)
	}
	return nil
}

// Outcome of a single transition
type Decision struct {
	Action Action   `json:"action"`
	Notes  []string `json:"notes,omitempty"`
	// the record was modified, and needs to be persisted
	Changed bool `json:"-"`
}

// The moderation transition function. Returns the updated record (always a copy; the input is not modified) and the decision.
//
// Safe and Caution links never change state. Suspicious links earn a public warning, but no strike. Danger links add a strike, and escalate to a mute or ban. A ban is terminal.
func (p Policy) Apply(rec *Record, a *threat.Assessment, now time.Time) (*Record, Decision) {
	next := rec.Clone()
	dec := Decision{Action: ActionAllow}

	if next.Banned {
		dec.Action = ActionRemoveAndBan
		return next, dec
	}

	// mutes expire lazily
	if next.MuteUntil != nil && !now.Before(*next.MuteUntil) {
		next.MuteUntil = nil
		next.UpdatedAt = now
		dec.Changed = true
	}

	switch a.Tier {
	case threat.Safe:
	case threat.Caution:
		dec.Notes = append(dec.Notes, NoteCaution)
	case threat.Suspicious:
		dec.Action = ActionPublicWarning
	case threat.Danger:
		next.Warnings++
		next.UpdatedAt = now
		dec.Changed = true
		switch {
		case next.Warnings > p.BanThreshold:
			next.Banned = true
			next.MuteUntil = nil
			dec.Action = ActionRemoveAndBan
		case next.Warnings >= p.MuteThreshold && next.MuteUntil == nil:
			until := now.Add(p.MuteDuration)
			next.MuteUntil = &until
			dec.Action = ActionRemoveAndMute
		default:
			dec.Action = ActionRemoveAndWarn
		}
	}
	return next, dec
}

// Action used when the moderation state could not be read or written: never escalates, but still warns about risky links.
func FallbackAction(tier threat.Tier) Action {
	if tier >= threat.Suspicious {
		return ActionPublicWarning
	}
	return ActionAllow
}
