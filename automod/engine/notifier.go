package engine

import (
	"context"

	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/threat"
)

// Interface for a type that can handle sending admin notifications
type Notifier interface {
	// a message was removed (and the author warned, muted or banned)
	SendEnforcement(ctx context.Context, msg *event.MessageEvent, worst *threat.Assessment, out *Outcome) error
	// moderation could not be completed; reason is generic and safe to show admins
	SendFailure(ctx context.Context, msg *event.MessageEvent, worst *threat.Assessment, reason string) error
}
