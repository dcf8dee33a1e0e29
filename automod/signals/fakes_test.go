package signals

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/linkguard/linkguard/automod/event"
)

type fixedChecker struct {
	kind  Kind
	res   Result
	delay time.Duration
	calls atomic.Int32
}

func (c *fixedChecker) Kind() Kind {
	return c.kind
}

func (c *fixedChecker) Check(ctx context.Context, le *event.LinkEvent) Result {
	c.calls.Add(1)
	if c.delay > 0 {
		// ignores ctx, like a misbehaving client library
		time.Sleep(c.delay)
	}
	return c.res
}

func (c *fixedChecker) CheckHost(ctx context.Context, host string) Result {
	return c.Check(ctx, &event.LinkEvent{Domain: host})
}

type panicChecker struct{}

func (c panicChecker) Kind() Kind {
	return KindHomograph
}

func (c panicChecker) Check(ctx context.Context, le *event.LinkEvent) Result {
	panic("boom")
}

func linkEvent(raw string) *event.LinkEvent {
	le, err := event.LinkEventForURL(raw, time.Now())
	if err != nil {
		panic(err)
	}
	return le
}
